package indexer

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

const maxPageSize = 100

type Service struct {
	engine     *gin.Engine
	db         *gorm.DB
	listenAddr string
}

func NewService(listenAddr string, db *gorm.DB) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		db:         db,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getParticipants", s.handleGetParticipants)
	s.engine.POST("/getCrowdfunds", s.handleGetCrowdfunds)
	s.engine.POST("/getBonds", s.handleGetBonds)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

type PageReq struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func (p PageReq) apply(db *gorm.DB) *gorm.DB {
	size := p.PageSize
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}
	page := max(p.Page, 0)
	return db.Offset(page * size).Limit(size)
}

// paginate counts the rows matched by query and loads one page into out.
func paginate(query *gorm.DB, page PageReq, order string, out interface{}) (total uint64, err error) {
	if err = query.Count(&total).Error; err != nil {
		return
	}
	err = page.apply(query.Order(order)).Find(out).Error
	return
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

type GetProposalsReq struct {
	PageReq
	ProposalId uint64 `json:"proposalId"`
	Proposer   string `json:"proposer"`
	State      *uint8 `json:"state"`
}

type ProposalInfo struct {
	Proposal Proposal `json:"proposal"`
	Votes    []Vote   `json:"votes"`
}

type GetProposalsResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var req GetProposalsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	query := s.db.Model(&Proposal{})
	if req.ProposalId != 0 {
		query = query.Where("id = ?", req.ProposalId)
	}
	if req.Proposer != "" {
		query = query.Where("proposer = ?", strings.ToLower(req.Proposer))
	}
	if req.State != nil {
		query = query.Where("state = ?", *req.State)
	}
	var proposals []Proposal
	total, err := paginate(query, req.PageReq, "id desc", &proposals)
	if err != nil {
		internalError(c, err)
		return
	}
	response := GetProposalsResponse{Proposals: make([]ProposalInfo, 0, len(proposals)), Total: total}
	for _, p := range proposals {
		votes := make([]Vote, 0)
		if err = s.db.Where("proposal = ?", p.Id).Order("height asc").Find(&votes).Error; err != nil {
			internalError(c, err)
			return
		}
		response.Proposals = append(response.Proposals, ProposalInfo{Proposal: p, Votes: votes})
	}
	c.JSON(http.StatusOK, response)
}

type GetParticipantsReq struct {
	PageReq
	Address string `json:"address"`
	Type    *uint8 `json:"type"`
}

type GetParticipantsResponse struct {
	Participants []Participant `json:"participants"`
	Total        uint64        `json:"total"`
}

func (s *Service) handleGetParticipants(c *gin.Context) {
	var req GetParticipantsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	query := s.db.Model(&Participant{})
	if req.Address != "" {
		query = query.Where("address = ?", strings.ToLower(req.Address))
	}
	if req.Type != nil {
		query = query.Where("type = ?", *req.Type)
	}
	response := GetParticipantsResponse{Participants: make([]Participant, 0)}
	var err error
	response.Total, err = paginate(query, req.PageReq, "height asc, address asc", &response.Participants)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

type GetCrowdfundsReq struct {
	PageReq
	Address  string `json:"address"`
	Governor string `json:"governor"`
}

type CrowdfundInfo struct {
	Crowdfund     Crowdfund      `json:"crowdfund"`
	Thread        *Thread        `json:"thread,omitempty"`
	Contributions []Contribution `json:"contributions"`
}

type GetCrowdfundsResponse struct {
	Crowdfunds []CrowdfundInfo `json:"crowdfunds"`
	Total      uint64          `json:"total"`
}

func (s *Service) handleGetCrowdfunds(c *gin.Context) {
	var req GetCrowdfundsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	query := s.db.Model(&Crowdfund{})
	if req.Address != "" {
		query = query.Where("address = ?", strings.ToLower(req.Address))
	}
	if req.Governor != "" {
		query = query.Where("governor = ?", strings.ToLower(req.Governor))
	}
	var crowdfunds []Crowdfund
	total, err := paginate(query, req.PageReq, "height desc", &crowdfunds)
	if err != nil {
		internalError(c, err)
		return
	}
	response := GetCrowdfundsResponse{Crowdfunds: make([]CrowdfundInfo, 0, len(crowdfunds)), Total: total}
	for _, cf := range crowdfunds {
		info := CrowdfundInfo{Crowdfund: cf, Contributions: make([]Contribution, 0)}
		if err = s.db.Where("crowdfund = ? AND amount > 0", cf.Address).Find(&info.Contributions).Error; err != nil {
			internalError(c, err)
			return
		}
		th := Thread{Address: cf.Thread}
		if err = s.db.First(&th).Error; err == nil {
			info.Thread = &th
		} else if !gorm.IsRecordNotFoundError(err) {
			internalError(c, err)
			return
		}
		response.Crowdfunds = append(response.Crowdfunds, info)
	}
	c.JSON(http.StatusOK, response)
}

type GetBondsReq struct {
	PageReq
	Governor string `json:"governor"`
}

type GetBondsResponse struct {
	Bonds []Bond `json:"bonds"`
	Total uint64 `json:"total"`
}

func (s *Service) handleGetBonds(c *gin.Context) {
	var req GetBondsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	query := s.db.Model(&Bond{})
	if req.Governor != "" {
		query = query.Where("governor = ?", strings.ToLower(req.Governor))
	}
	response := GetBondsResponse{Bonds: make([]Bond, 0)}
	var err error
	response.Total, err = paginate(query, req.PageReq, "amount desc", &response.Bonds)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}
