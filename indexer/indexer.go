package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calehh/frabric-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// BlockSource is the part of the CometBFT RPC client the indexer reads.
type BlockSource interface {
	Genesis(ctx context.Context) (*coretypes.ResultGenesis, error)
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
}

func NewHTTPSource(url string) (*comethttp.HTTP, error) {
	return comethttp.New(url, "/websocket")
}

type ChainIndexer struct {
	logger        cmtlog.Logger
	Height        int64
	db            *gorm.DB
	src           BlockSource
	interval      time.Duration
	eventHandlers map[string]eventHandler
}

func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(models...).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, db *gorm.DB, src BlockSource, interval time.Duration) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Second
	}
	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		Height:   int64(h.Height + 1),
		db:       db,
		src:      src,
		interval: interval,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventParticipantChangeType:   handleParticipantChange,
		types.EventGovernorChangeType:      handleGovernorChange,
		types.EventProposalType:            handleProposal,
		types.EventProposalStateChangeType: handleProposalStateChange,
		types.EventVoteType:                handleVote,
		types.EventBondType:                handleBond,
		types.EventUnbondType:              handleUnbond,
		types.EventSlashType:               handleSlash,
		types.EventThreadType:              handleThread,
		types.EventCrowdfundedThreadType:   handleCrowdfundedThread,
		types.EventCrowdfundStartedType:    handleCrowdfundStarted,
		types.EventStateChangeType:         handleStateChange,
		types.EventDepositType:             handleDeposit,
		types.EventWithdrawType:            handleWithdraw,
		types.EventDistributedType:         handleDistributed,
		types.EventClaimedType:             handleClaimed,
	}
	return c, nil
}

func (c *ChainIndexer) DB() *gorm.DB {
	return c.db
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

// Sync indexes every block up to the latest committed height. Each block is
// written in one sqlite transaction together with the indexed height.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	if c.Height == 1 {
		if err := c.indexGenesis(ctx); err != nil {
			return fmt.Errorf("index genesis: %w", err)
		}
	}
	status, err := c.src.Status(ctx)
	if err != nil {
		return err
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = c.indexBlock(ctx, c.Height); err != nil {
			return err
		}
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) indexBlock(ctx context.Context, height int64) (err error) {
	h := height
	res, err := c.src.BlockResults(ctx, &h)
	if err != nil {
		return err
	}
	tx := c.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	for _, r := range res.TxsResults {
		if r.Code != abci.CodeTypeOK {
			continue
		}
		for _, event := range r.Events {
			if err = c.handleEvent(tx, event, height); err != nil {
				return err
			}
		}
	}
	for _, event := range res.FinalizeBlockEvents {
		if err = c.handleEvent(tx, event, height); err != nil {
			return err
		}
	}
	if err = tx.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	c.logger.Debug("indexed block", "height", height, "txs", len(res.TxsResults))
	return nil
}

// indexGenesis records the genesis participants, which are admitted by
// InitChain and never appear in block results.
func (c *ChainIndexer) indexGenesis(ctx context.Context) error {
	var n int
	if err := c.db.Model(&Participant{}).Where("type = ?", uint8(types.ParticipantGenesis)).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	res, err := c.src.Genesis(ctx)
	if err != nil {
		return err
	}
	if res.Genesis == nil || len(res.Genesis.AppState) == 0 {
		return nil
	}
	var app types.AppState
	if err = json.Unmarshal(res.Genesis.AppState, &app); err != nil {
		return err
	}
	tx := c.db.Begin()
	for _, p := range app.Participants {
		row := Participant{
			Address:  hexAddr(p.Address),
			Type:     uint8(types.ParticipantGenesis),
			TypeName: types.ParticipantGenesis.String(),
			KYCHash:  p.KYCHash.Hex(),
		}
		if err = tx.Save(&row).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

type eventHandler func(db *gorm.DB, event abci.Event, height int64) error

func (c *ChainIndexer) handleEvent(db *gorm.DB, event abci.Event, height int64) error {
	h, ok := c.eventHandlers[event.Type]
	if !ok {
		return nil
	}
	if err := h(db, event, height); err != nil {
		return fmt.Errorf("event %s: %w", event.Type, err)
	}
	return nil
}

func hexAddr(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func handleParticipantChange(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventParticipantChange](event)
	if err != nil {
		return err
	}
	p := Participant{Address: hexAddr(ev.Participant)}
	if err = firstOrInit(db, &p); err != nil {
		return err
	}
	if p.Height == 0 {
		p.Height = uint64(height)
	}
	p.Type = uint8(ev.Type)
	p.TypeName = ev.Type.String()
	p.UpdatedHeight = uint64(height)
	return db.Save(&p).Error
}

func handleGovernorChange(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventGovernorChange](event)
	if err != nil {
		return err
	}
	p := Participant{Address: hexAddr(ev.Governor)}
	if err = firstOrInit(db, &p); err != nil {
		return err
	}
	p.GovernorStatus = uint8(ev.Status)
	p.UpdatedHeight = uint64(height)
	return db.Save(&p).Error
}

func handleProposal(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventProposal](event)
	if err != nil {
		return err
	}
	p := Proposal{
		Id:            ev.ID,
		Kind:          uint8(ev.Kind),
		KindName:      ev.Kind.String(),
		Proposer:      hexAddr(ev.Proposer),
		Info:          ev.Info.Hex(),
		State:         uint8(types.ProposalActive),
		StateName:     types.ProposalActive.String(),
		Deadline:      ev.Deadline,
		Height:        uint64(height),
		UpdatedHeight: uint64(height),
	}
	return db.Save(&p).Error
}

func handleProposalStateChange(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventProposalStateChange](event)
	if err != nil {
		return err
	}
	return db.Model(&Proposal{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
		"state":          uint8(ev.State),
		"state_name":     ev.State.String(),
		"updated_height": uint64(height),
	}).Error
}

func handleVote(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventVote](event)
	if err != nil {
		return err
	}
	v := Vote{
		Id:       fmt.Sprintf("%d/%s", ev.ID, hexAddr(ev.Voter)),
		Proposal: ev.ID,
		Voter:    hexAddr(ev.Voter),
		Support:  ev.Support,
		Weight:   ev.Weight,
		Height:   uint64(height),
	}
	if err = db.Save(&v).Error; err != nil {
		return err
	}
	var votes []Vote
	if err = db.Where("proposal = ?", ev.ID).Find(&votes).Error; err != nil {
		return err
	}
	var yes, no uint64
	for _, v := range votes {
		if v.Support {
			yes += v.Weight
		} else {
			no += v.Weight
		}
	}
	return db.Model(&Proposal{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
		"for_weight":     yes,
		"against_weight": no,
		"updated_height": uint64(height),
	}).Error
}

func updateBond(db *gorm.DB, governor common.Address, fn func(b *Bond)) error {
	b := Bond{Governor: hexAddr(governor)}
	if err := firstOrInit(db, &b); err != nil {
		return err
	}
	fn(&b)
	return db.Save(&b).Error
}

func handleBond(db *gorm.DB, event abci.Event, _ int64) error {
	ev, err := types.DecodeEvent[types.EventBond](event)
	if err != nil {
		return err
	}
	return updateBond(db, ev.Governor, func(b *Bond) { b.Amount += ev.Amount })
}

func handleUnbond(db *gorm.DB, event abci.Event, _ int64) error {
	ev, err := types.DecodeEvent[types.EventUnbond](event)
	if err != nil {
		return err
	}
	return updateBond(db, ev.Governor, func(b *Bond) { b.Amount -= min(b.Amount, ev.Amount) })
}

func handleSlash(db *gorm.DB, event abci.Event, _ int64) error {
	ev, err := types.DecodeEvent[types.EventSlash](event)
	if err != nil {
		return err
	}
	return updateBond(db, ev.Governor, func(b *Bond) {
		b.Amount -= min(b.Amount, ev.Amount)
		b.Slashed += ev.Amount
	})
}

func handleThread(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventThread](event)
	if err != nil {
		return err
	}
	th := Thread{Address: hexAddr(ev.Thread)}
	if err = firstOrInit(db, &th); err != nil {
		return err
	}
	th.Variant = ev.Variant
	th.Governor = hexAddr(ev.Governor)
	th.ERC20 = hexAddr(ev.ERC20)
	th.Descriptor = ev.Descriptor.Hex()
	th.Height = uint64(height)
	return db.Save(&th).Error
}

func handleCrowdfundedThread(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventCrowdfundedThread](event)
	if err != nil {
		return err
	}
	th := Thread{Address: hexAddr(ev.Thread)}
	if err = firstOrInit(db, &th); err != nil {
		return err
	}
	th.Crowdfund = hexAddr(ev.Crowdfund)
	return db.Save(&th).Error
}

func handleCrowdfundStarted(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventCrowdfundStarted](event)
	if err != nil {
		return err
	}
	cf := Crowdfund{
		Address:       hexAddr(ev.Crowdfund),
		Thread:        hexAddr(ev.Thread),
		Governor:      hexAddr(ev.Governor),
		Token:         hexAddr(ev.Token),
		Target:        ev.Target,
		State:         uint8(types.CrowdfundActive),
		StateName:     types.CrowdfundActive.String(),
		Height:        uint64(height),
		UpdatedHeight: uint64(height),
	}
	return db.Save(&cf).Error
}

func handleStateChange(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventStateChange](event)
	if err != nil {
		return err
	}
	return db.Model(&Crowdfund{}).Where("address = ?", hexAddr(ev.Crowdfund)).Updates(map[string]interface{}{
		"state":          uint8(ev.State),
		"state_name":     ev.State.String(),
		"updated_height": uint64(height),
	}).Error
}

func updateContribution(db *gorm.DB, crowdfund, depositor common.Address, height int64, delta func(amount uint64) uint64) error {
	cf := Crowdfund{Address: hexAddr(crowdfund)}
	if err := db.First(&cf, "address = ?", cf.Address).Error; err != nil {
		return err
	}
	c := Contribution{
		Id:        cf.Address + "/" + hexAddr(depositor),
		Crowdfund: cf.Address,
		Depositor: hexAddr(depositor),
	}
	if err := firstOrInit(db, &c); err != nil {
		return err
	}
	before := c.Amount
	c.Amount = delta(c.Amount)
	if err := db.Save(&c).Error; err != nil {
		return err
	}
	cf.Raised = cf.Raised + c.Amount - before
	cf.UpdatedHeight = uint64(height)
	return db.Save(&cf).Error
}

func handleDeposit(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventDeposit](event)
	if err != nil {
		return err
	}
	return updateContribution(db, ev.Crowdfund, ev.Depositor, height, func(amount uint64) uint64 {
		return amount + ev.Amount
	})
}

func handleWithdraw(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventWithdraw](event)
	if err != nil {
		return err
	}
	return updateContribution(db, ev.Crowdfund, ev.Depositor, height, func(amount uint64) uint64 {
		return amount - min(amount, ev.Amount)
	})
}

func handleDistributed(db *gorm.DB, event abci.Event, height int64) error {
	ev, err := types.DecodeEvent[types.EventDistributed](event)
	if err != nil {
		return err
	}
	d := Distribution{
		Id:     ev.ID,
		Token:  hexAddr(ev.Token),
		Amount: ev.Amount,
		Height: uint64(height),
	}
	return db.Save(&d).Error
}

func handleClaimed(db *gorm.DB, event abci.Event, _ int64) error {
	ev, err := types.DecodeEvent[types.EventClaimed](event)
	if err != nil {
		return err
	}
	return db.Model(&Distribution{}).Where("id = ?", ev.ID).
		UpdateColumn("claimed", gorm.Expr("claimed + ?", ev.Amount)).Error
}

// firstOrInit loads the row keyed by the primary key already set on out,
// leaving out as is when no such row exists.
func firstOrInit(db *gorm.DB, out interface{}) error {
	err := db.First(out).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	return nil
}
