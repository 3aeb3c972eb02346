package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	gin.SetMode(gin.TestMode)
	src := newTestSource(t)
	seedBlocks(src)
	c := newTestIndexer(t, src)
	require.NoError(t, c.Sync(context.Background()))
	return NewService("", c.DB())
}

func post[T any](t *testing.T, s *Service, path string, body any) (int, T) {
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	var out T
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func TestServiceGetProposals(t *testing.T) {
	s := newTestService(t)
	code, res := post[GetProposalsResponse](t, s, "/getProposals", GetProposalsReq{ProposalId: 1})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Proposals, 1)
	assert.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "participants", res.Proposals[0].Proposal.KindName)
	assert.Len(t, res.Proposals[0].Votes, 2)

	active := uint8(0)
	code, res = post[GetProposalsResponse](t, s, "/getProposals", GetProposalsReq{State: &active})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, res.Proposals)
	assert.Equal(t, uint64(0), res.Total)
}

func TestServiceGetParticipants(t *testing.T) {
	s := newTestService(t)
	code, res := post[GetParticipantsResponse](t, s, "/getParticipants", GetParticipantsReq{})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(3), res.Total)
	assert.Len(t, res.Participants, 3)

	// addresses match regardless of checksum casing
	code, res = post[GetParticipantsResponse](t, s, "/getParticipants", GetParticipantsReq{Address: governor.Hex()})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Participants, 1)
	assert.Equal(t, "governor", res.Participants[0].TypeName)

	code, res = post[GetParticipantsResponse](t, s, "/getParticipants", GetParticipantsReq{PageReq: PageReq{Page: 1, PageSize: 2}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(3), res.Total)
	assert.Len(t, res.Participants, 1)
}

func TestServiceGetCrowdfunds(t *testing.T) {
	s := newTestService(t)
	code, res := post[GetCrowdfundsResponse](t, s, "/getCrowdfunds", GetCrowdfundsReq{Governor: governor.Hex()})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Crowdfunds, 1)
	info := res.Crowdfunds[0]
	assert.Equal(t, uint64(800), info.Crowdfund.Raised)
	assert.Len(t, info.Contributions, 2)
	require.NotNil(t, info.Thread)
	assert.Equal(t, hexAddr(thread), info.Thread.Address)
}

func TestServiceGetBonds(t *testing.T) {
	s := newTestService(t)
	code, res := post[GetBondsResponse](t, s, "/getBonds", GetBondsReq{})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Bonds, 1)
	assert.Equal(t, uint64(5000), res.Bonds[0].Amount)
}

func TestServiceBadRequest(t *testing.T) {
	s := newTestService(t)
	req := httptest.NewRequest(http.MethodPost, "/getBonds", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
