package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/mezonai/simplewallet/config"
	"github.com/mezonai/simplewallet/db"
	"github.com/mezonai/simplewallet/jsonx"
	"github.com/mezonai/simplewallet/ledger"
	"github.com/mezonai/simplewallet/payload"
	"github.com/mezonai/simplewallet/processor"
	"github.com/mezonai/simplewallet/ratelimit"
	"github.com/mezonai/simplewallet/signing"
	"github.com/mezonai/simplewallet/store"
	"github.com/mezonai/simplewallet/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	server  *Server
	ledger  *ledger.Ledger
	family  config.Family
	builder *transaction.Builder
}

func newTestNode(t *testing.T, limiter *ratelimit.RateLimiter) *testNode {
	t.Helper()
	provider, err := db.NewLevelDBMemProvider()
	require.NoError(t, err)
	stores, err := store.NewStores(provider)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	family := config.DefaultFamily()
	l := ledger.NewLedger(stores.State, stores.Statuses, 16)
	require.NoError(t, l.Register(processor.NewWallet(family).Handler()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)

	return &testNode{
		server:  NewServer(l, limiter, ":0"),
		ledger:  l,
		family:  family,
		builder: transaction.NewBuilder(family, nil),
	}
}

func (n *testNode) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	rec := httptest.NewRecorder()
	n.server.Handler().ServeHTTP(rec, req)
	return rec
}

func newSigner(t *testing.T) *signing.Signer {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	s, err := signing.NewSigner(priv.Serialize())
	require.NoError(t, err)
	return s
}

type statusResponse struct {
	Data []store.BatchStatus `json:"data"`
}

func TestSubmitThenReadState(t *testing.T) {
	n := newTestNode(t, nil)
	x := newSigner(t)
	list, err := n.builder.BuildForPublicKey(x, payload.ActionDeposit, uint256.NewInt(42), "")
	require.NoError(t, err)

	rec := n.do(t, http.MethodPost, "/batches", list.Marshal())
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted map[string]string
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.True(t, strings.HasSuffix(accepted["link"], "/batch_statuses?id="+list.IDs()[0]))

	rec = n.do(t, http.MethodGet, "/batch_statuses?wait=2&id="+list.IDs()[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses statusResponse
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses.Data, 1)
	assert.Equal(t, store.BatchCommitted, statuses.Data[0].Status)

	addr := n.family.Address(x.PublicKey())
	rec = n.do(t, http.MethodGet, "/state/"+addr, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state map[string]string
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &state))
	data, err := base64.StdEncoding.DecodeString(state["data"])
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))

	rec = n.do(t, http.MethodGet, "/state?address="+n.family.Namespace(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), addr)
}

func TestGetState_MissingAndInvalid(t *testing.T) {
	n := newTestNode(t, nil)

	rec := n.do(t, http.MethodGet, "/state/"+n.family.Address(newSigner(t).PublicKey()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = n.do(t, http.MethodGet, "/state/xyz", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_Rejections(t *testing.T) {
	n := newTestNode(t, nil)

	rec := n.do(t, http.MethodPost, "/batches", []byte{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = n.do(t, http.MethodPost, "/batches", []byte("garbage"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed_request")
}

func TestSubmit_InvalidBatchStatus(t *testing.T) {
	n := newTestNode(t, nil)
	list, err := n.builder.BuildForPublicKey(newSigner(t), payload.ActionWithdraw, uint256.NewInt(1), "")
	require.NoError(t, err)

	rec := n.do(t, http.MethodPost, "/batches", list.Marshal())
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := n.do(t, http.MethodGet, "/batch_statuses?id="+list.IDs()[0], nil)
		var statuses statusResponse
		if jsonx.Unmarshal(rec.Body.Bytes(), &statuses) != nil || len(statuses.Data) != 1 {
			return false
		}
		return statuses.Data[0].Status == store.BatchInvalid
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatchStatuses_RequiresID(t *testing.T) {
	n := newTestNode(t, nil)
	assert.Equal(t, http.StatusBadRequest, n.do(t, http.MethodGet, "/batch_statuses", nil).Code)
	assert.Equal(t, http.StatusBadRequest, n.do(t, http.MethodGet, "/batch_statuses?id=a&wait=-1", nil).Code)

	rec := n.do(t, http.MethodGet, "/batch_statuses?id=a,b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses statusResponse
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses.Data, 2)
	assert.Equal(t, store.BatchUnknown, statuses.Data[0].Status)
}

func TestSubmit_RateLimited(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(&ratelimit.RateLimiterConfig{
		MaxRequests: 1, WindowSize: time.Minute, CleanupInterval: time.Hour,
	})
	defer limiter.Stop()
	n := newTestNode(t, limiter)

	assert.Equal(t, http.StatusBadRequest, n.do(t, http.MethodPost, "/batches", []byte("x")).Code)
	rec := n.do(t, http.MethodPost, "/batches", []byte("x"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are never limited
	assert.Equal(t, http.StatusOK, n.do(t, http.MethodGet, "/health", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	n := newTestNode(t, nil)
	rec := n.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
