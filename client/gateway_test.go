package client

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mezonai/simplewallet/config"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingServer struct {
	mu      sync.Mutex
	bodies  [][]byte
	replies []int
}

func (r *recordingServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	code := http.StatusAccepted
	if len(r.replies) > 0 {
		code, r.replies = r.replies[0], r.replies[1:]
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if code == http.StatusAccepted {
		io.WriteString(w, `{"link":"http://x/batch_statuses?id=aa,bb"}`)
	} else {
		io.WriteString(w, `{"error":{"code":"x","message":"nope"}}`)
	}
}

func newGateway(url string, attempts int) *RESTGateway {
	return NewRESTGateway(config.ClientSettings{
		RestURL:        url,
		SubmitAttempts: attempts,
		BackoffMs:      1,
		TimeoutMs:      2000,
	})
}

func TestSubmitBatches_RetriesWithIdenticalBytes(t *testing.T) {
	rec := &recordingServer{replies: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusAccepted}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	raw := []byte{0x0a, 0x03, 0x01, 0x02, 0x03}
	result, err := newGateway(srv.URL, 3).SubmitBatches(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb"}, result.BatchIDs)

	require.Len(t, rec.bodies, 3)
	for _, b := range rec.bodies {
		assert.Equal(t, raw, b)
	}
}

func TestSubmitBatches_GivesUpAfterAttempts(t *testing.T) {
	rec := &recordingServer{replies: []int{500, 500, 500, 500}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	_, err := newGateway(srv.URL, 2).SubmitBatches(context.Background(), []byte("x"))
	assert.True(t, werrors.HasCode(err, werrors.ErrCodeTransport))
	assert.Len(t, rec.bodies, 2)
}

func TestSubmitBatches_ClientErrorIsNotRetried(t *testing.T) {
	rec := &recordingServer{replies: []int{http.StatusBadRequest}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	_, err := newGateway(srv.URL, 3).SubmitBatches(context.Background(), []byte("x"))
	assert.True(t, werrors.HasCode(err, werrors.ErrCodeTransport))
	assert.Contains(t, werrors.ReasonOf(err), "nope")
	assert.Len(t, rec.bodies, 1)
}

func TestSubmitBatches_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newGateway(url, 2).SubmitBatches(context.Background(), []byte("x"))
	assert.True(t, werrors.IsRetryable(err))
}

func TestSubmitBatches_ContextCancelled(t *testing.T) {
	rec := &recordingServer{replies: []int{500, 500, 500}}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	g := NewRESTGateway(config.ClientSettings{RestURL: srv.URL, SubmitAttempts: 3, BackoffMs: 10000})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.SubmitBatches(ctx, []byte("x"))
	assert.True(t, werrors.HasCode(err, werrors.ErrCodeTransport))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGetState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/state/present", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":"`+base64.StdEncoding.EncodeToString([]byte("60"))+`"}`)
	})
	mux.HandleFunc("/state/absent", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/state/broken", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":"%%%"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	g := newGateway(srv.URL, 1)

	data, err := g.GetState(context.Background(), "present")
	require.NoError(t, err)
	assert.Equal(t, []byte("60"), data)

	data, err = g.GetState(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = g.GetState(context.Background(), "broken")
	assert.True(t, werrors.HasCode(err, werrors.ErrCodeTransport))
}

func TestBatchStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a,b", r.URL.Query().Get("id"))
		io.WriteString(w, `{"data":[{"id":"a","status":"COMMITTED"},{"id":"b","status":"INVALID","invalid_transactions":[{"id":"t","message":"Not enough balance"}]}]}`)
	}))
	defer srv.Close()

	statuses, err := newGateway(srv.URL, 1).BatchStatuses(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, StatusCommitted, statuses[0].Status)

	msg, ok := FirstRejection(statuses)
	assert.True(t, ok)
	assert.Equal(t, "Not enough balance", msg)
}
