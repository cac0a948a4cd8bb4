package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mezonai/simplewallet/address"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/ledger"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/store"
)

const (
	maxBatchListBytes = 10 << 20
	maxWaitSeconds    = 60
	statusPollEvery   = 50 * time.Millisecond
)

func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := string(werrors.CodeOf(err))
	switch {
	case errors.Is(err, ledger.ErrQueueFull):
		status, code = http.StatusTooManyRequests, "queue_full"
	case werrors.HasCode(err, werrors.ErrCodeMalformedRequest):
		status = http.StatusBadRequest
	case werrors.HasCode(err, werrors.ErrCodeNotFound):
		status = http.StatusNotFound
	}
	if code == "" {
		code = string(werrors.ErrCodeInternal)
	}
	if status >= http.StatusInternalServerError {
		logx.Error("API", "Request failed:", err)
	}
	c.AbortWithStatusJSON(status, errorBody(code, werrors.ReasonOf(err)))
}

// submitBatches answers 202 with a link to poll; acceptance is not commitment
// POST /batches
func (s *Server) submitBatches(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBatchListBytes+1))
	if err != nil {
		abortWithError(c, werrors.Wrap(werrors.ErrCodeMalformedRequest, "could not read body", err))
		return
	}
	if len(body) == 0 {
		abortWithError(c, werrors.NewError(werrors.ErrCodeMalformedRequest, "empty body"))
		return
	}
	if len(body) > maxBatchListBytes {
		abortWithError(c, werrors.NewError(werrors.ErrCodeMalformedRequest, "batch list too large"))
		return
	}

	ids, err := s.ledger.Submit(body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"link": s.statusLink(c, ids)})
}

func (s *Server) statusLink(c *gin.Context, ids []string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/batch_statuses?id=%s", scheme, c.Request.Host, strings.Join(ids, ","))
}

// getState GET /state/:address
func (s *Server) getState(c *gin.Context) {
	addr := c.Param("address")
	if err := address.Validate(addr); err != nil {
		abortWithError(c, werrors.Wrap(werrors.ErrCodeMalformedRequest, "invalid address", err))
		return
	}
	data, err := s.ledger.State(addr)
	if err != nil {
		abortWithError(c, werrors.Wrap(werrors.ErrCodeInternal, "state read failed", err))
		return
	}
	if data == nil {
		abortWithError(c, werrors.NewError(werrors.ErrCodeNotFound, "no state at "+addr))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": base64.StdEncoding.EncodeToString(data)})
}

type stateEntry struct {
	Address string `json:"address"`
	Data    string `json:"data"`
}

// listState GET /state?address=<prefix>
func (s *Server) listState(c *gin.Context) {
	prefix := c.Query("address")
	limit := 1000
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, werrors.NewError(werrors.ErrCodeMalformedRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries := make([]stateEntry, 0)
	err := s.ledger.ListState(prefix, func(addr string, data []byte) bool {
		entries = append(entries, stateEntry{Address: addr, Data: base64.StdEncoding.EncodeToString(data)})
		return len(entries) < limit
	})
	if err != nil {
		abortWithError(c, werrors.Wrap(werrors.ErrCodeInternal, "state listing failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// batchStatuses GET /batch_statuses?id=a,b[&wait=seconds]
func (s *Server) batchStatuses(c *gin.Context) {
	ids := splitIDs(c.Query("id"))
	if len(ids) == 0 {
		abortWithError(c, werrors.NewError(werrors.ErrCodeMalformedRequest, "id query parameter is required"))
		return
	}
	wait := 0
	if raw := c.Query("wait"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortWithError(c, werrors.NewError(werrors.ErrCodeMalformedRequest, "wait must be a non negative integer"))
			return
		}
		wait = min(n, maxWaitSeconds)
	}

	deadline := time.Now().Add(time.Duration(wait) * time.Second)
	for {
		statuses, err := s.ledger.BatchStatuses(ids)
		if err != nil {
			abortWithError(c, werrors.Wrap(werrors.ErrCodeInternal, "status read failed", err))
			return
		}
		if !anyPending(statuses) || !time.Now().Before(deadline) {
			c.JSON(http.StatusOK, gin.H{"data": statuses})
			return
		}
		select {
		case <-c.Request.Context().Done():
			return
		case <-time.After(statusPollEvery):
		}
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func anyPending(statuses []*store.BatchStatus) bool {
	for _, st := range statuses {
		if st.Status == store.BatchPending {
			return true
		}
	}
	return false
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pending_batches": s.ledger.Pending()})
}
