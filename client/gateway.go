package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mezonai/simplewallet/config"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/jsonx"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/monitoring"
)

// LedgerGateway is the client's only view of the ledger. Every failure is
// returned as a transport error.
type LedgerGateway interface {
	SubmitBatches(ctx context.Context, batchList []byte) (*SubmitResult, error)
	// GetState returns nil, nil when nothing is stored at addr
	GetState(ctx context.Context, addr string) ([]byte, error)
	BatchStatuses(ctx context.Context, ids []string) ([]BatchStatus, error)
}

// RESTGateway talks to a Sawtooth-style REST API
type RESTGateway struct {
	baseURL  string
	rest     *resty.Client
	attempts int
	backoff  time.Duration
}

func NewRESTGateway(settings config.ClientSettings) *RESTGateway {
	attempts := settings.SubmitAttempts
	if attempts <= 0 {
		attempts = config.DefaultSubmitAttempts
	}
	backoff := time.Duration(settings.BackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = time.Duration(config.DefaultBackoffMs) * time.Millisecond
	}
	timeout := time.Duration(settings.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultTimeoutMs) * time.Millisecond
	}

	return &RESTGateway{
		baseURL:  strings.TrimRight(settings.RestURL, "/"),
		rest:     resty.New().SetTimeout(timeout),
		attempts: attempts,
		backoff:  backoff,
	}
}

func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

// send runs req up to g.attempts times with exponential backoff. The request
// closure must carry its body by value so every attempt sends the same bytes.
func (g *RESTGateway) send(ctx context.Context, op string, req func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	var lastErr error
	wait := g.backoff
	for attempt := 1; attempt <= g.attempts; attempt++ {
		resp, err := req(g.rest.R().SetContext(ctx))
		switch {
		case err != nil:
			lastErr = err
		case retryableStatus(resp.StatusCode()):
			lastErr = fmt.Errorf("%s returned %d: %s", op, resp.StatusCode(), responseMessage(resp))
		default:
			return resp, nil
		}

		if ctx.Err() != nil {
			break
		}
		logx.Warn("GATEWAY", fmt.Sprintf("%s attempt %d/%d failed: %v", op, attempt, g.attempts, lastErr))
		if attempt == g.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, werrors.Wrap(werrors.ErrCodeTransport, op+" cancelled", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	if ctx.Err() != nil {
		return nil, werrors.Wrap(werrors.ErrCodeTransport, op+" cancelled", ctx.Err())
	}
	return nil, werrors.Wrap(werrors.ErrCodeTransport, fmt.Sprintf("%s failed after %d attempt(s)", op, g.attempts), lastErr)
}

func responseMessage(resp *resty.Response) string {
	var body errorResponse
	if err := jsonx.Unmarshal(resp.Body(), &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(resp.Body()))
}

func permanent(op string, resp *resty.Response) error {
	return werrors.NewError(werrors.ErrCodeTransport,
		fmt.Sprintf("%s rejected with %d: %s", op, resp.StatusCode(), responseMessage(resp)))
}

func (g *RESTGateway) SubmitBatches(ctx context.Context, batchList []byte) (*SubmitResult, error) {
	resp, err := g.send(ctx, "submit batches", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/octet-stream").
			SetBody(batchList).
			Post(g.baseURL + "/batches")
	})
	if err != nil {
		monitoring.IncreaseClientSubmitErrors()
		return nil, err
	}
	if resp.StatusCode() != http.StatusAccepted && resp.StatusCode() != http.StatusOK {
		monitoring.IncreaseClientSubmitErrors()
		return nil, permanent("submit batches", resp)
	}

	var result SubmitResult
	if err := jsonx.Unmarshal(resp.Body(), &result); err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeTransport, "submit response is not JSON", err)
	}
	result.BatchIDs = idsFromLink(result.Link)
	logx.Info("GATEWAY", "Batches accepted:", result.Link)
	return &result, nil
}

func idsFromLink(link string) []string {
	u, err := url.Parse(link)
	if err != nil {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(u.Query().Get("id"), ",") {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *RESTGateway) GetState(ctx context.Context, addr string) ([]byte, error) {
	resp, err := g.send(ctx, "get state", func(r *resty.Request) (*resty.Response, error) {
		return r.Get(g.baseURL + "/state/" + url.PathEscape(addr))
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, permanent("get state", resp)
	}

	var body stateResponse
	if err := jsonx.Unmarshal(resp.Body(), &body); err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeTransport, "state response is not JSON", err)
	}
	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeTransport, "state data is not base64", err)
	}
	return data, nil
}

func (g *RESTGateway) BatchStatuses(ctx context.Context, ids []string) ([]BatchStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := g.send(ctx, "batch statuses", func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("id", strings.Join(ids, ",")).Get(g.baseURL + "/batch_statuses")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, permanent("batch statuses", resp)
	}
	var body batchStatusesResponse
	if err := jsonx.Unmarshal(resp.Body(), &body); err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeTransport, "status response is not JSON", err)
	}
	return body.Data, nil
}
