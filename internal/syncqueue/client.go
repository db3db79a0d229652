package syncqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"

	"github.com/rs/zerolog/log"
)

// HTTPCommitter talks to the API with the inspector's bearer token. Calls go
// through a circuit breaker; while it is open the client counts as offline.
type HTTPCommitter struct {
	baseURL  string
	token    string
	holderID string
	client   *http.Client
	breaker  *infra.CircuitBreaker
}

// HTTPConfig configures the field client's connection.
type HTTPConfig struct {
	BaseURL  string
	Token    string
	HolderID string
	Timeout  time.Duration
	// FailureThreshold consecutive transport failures switch to offline.
	FailureThreshold int
	OpenTimeout      time.Duration
}

func NewHTTPCommitter(cfg HTTPConfig) *HTTPCommitter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &HTTPCommitter{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		holderID: cfg.HolderID,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker: infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			SuccessThreshold: 1,
			OpenTimeout:      cfg.OpenTimeout,
			IsFailure:        IsTransport,
			OnStateChange: func(from, to infra.CBState) {
				log.Info().Str("from", from.String()).Str("to", to.String()).Msg("syncqueue: connectivity changed")
			},
		}),
	}
}

// IsTransport reports whether err means the server was not reached. A
// refusal means it answered.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	_, refused := apierror.As(err)
	return !refused
}

func (c *HTTPCommitter) Online() bool { return c.breaker.State() != infra.CBOpen }

// GoOffline forces offline mode until the breaker's open timeout elapses.
func (c *HTTPCommitter) GoOffline() { c.breaker.Trip() }

func (c *HTTPCommitter) CommitOffline(ctx context.Context, req dto.OfflineJobOrderRequest) (*dto.JobOrderResponse, error) {
	var job dto.JobOrderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/job-orders/offline", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *HTTPCommitter) Holdings(ctx context.Context) ([]dto.HoldingResponse, error) {
	path := "/v1/stock/holdings"
	if c.holderID != "" {
		path += "?holder_id=" + url.QueryEscape(c.holderID)
	}
	var hs []dto.HoldingResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &hs); err != nil {
		return nil, err
	}
	return hs, nil
}

func (c *HTTPCommitter) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.breaker.Execute(func() error {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return decodeRefusal(resp)
	})
}

// decodeRefusal turns an error envelope back into a domain error. Statuses
// that carry no domain meaning (401, 5xx) stay transport errors.
func decodeRefusal(resp *http.Response) error {
	var env struct {
		Detail string            `json:"detail"`
		Kind   apierror.Kind     `json:"kind"`
		Fields map[string]string `json:"fields"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusUnauthorized {
		return &TransportError{Status: resp.StatusCode, Detail: env.Detail}
	}
	e := apierror.FromStatus(resp.StatusCode, env.Kind, env.Detail)
	if e == nil {
		return &TransportError{Status: resp.StatusCode, Detail: env.Detail}
	}
	e.Fields = env.Fields
	return e
}

// TransportError is an unexpected HTTP answer.
type TransportError struct {
	Status int
	Detail string
}

func (e *TransportError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}
