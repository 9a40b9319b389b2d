package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
)

// maxResponseBytes bounds how much of a provider response we read.
const maxResponseBytes = 1 << 20 // 1MB

// restTransport is the request/response transport: feed and group
// provisioning, data writes, and bulk reads over the provider's REST API.
//
// All calls go through a circuit breaker so a dead provider fails fast
// instead of stacking up blocked goroutines behind HTTP timeouts.
type restTransport struct {
	baseURL string
	account string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// newRESTTransport creates the REST transport from gateway config.
func newRESTTransport(cfg config.GatewayConfig) *restTransport {
	return &restTransport{
		baseURL: cfg.REST.BaseURL,
		account: cfg.Account,
		apiKey:  cfg.Key,
		client:  &http.Client{Timeout: cfg.REST.RequestTimeout()},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "gateway-rest",
			Interval: time.Duration(cfg.Breaker.IntervalMS) * time.Millisecond,
			Timeout:  time.Duration(cfg.Breaker.OpenMS) * time.Millisecond,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(cfg.Breaker.Failures)
			},
		}),
	}
}

// GetFeed retrieves a feed by key.
func (t *restTransport) GetFeed(ctx context.Context, key string) (*Feed, error) {
	var feed Feed
	path := fmt.Sprintf("/%s/feeds/%s", t.account, url.PathEscape(key))
	if err := t.do(ctx, http.MethodGet, path, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// CreateFeed creates a feed, optionally inside a group.
func (t *restTransport) CreateFeed(ctx context.Context, feed Feed, groupKey string) (*Feed, error) {
	path := fmt.Sprintf("/%s/feeds", t.account)
	if groupKey != "" {
		path = fmt.Sprintf("/%s/groups/%s/feeds", t.account, url.PathEscape(groupKey))
	}

	var created Feed
	if err := t.do(ctx, http.MethodPost, path, feed, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetGroup retrieves a group by key.
func (t *restTransport) GetGroup(ctx context.Context, key string) (*Group, error) {
	var group Group
	path := fmt.Sprintf("/%s/groups/%s", t.account, url.PathEscape(key))
	if err := t.do(ctx, http.MethodGet, path, nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateGroup creates a group.
func (t *restTransport) CreateGroup(ctx context.Context, group Group) (*Group, error) {
	var created Group
	path := fmt.Sprintf("/%s/groups", t.account)
	if err := t.do(ctx, http.MethodPost, path, group, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateData appends a data point to a feed.
func (t *restTransport) CreateData(ctx context.Context, feedKey, value string) error {
	path := fmt.Sprintf("/%s/feeds/%s/data", t.account, url.PathEscape(feedKey))
	body := map[string]string{"value": value}
	return t.do(ctx, http.MethodPost, path, body, nil)
}

// LastData retrieves the most recent data point of a feed.
//
// This uses the provider's single-item endpoint rather than the range read:
// the range endpoint paginates oldest-first, so "limit 1" there returns the
// oldest point, not the latest.
func (t *restTransport) LastData(ctx context.Context, feedKey string) (*Reading, error) {
	var reading Reading
	path := fmt.Sprintf("/%s/feeds/%s/data/last", t.account, url.PathEscape(feedKey))
	if err := t.do(ctx, http.MethodGet, path, nil, &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// ListData retrieves up to limit recent data points, provider-ordered.
func (t *restTransport) ListData(ctx context.Context, feedKey string, limit int) ([]Reading, error) {
	var readings []Reading
	path := fmt.Sprintf("/%s/feeds/%s/data?limit=%d", t.account, url.PathEscape(feedKey), limit)
	if err := t.do(ctx, http.MethodGet, path, nil, &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// do executes one HTTP call through the circuit breaker, classifying the
// response status into the gateway error taxonomy.
func (t *restTransport) do(ctx context.Context, method, path string, body, out any) error {
	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.doOnce(ctx, method, path, body, out)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
		}
		return err
	}
	return nil
}

func (t *restTransport) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-Key", t.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	if out != nil {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// classifyStatus maps an HTTP status code to the gateway error taxonomy.
//
// 2xx is success; 401/403 are fatal; 404 triggers provisioning; 429 and
// 5xx are transient.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("gateway: unexpected status %d", code)
	}
}
