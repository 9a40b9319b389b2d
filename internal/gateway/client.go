package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
	"github.com/verdant-labs/greenhouse-core/internal/metrics"
)

// Logger is the minimal logging interface the gateway needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// pubsubAPI is the publish/subscribe transport as the client sees it.
type pubsubAPI interface {
	IsConnected() bool
	SendValue(feedKey, value string) error
	Subscribe(feedKey string, handler func(Reading)) error
	Close() error
}

// restAPI is the request/response transport as the client sees it.
type restAPI interface {
	GetFeed(ctx context.Context, key string) (*Feed, error)
	CreateFeed(ctx context.Context, feed Feed, groupKey string) (*Feed, error)
	GetGroup(ctx context.Context, key string) (*Group, error)
	CreateGroup(ctx context.Context, group Group) (*Group, error)
	CreateData(ctx context.Context, feedKey, value string) error
	LastData(ctx context.Context, feedKey string) (*Reading, error)
	ListData(ctx context.Context, feedKey string, limit int) ([]Reading, error)
}

// Client bridges in-process logic to the remote IoT feed platform over two
// transports: pub/sub for low-latency control signals and REST for
// provisioning and bulk reads.
//
// Writes are at-least-once: a publish may double-fire across the two
// transports if a pub/sub send partially succeeds before reporting failure.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	pubsub pubsubAPI
	rest   restAPI
	cfg    config.GatewayConfig
	logger Logger

	// bindings caches provisioned feeds for the client's lifetime.
	bindings map[string]FeedBinding
	bindMu   sync.RWMutex
}

// Connect builds both transports and returns a ready client.
//
// The pub/sub connection is established eagerly; REST calls are made lazily.
//
// Parameters:
//   - cfg: Gateway configuration from config.yaml
//   - logger: Logger instance (may be nil)
//
// Returns:
//   - *Client: Connected client
//   - error: If the pub/sub connection fails
func Connect(cfg config.GatewayConfig, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	pubsub, err := connectPubSub(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting pubsub transport: %w", err)
	}

	return newClient(pubsub, newRESTTransport(cfg), cfg, logger), nil
}

// newClient wires a client from its parts. Split out from Connect so tests
// can inject fake transports.
func newClient(pubsub pubsubAPI, rest restAPI, cfg config.GatewayConfig, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		pubsub:   pubsub,
		rest:     rest,
		cfg:      cfg,
		logger:   logger,
		bindings: make(map[string]FeedBinding),
	}
}

// EnsureFeed checks that a feed exists on the provider, creating it (and
// its group) if missing. Idempotent: repeated calls return the cached
// binding without touching the network.
//
// Failure handling:
//   - ErrUnauthorized: fatal, returned immediately without retry
//   - ErrNotFound: triggers creation
//   - transient (rate limit / unavailable): retried with fixed delay up to
//     the configured attempt count
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - key: Provider feed key
//   - name: Human-readable feed name
//   - description: Feed description
//   - groupKey: Optional group to create the feed in ("" for none)
//
// Returns:
//   - FeedBinding: The provisioned binding
//   - error: If provisioning fails after retries
func (c *Client) EnsureFeed(ctx context.Context, key, name, description, groupKey string) (FeedBinding, error) {
	c.bindMu.RLock()
	if binding, ok := c.bindings[key]; ok {
		c.bindMu.RUnlock()
		return binding, nil
	}
	c.bindMu.RUnlock()

	var binding FeedBinding
	op := func() error {
		b, err := c.ensureFeedOnce(ctx, key, name, description, groupKey)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				c.logger.Error("gateway authentication failed, not retrying", "feed", key, "error", err)
				return backoff.Permanent(err)
			}
			if IsTransient(err) {
				c.logger.Warn("transient gateway failure, will retry", "feed", key, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		binding = b
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(c.cfg.Retry.RetryDelay()),
			uint64(c.cfg.Retry.Attempts),
		),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return FeedBinding{}, fmt.Errorf("ensuring feed %q: %w", key, err)
	}

	c.bindMu.Lock()
	c.bindings[key] = binding
	c.bindMu.Unlock()

	c.logger.Debug("feed provisioned", "feed", key, "group", groupKey)
	return binding, nil
}

// ensureFeedOnce performs one check-then-create pass.
func (c *Client) ensureFeedOnce(ctx context.Context, key, name, description, groupKey string) (FeedBinding, error) {
	feed, err := c.rest.GetFeed(ctx, key)
	if err == nil {
		return FeedBinding{Name: name, FeedKey: feed.Key, GroupKey: groupKey}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return FeedBinding{}, err
	}

	if groupKey != "" {
		if err := c.ensureGroup(ctx, groupKey); err != nil {
			return FeedBinding{}, err
		}
	}

	created, err := c.rest.CreateFeed(ctx, Feed{Key: key, Name: name, Description: description}, groupKey)
	if err != nil {
		return FeedBinding{}, err
	}
	c.logger.Info("feed created", "feed", created.Key, "group", groupKey)

	return FeedBinding{Name: name, FeedKey: created.Key, GroupKey: groupKey}, nil
}

// ensureGroup makes sure the group exists, creating it if missing.
func (c *Client) ensureGroup(ctx context.Context, key string) error {
	_, err := c.rest.GetGroup(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	if _, err := c.rest.CreateGroup(ctx, Group{Key: key, Name: key}); err != nil {
		return err
	}
	c.logger.Info("group created", "group", key)
	return nil
}

// Publish sends a value to a feed, trying pub/sub first and transparently
// falling back to REST on disconnect or send failure.
//
// Returns a uniform boolean regardless of which transport served the call;
// the serving transport is recorded in logs and metrics. At-least-once: the
// value may reach the provider twice if the pub/sub send partially
// succeeded before reporting failure.
func (c *Client) Publish(ctx context.Context, feedKey, value string) bool {
	if c.pubsub.IsConnected() {
		if err := c.pubsub.SendValue(feedKey, value); err == nil {
			metrics.GatewayPublishes.WithLabelValues(TransportPubSub, "ok").Inc()
			return true
		} else {
			c.logger.Warn("pubsub publish failed, falling back to rest", "feed", feedKey, "error", err)
			metrics.GatewayPublishes.WithLabelValues(TransportPubSub, "failed").Inc()
		}
	}

	if err := c.rest.CreateData(ctx, feedKey, value); err != nil {
		c.logger.Error("publish failed on both transports", "feed", feedKey, "error", err)
		metrics.GatewayPublishes.WithLabelValues(TransportREST, "failed").Inc()
		return false
	}

	metrics.GatewayPublishes.WithLabelValues(TransportREST, "ok").Inc()
	return true
}

// Latest returns the most recent reading of a feed.
//
// It uses the provider's single-item last-value endpoint; on failure it
// falls back to a range read scoped to one item.
//
// Returns:
//   - *Reading: The latest reading, or nil when the feed has no data
//   - error: If both read paths fail
func (c *Client) Latest(ctx context.Context, feedKey string) (*Reading, error) {
	reading, err := c.rest.LastData(ctx, feedKey)
	if err == nil {
		return reading, nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}

	c.logger.Debug("last-value read failed, falling back to range read", "feed", feedKey, "error", err)

	readings, listErr := c.rest.ListData(ctx, feedKey, 1)
	if listErr != nil {
		return nil, fmt.Errorf("reading latest %q: %w", feedKey, listErr)
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// History returns up to limit recent readings, provider-ordered.
func (c *Client) History(ctx context.Context, feedKey string, limit int) ([]Reading, error) {
	readings, err := c.rest.ListData(ctx, feedKey, limit)
	if err != nil {
		return nil, fmt.Errorf("reading history %q: %w", feedKey, err)
	}
	return readings, nil
}

// RegisterHandler subscribes the pub/sub channel for a feed. Inbound
// readings dispatch synchronously to the callback on the receive loop;
// the callback must not block, and its panics are recovered and logged.
func (c *Client) RegisterHandler(feedKey string, handler func(Reading)) error {
	return c.pubsub.Subscribe(feedKey, handler)
}

// Close shuts down the pub/sub transport.
func (c *Client) Close() error {
	return c.pubsub.Close()
}
