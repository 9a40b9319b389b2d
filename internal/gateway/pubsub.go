package gateway

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
)

// Pub/sub transport constants.
const (
	// connectTimeout is the maximum time to wait for the initial connection.
	connectTimeout = 10 * time.Second

	// publishTimeout is the maximum time to wait for publish acknowledgment.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	disconnectQuiesce = 1000

	// keepAlive is the keepalive interval for the connection.
	keepAlive = 60 * time.Second
)

// pubsubTransport is the low-latency publish/subscribe transport for
// control signals, built on MQTT with the provider's topic convention
// {account}/feeds/{feedKey}.
//
// Subscriptions are tracked and automatically restored on reconnect.
// Handler panics are recovered and logged, never propagated into the
// receive loop.
type pubsubTransport struct {
	client pahomqtt.Client
	cfg    config.GatewayConfig
	qos    byte

	subscriptions map[string]feedSubscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	logger Logger
}

// feedSubscription holds subscription details for restoration on reconnect.
type feedSubscription struct {
	feedKey string
	handler func(Reading)
}

// connectPubSub establishes the MQTT connection to the gateway.
func connectPubSub(cfg config.GatewayConfig, logger Logger) (*pubsubTransport, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	t := &pubsubTransport{
		cfg:           cfg,
		qos:           byte(cfg.MQTT.QoS),
		subscriptions: make(map[string]feedSubscription),
		logger:        logger,
	}

	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.MQTT.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(cfg.MQTT.ClientID)

	// The gateway authenticates MQTT sessions with the account name and the
	// same API key the REST transport sends in its header.
	opts.SetUsername(cfg.Account)
	opts.SetPassword(cfg.Key)

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	if cfg.MQTT.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.handleDisconnect(err)
	})

	t.client = pahomqtt.NewClient(opts)
	token := t.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrNotConnected, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	// The OnConnect callback runs asynchronously and may not have fired
	// yet; set connected here so IsConnected is immediately true.
	t.connMu.Lock()
	t.connected = true
	t.connMu.Unlock()

	return t, nil
}

// feedTopic builds the provider topic for a feed key.
func (t *pubsubTransport) feedTopic(feedKey string) string {
	return t.cfg.Account + "/feeds/" + feedKey
}

// handleConnect restores tracked subscriptions after (re)connection.
func (t *pubsubTransport) handleConnect() {
	t.connMu.Lock()
	t.connected = true
	t.connMu.Unlock()

	t.subMu.RLock()
	defer t.subMu.RUnlock()
	for _, sub := range t.subscriptions {
		t.client.Subscribe(t.feedTopic(sub.feedKey), t.qos, t.wrapHandler(sub.feedKey, sub.handler))
	}
}

func (t *pubsubTransport) handleDisconnect(err error) {
	t.connMu.Lock()
	t.connected = false
	t.connMu.Unlock()

	t.logger.Warn("gateway pubsub disconnected", "error", err)
}

// IsConnected returns the current connection state.
func (t *pubsubTransport) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected && t.client.IsConnected()
}

// SendValue publishes a value to a feed topic.
//
// Returns:
//   - error: ErrNotConnected when offline, ErrPublishFailed on send failure
func (t *pubsubTransport) SendValue(feedKey, value string) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Publish(t.feedTopic(feedKey), t.qos, false, value)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Subscribe registers a handler for inbound values on a feed.
//
// The handler is dispatched synchronously on the receive loop and must not
// block. Panics are recovered and logged.
func (t *pubsubTransport) Subscribe(feedKey string, handler func(Reading)) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !t.IsConnected() {
		return ErrNotConnected
	}

	t.subMu.Lock()
	t.subscriptions[feedKey] = feedSubscription{feedKey: feedKey, handler: handler}
	t.subMu.Unlock()

	token := t.client.Subscribe(t.feedTopic(feedKey), t.qos, t.wrapHandler(feedKey, handler))
	if !token.WaitTimeout(publishTimeout) {
		t.dropSubscription(feedKey)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		t.dropSubscription(feedKey)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

func (t *pubsubTransport) dropSubscription(feedKey string) {
	t.subMu.Lock()
	delete(t.subscriptions, feedKey)
	t.subMu.Unlock()
}

// wrapHandler converts an inbound MQTT message to a Reading and guards the
// handler with panic recovery.
func (t *pubsubTransport) wrapHandler(feedKey string, handler func(Reading)) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("gateway handler panic recovered",
					"feed", feedKey,
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		handler(Reading{
			Value:     strings.TrimSpace(string(msg.Payload())),
			CreatedAt: time.Now().UTC(),
		})
	}
}

// Close disconnects from the broker after a short quiesce period.
func (t *pubsubTransport) Close() error {
	if t.client == nil {
		return nil
	}

	t.client.Disconnect(disconnectQuiesce)

	t.connMu.Lock()
	t.connected = false
	t.connMu.Unlock()

	return nil
}
