package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/spbnode/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the transport of a Sparkplug session.
//
// A Client is configured (credentials, last will) and then connected once.
// After Disconnect or a lost connection it stays closed; a new session
// creates a new Client.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg            config.MQTTConfig
	connectTimeout time.Duration

	// optMu guards options and client.
	optMu   sync.Mutex
	options *pahomqtt.ClientOptions
	client  pahomqtt.Client

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// onConnectionLost is invoked when the broker connection drops.
	onConnectionLost func(err error)
	callbackMu       sync.RWMutex

	// logger for connection event logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// New creates an unconnected Client from config.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for SetCredentials, SetLastWill and Connect
func New(cfg config.MQTTConfig) *Client {
	c := &Client{
		cfg:            cfg,
		connectTimeout: cfg.ConnectTimeoutDuration(),
		options:        buildClientOptions(cfg),
	}

	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	return c
}

// ClientID returns the MQTT client identifier, generated if not configured.
func (c *Client) ClientID() string {
	c.optMu.Lock()
	defer c.optMu.Unlock()
	reader := pahomqtt.NewOptionsReader(c.options)
	return reader.ClientID()
}

// SetCredentials sets the username and password sent in the CONNECT packet.
// It has no effect on an established connection.
func (c *Client) SetCredentials(username, password string) {
	c.optMu.Lock()
	defer c.optMu.Unlock()
	c.options.SetUsername(username)
	c.options.SetPassword(password)
}

// SetLastWill registers payload as the message the broker publishes on
// topic if the connection ends without a DISCONNECT.
//
// The will uses the configured QoS and is never retained. It has no effect
// on an established connection.
func (c *Client) SetLastWill(topic string, payload []byte) {
	c.optMu.Lock()
	defer c.optMu.Unlock()
	c.options.SetBinaryWill(topic, payload, byte(c.cfg.QoS), false)
}

// Connect establishes the connection to the broker.
//
// It waits for the CONNACK until the configured connect timeout elapses or
// ctx is done.
//
// Returns:
//   - error: ErrAlreadyConnected, or ErrConnectionFailed wrapping the cause
//     (ErrTimeout, a context error or the broker's refusal)
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}

	c.optMu.Lock()
	client := pahomqtt.NewClient(c.options)
	c.client = client
	c.optMu.Unlock()

	token := client.Connect()
	if err := waitToken(ctx, token, c.connectTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connection lost handler can only fire after this point, so the
	// state is set here rather than in an on-connect callback.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Info("mqtt connected", "client_id", c.ClientID())
	}
	return nil
}

// Disconnect closes the connection with a DISCONNECT packet, so the broker
// discards the last will.
//
// Returns:
//   - error: nil; disconnecting a closed client is not an error
func (c *Client) Disconnect() error {
	c.optMu.Lock()
	client := c.client
	c.optMu.Unlock()

	if client == nil {
		return nil
	}

	if client.IsConnected() {
		client.Disconnect(defaultDisconnectQuiesce)
	}

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// handleConnectionLost is called by paho when the connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onConnectionLost
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.optMu.Lock()
	client := c.client
	c.optMu.Unlock()

	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && client != nil && client.IsConnected()
}

// SetOnConnectionLost sets a callback invoked when the connection drops
// without Disconnect. The broker delivers the last will in that case.
func (c *Client) SetOnConnectionLost(callback func(err error)) {
	c.callbackMu.Lock()
	c.onConnectionLost = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// waitToken blocks until token completes, ctx is done or timeout elapses.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
