package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the bridge's broker connection capability.
//
// It owns the transport: last will, keepalive, connect timeout and the
// automatic reconnect policy. Callers see only lifecycle callbacks, a live
// connection flag and a non-blocking publish.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callbacks run on paho goroutines and must not block.
type Client struct {
	client   pahomqtt.Client
	options  *pahomqtt.ClientOptions
	cfg      config.MQTTConfig
	clientID string
	will     Will

	// Lifecycle callbacks (optional, set via the Set* methods before Connect).
	onConnect        func()
	onConnectionLost func(err error)
	onReconnecting   func()
	callbackMu       sync.RWMutex

	// logger for connection diagnostics (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New builds a client for the configured broker with the given last will.
// It does not touch the network; call Connect to start the connection.
func New(cfg config.MQTTConfig, will Will) (*Client, error) {
	clientID := NewClientID(cfg.Broker.ClientIDPrefix)
	opts := buildClientOptions(cfg, clientID)
	if err := configureLWT(opts, will); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		cfg:      cfg,
		options:  opts,
		clientID: clientID,
		will:     will,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.handleReconnecting()
	})
	opts.SetConnectionAttemptHandler(func(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
		if logger := c.getLogger(); logger != nil {
			logger.Info("MQTT connection attempt", "broker", broker.Host, "client_id", clientID)
		}
		return tlsCfg
	})

	c.client = pahomqtt.NewClient(opts)
	return c, nil
}

// Connect starts connecting to the broker and returns immediately.
//
// The client retries at the configured interval until the broker accepts the
// connection; the OnConnect callback fires once that happens and again after
// every automatic reconnect. An error is returned only when the attempt could
// not be started at all.
func (c *Client) Connect() error {
	if c.client == nil {
		return fmt.Errorf("%w: client not initialised", ErrConnectionFailed)
	}

	token := c.client.Connect()

	// With connect-retry enabled the token completes only on success or when
	// the broker rejects us outright (bad credentials, bad client ID).
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT connection failed", "broker", c.cfg.BrokerAddress(), "error", err)
			}
		}
	}()

	return nil
}

// handleConnect is called when the connection is established.
func (c *Client) handleConnect() {
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleConnectionLost is called when an established connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.callbackMu.RLock()
	callback := c.onConnectionLost
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// handleReconnecting is called before each automatic reconnect attempt.
func (c *Client) handleReconnecting() {
	c.callbackMu.RLock()
	callback := c.onReconnecting
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// HealthCheck verifies the MQTT connection is alive.
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

// IsConnected reports paho's live connection state. It is false while a
// reconnect is in progress.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	return c.client.IsConnectionOpen()
}

// ClientID returns the per-instance client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// Will returns the registered last will.
func (c *Client) Will() Will {
	return c.will
}

// SetOnConnect sets a callback invoked on the initial connect and on every
// automatic reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnConnectionLost sets a callback invoked when an established connection drops.
func (c *Client) SetOnConnectionLost(callback func(err error)) {
	c.callbackMu.Lock()
	c.onConnectionLost = callback
	c.callbackMu.Unlock()
}

// SetOnReconnecting sets a callback invoked before each reconnect attempt.
func (c *Client) SetOnReconnecting(callback func()) {
	c.callbackMu.Lock()
	c.onReconnecting = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection diagnostics.
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
