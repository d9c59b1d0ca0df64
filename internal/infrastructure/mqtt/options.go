package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// clientIDSuffixLen is the number of hex characters appended to the client ID prefix.
	clientIDSuffixLen = 12

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Will is the last-will message registered with the broker at connect time.
// The broker publishes it if the connection ends without a clean disconnect.
type Will struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// NewClientID returns a client identifier unique to this process instance.
//
// Example: mqtt_3f9a1c0b7d2e
func NewClientID(prefix string) string {
	if prefix == "" {
		prefix = "mqtt"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:clientIDSuffixLen]
	return prefix + "_" + suffix
}

// buildClientOptions creates paho MQTT options from bridge config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with a fixed, bounded retry interval
//   - Keepalive long enough to survive TV sleep/wake cycles
//   - Connect timeout in the low seconds
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - the bridge re-publishes everything it owns on connect.
	opts.SetCleanSession(true)

	// Reconnect is delegated to paho. Both the initial connect and later
	// reconnects retry at the configured interval, never faster.
	interval := cfg.ReconnectInterval()
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(interval)
	opts.SetMaxReconnectInterval(interval)

	opts.SetConnectTimeout(cfg.ConnectTimeoutDuration())
	opts.SetKeepAlive(cfg.KeepAliveDuration())
	opts.SetPingTimeout(pingTimeout(cfg.KeepAliveDuration()))

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureLWT registers the last will on the options.
func configureLWT(opts *pahomqtt.ClientOptions, will Will) error {
	if will.Topic == "" || will.Payload == "" {
		return ErrInvalidWill
	}
	if will.QoS > maxQoS {
		return ErrInvalidQoS
	}

	opts.SetWill(will.Topic, will.Payload, will.QoS, will.Retained)
	return nil
}

// pingTimeout scales the PINGRESP wait with the keepalive, capped so a dead
// link is still noticed promptly after wake-up.
func pingTimeout(keepAlive time.Duration) time.Duration {
	const maxPingTimeout = 20 * time.Second
	timeout := keepAlive / 6
	if timeout < 5*time.Second {
		return 5 * time.Second
	}
	if timeout > maxPingTimeout {
		return maxPingTimeout
	}
	return timeout
}
