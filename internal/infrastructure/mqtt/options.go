package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/spbnode/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// clientIDPrefix prefixes generated client identifiers.
	clientIDPrefix = "spbnode-"

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from spbnode config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID, generated when the config leaves it empty
//   - Clean session mode
//   - Keepalive and connect timeout
//   - TLS configuration (if enabled)
//
// Reconnection is disabled. A Sparkplug node that loses its connection has
// to publish a new birth certificate, which the session layer does by
// starting a new session rather than the library reconnecting silently.
//
// Credentials and the last will are applied later through SetCredentials
// and SetLastWill, before Connect.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(clientID(cfg.Broker.ClientID))

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(cfg.ConnectTimeoutDuration())
	opts.SetKeepAlive(cfg.KeepAliveDuration())

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// clientID returns id, or a generated identifier when id is empty.
func clientID(id string) string {
	if id != "" {
		return id
	}
	return clientIDPrefix + uuid.NewString()[:8]
}
