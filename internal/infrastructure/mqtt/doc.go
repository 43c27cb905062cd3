// Package mqtt provides the MQTT transport for a Sparkplug B edge node.
//
// This package manages:
//   - A single connection to the broker, configured before it is opened
//   - Credentials and a binary last will set per connection
//   - Publishing with the configured QoS, never retained
//   - Connection health monitoring
//
// Client satisfies session.Transport.
//
// # Reconnection
//
// Auto-reconnect is disabled. When the connection drops the broker
// publishes the registered will (the NDEATH certificate) and the client
// stays disconnected. Recovery means a new session with a fresh birth.
//
// # Security Considerations
//
//   - TLS should be enabled for brokers outside the local host (cfg.Broker.TLS=true)
//   - Credentials come from the secrets file, never from config.yaml
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	client.SetCredentials(creds.Username, creds.Password)
//	client.SetLastWill(topics.NDeath(), death)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
//
//	err := client.Publish(ctx, topics.NData(), payload)
package mqtt
