// Package session implements the Sparkplug B edge node session.
//
// A Session owns one transport connection and drives the node lifecycle:
//
//	Disconnected ──Connect──▶ AwaitingBirth ──birth published──▶ Live
//	Live ──Publish──▶ Live
//	Live ──Disconnect──▶ Dead
//
// Any transport failure moves the session to Failed. Dead and Failed are
// terminal; a new Session is required to reconnect, which also guarantees a
// fresh birth with sequence number 0.
//
// # Death Certificate
//
// The NDEATH payload is encoded before the transport connects and registered
// as the MQTT last will. Disconnect publishes the very same bytes, so an
// abrupt loss and a graceful shutdown produce an identical death message.
//
// # Concurrency
//
// Connect, Publish and Disconnect are meant to be called sequentially by one
// goroutine. State and Snapshot may be called from any goroutine (the status
// API reads them while the publisher loop runs).
//
// # Usage
//
//	s, err := session.New(transport, codec, topics,
//	    session.WithCredentials(creds),
//	    session.WithLogger(log),
//	)
//	if err := s.Connect(ctx); err != nil { ... }
//	err = s.Publish(ctx, sparkplug.Values{"temp": 21.5})
//	err = s.Disconnect(ctx)
package session
