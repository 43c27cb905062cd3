// Package publisher drives a Sparkplug session with periodic NDATA messages.
//
// A Loop asks its Generator for the values of message i and publishes them
// every interval, starting immediately. It stops after the configured count,
// when its context is cancelled, or at the first publish error.
//
//	loop, err := publisher.New(sess, publisher.CounterGenerator(schema), cfg.Publisher)
//	if err := loop.Run(ctx); err != nil {
//	    // session is no longer usable
//	}
package publisher
