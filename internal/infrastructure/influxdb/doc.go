// Package influxdb mirrors published Sparkplug metrics into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched metric writing and health monitoring.
//
// # Purpose
//
// Every payload the edge node publishes can be recorded as time-series data:
//   - sparkplug_metrics: one field per metric of each NBIRTH and NDATA
//   - sparkplug_node_state: online/offline transitions from NBIRTH and NDEATH
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "spbnode",
//	    Bucket:  "sparkplug",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sess, err := session.New(transport, codec, topics, session.WithObserver(client))
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
