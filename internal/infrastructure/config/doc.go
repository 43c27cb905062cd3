// Package config handles loading and validating spbnode configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials are never stored here; they live in the secrets
//     file named by credentials.secrets_file
//   - The InfluxDB token should be set via SPBNODE_INFLUXDB_TOKEN
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sparkplug.Group, cfg.Sparkplug.Node)
package config
