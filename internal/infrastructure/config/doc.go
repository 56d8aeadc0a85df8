// Package config handles loading and validating the IoT device core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (IOTCORE_*)
//   - Validation of required fields
//   - Default value handling
//
// Credentials (MQTT password, InfluxDB token, Redis password) should be set
// via environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Service.Name)
package config
