// Package config provides configuration management for Callisto.
//
// Configuration is read from a YAML file, decoded on top of the built-in
// defaults, optionally overridden from the environment and validated. It is
// loaded once at startup and stays fixed for the session.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("callisto.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("callisto.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CALLISTO_SECTION_FIELD:
//
//   - CALLISTO_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CALLISTO_ENGINE_TRANSPARENT overrides engine.transparent
//   - CALLISTO_STORAGE_SQLITE_DRIVER overrides storage.sqlite.driver
//   - CALLISTO_DETECTION_BLACKLIST overrides detection.blacklist (comma separated)
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8480"
//
//	engine:
//	  transparent: true
//	  passive_learning: true
//	  notify_redirects: false
//
//	network:
//	  disable_on_domain: true
//	  domain_filter: "gmu.edu"
//
//	storage:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/callisto.db"
//	    driver: "sqlite"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    insecure: true
package config
