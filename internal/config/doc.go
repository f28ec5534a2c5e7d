// Package config provides centralized configuration management for CasePulse.
// It loads configuration from multiple sources, validates it, and exposes a
// type-safe API for the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values from struct tags (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern CASEPULSE_* for namespacing:
//
//	CASEPULSE_SERVER_PORT=8050
//	CASEPULSE_DATA_FILE=Dataset/IndividualDetails.csv
//	CASEPULSE_DATA_WATCH=true
//	CASEPULSE_LOGGING_LEVEL=info
//	CASEPULSE_TELEMETRY_METRIC_EXPORTER=prometheus
//
// # Configuration File
//
// The file is looked up at CASEPULSE_CONFIG, then casepulse.yaml and
// configs/casepulse.yaml relative to the working directory:
//
//	server:
//	  port: 8050
//	data:
//	  file: /srv/data/IndividualDetails.csv
//	  watch_debounce: 1s
package config
