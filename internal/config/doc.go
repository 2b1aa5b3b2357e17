// Package config loads the dashboard configuration.
//
// Values are resolved in three layers, later layers winning:
//
//  1. Default()
//  2. A YAML file: $PHARMSTOCK_CONFIG, config.yaml or configs/config.yaml
//  3. Environment variables prefixed with PHARMSTOCK_
//
// Environment variable names follow the struct nesting, for example:
//
//	PHARMSTOCK_SERVER_PORT=9090
//	PHARMSTOCK_DATASET_PATH=/srv/exports/stock_requests.xlsx
//	PHARMSTOCK_DATASET_DEFAULT_TOP_N=10
//	PHARMSTOCK_LOGGING_LEVEL=debug
//	PHARMSTOCK_TELEMETRY_TRACE_EXPORTER=stdout
//
// A YAML file uses the same structure in snake_case:
//
//	server:
//	  port: 9090
//	dataset:
//	  path: data/stock_requests.xlsx
//	  default_mode: weekly
package config
