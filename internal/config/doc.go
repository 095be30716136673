// Package config loads the configuration of the basic-cleaning step.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML file (--config, CLEANING_CONFIG_FILE or ./cleaning.yaml)
//	3. Default values from struct tags (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern CLEANING_<SECTION>_<FIELD>:
//
//	CLEANING_LOGGING_LEVEL=debug
//	CLEANING_TRACKING_DSN=postgres://user:pass@db/tracking
//	CLEANING_STORAGE_BACKEND=gcs
//	CLEANING_STORAGE_BUCKET=pipeline-artifacts
//	CLEANING_EVENTS_BROKERS=kafka-1:9092,kafka-2:9092
//
// # Path Management
//
// Paths resolves the work directory once per run; downloaded artifacts and
// the produced CSV are placed beneath it.
package config
