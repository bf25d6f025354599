// Package config loads runtime configuration for the gophdrive uploader.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config, or GOPHDRIVE_CONFIG.
//  3. Secrets from the environment (GOPHDRIVE_ACCESS_TOKEN,
//     GOPHDRIVE_REFRESH_TOKEN, GOPHDRIVE_S3_ROOT_USER,
//     GOPHDRIVE_S3_ROOT_PASSWORD).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "database_dsn": "gophdrive.db",
//	  "page_size": 50,
//	  "request_timeout": "30s",
//	  "target_mode": "s3",
//	  "s3_bucket": "gophdrive",
//	  "s3_base_endpoint": "http://127.0.0.1:9000",
//	  "schedule": "@every 10m"
//	}
//
// Zero values in the JSON file leave the previous value untouched.
package config
