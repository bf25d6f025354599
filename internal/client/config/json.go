package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
	"github.com/dmitrijs2005/gophdrive/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "30s" or as integer nanoseconds.
type JsonConfig struct {
	DatabaseDSN         string         `json:"database_dsn"`
	PageSize            int            `json:"page_size"`
	MaxAttempts         int            `json:"max_attempts"`
	Concurrency         int            `json:"concurrency"`
	RevisionConcurrency int            `json:"revision_concurrency"`
	TransportAttempts   int            `json:"transport_attempts"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	TargetMode          string         `json:"target_mode"`
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	AccessToken         string         `json:"access_token"`
	RefreshToken        string         `json:"refresh_token"`
	S3Region            string         `json:"s3_region"`
	S3Bucket            string         `json:"s3_bucket"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	PresignExpiry       timex.Duration `json:"presign_expiry"`
	LogLevel            string         `json:"log_level"`
	MetricsAddr         string         `json:"metrics_addr"`
	Schedule            string         `json:"schedule"`
}

// jsonConfigPath resolves the JSON file from -c/-config, falling back to
// GOPHDRIVE_CONFIG.
func jsonConfigPath() string {
	if p := flagx.JsonConfigFlags(); p != "" {
		return p
	}
	return os.Getenv(EnvConfigPath)
}

// parseJson overlays Config with the non-zero values of a JSON file.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := jsonConfigPath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setInt(&cfg.PageSize, jc.PageSize)
	setInt(&cfg.MaxAttempts, jc.MaxAttempts)
	setInt(&cfg.Concurrency, jc.Concurrency)
	setInt(&cfg.RevisionConcurrency, jc.RevisionConcurrency)
	setInt(&cfg.TransportAttempts, jc.TransportAttempts)
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	setString(&cfg.TargetMode, jc.TargetMode)
	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.RefreshToken, jc.RefreshToken)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3RootUser, jc.S3RootUser)
	setString(&cfg.S3RootPassword, jc.S3RootPassword)
	if jc.PresignExpiry.Duration > 0 {
		cfg.PresignExpiry = jc.PresignExpiry.Duration
	}
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	setString(&cfg.Schedule, jc.Schedule)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
