package config

import "os"

const (
	EnvConfigPath     = "GOPHDRIVE_CONFIG"
	EnvAccessToken    = "GOPHDRIVE_ACCESS_TOKEN"
	EnvRefreshToken   = "GOPHDRIVE_REFRESH_TOKEN"
	EnvS3RootUser     = "GOPHDRIVE_S3_ROOT_USER"
	EnvS3RootPassword = "GOPHDRIVE_S3_ROOT_PASSWORD"
)

// parseEnv overlays secrets that should not live in a config file.
func parseEnv(cfg *Config) {
	overlay := func(dst *string, name string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}

	overlay(&cfg.AccessToken, EnvAccessToken)
	overlay(&cfg.RefreshToken, EnvRefreshToken)
	overlay(&cfg.S3RootUser, EnvS3RootUser)
	overlay(&cfg.S3RootPassword, EnvS3RootPassword)
}
