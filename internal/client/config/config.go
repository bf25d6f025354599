package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	TargetModeGRPC = "grpc"
	TargetModeS3   = "s3"
)

// Config holds runtime settings for the gophdrive uploader.
//
// Units: RequestTimeout and PresignExpiry are time.Duration values.
type Config struct {
	DatabaseDSN string

	PageSize            int
	MaxAttempts         int
	Concurrency         int
	RevisionConcurrency int
	TransportAttempts   int
	RequestTimeout      time.Duration

	TargetMode         string
	ServerEndpointAddr string
	AccessToken        string
	RefreshToken       string

	S3Region       string
	S3Bucket       string
	S3BaseEndpoint string
	S3RootUser     string
	S3RootPassword string
	PresignExpiry  time.Duration

	LogLevel    string
	MetricsAddr string

	// Schedule is a cron spec; empty means a single pass.
	Schedule string
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a cron spec such as "*/5 * * * *" or "@every 10m".
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "gophdrive.db"
	c.PageSize = 50
	c.MaxAttempts = 3
	c.Concurrency = runtime.NumCPU() * 4
	c.RevisionConcurrency = 2
	c.TransportAttempts = 3
	c.RequestTimeout = 30 * time.Second
	c.TargetMode = TargetModeGRPC
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.S3Region = "us-east-1"
	c.S3Bucket = "gophdrive"
	c.PresignExpiry = 15 * time.Minute
	c.LogLevel = "info"
}

// Validate reports the first setting that cannot drive an upload.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseDSN == "":
		return errors.New("database dsn is empty")
	case c.PageSize < 1:
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	case c.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	case c.RevisionConcurrency < 1:
		return fmt.Errorf("revision concurrency must be positive, got %d", c.RevisionConcurrency)
	case c.TransportAttempts < 1:
		return fmt.Errorf("transport attempts must be positive, got %d", c.TransportAttempts)
	}

	if c.Schedule != "" {
		if _, err := ParseSchedule(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}

	switch c.TargetMode {
	case TargetModeGRPC:
		if c.ServerEndpointAddr == "" {
			return errors.New("server address is required in grpc mode")
		}
	case TargetModeS3:
		if c.S3Bucket == "" {
			return errors.New("s3 bucket is required in s3 mode")
		}
	default:
		return fmt.Errorf("unknown target mode %q", c.TargetMode)
	}

	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
