package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-p", "-r", "-w", "-n", "-t", "-m", "-l", "-s", "-metrics"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   address and port of the content API
//	-d string   local database DSN
//	-p int      blocks per page
//	-r int      page attempts (including the first)
//	-w int      executor concurrency
//	-n int      revisions uploaded concurrently
//	-t int      request timeout in seconds
//	-m string   target mode: grpc or s3
//	-l string   log level
//	-s string   cron schedule for repeated passes (empty runs once)
//	-metrics    address to serve /metrics on (empty disables)
//
// os.Args is filtered with flagx.FilterArgs so that -c/-config and unknown
// flags do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "local database DSN")
	fs.IntVar(&cfg.PageSize, "p", cfg.PageSize, "blocks per page")
	fs.IntVar(&cfg.MaxAttempts, "r", cfg.MaxAttempts, "page attempts")
	fs.IntVar(&cfg.Concurrency, "w", cfg.Concurrency, "executor concurrency")
	fs.IntVar(&cfg.RevisionConcurrency, "n", cfg.RevisionConcurrency, "revisions uploaded concurrently")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.TargetMode, "m", cfg.TargetMode, "target mode: grpc or s3")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.Schedule, "s", cfg.Schedule, "cron schedule, e.g. \"@every 10m\"")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics listen address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
