package cmd

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/securescan/internal/scanner"
)

const (
	defaultConcurrency        = 50
	defaultConnectTimeoutSecs = 3
	defaultBannerTimeoutSecs  = 2
	defaultHTTPTimeoutSecs    = 10
	defaultTLSTimeoutSecs     = 5
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Scan  ScanRuntimeConfig
	Serve ServeRuntimeConfig
}

// ScanRuntimeConfig consolidates flag- and file-driven settings for the
// scan engine.
type ScanRuntimeConfig struct {
	Concurrency        int
	ConnectTimeoutSecs int
	BannerTimeoutSecs  int
	HTTPTimeoutSecs    int
	TLSTimeoutSecs     int
	TLSPort            int
}

// ServeRuntimeConfig captures API server options.
type ServeRuntimeConfig struct {
	Addr            string
	AuthToken       string
	CORSOrigins     []string
	RateLimit       int
	RateBurst       int
	MaxJobs         int
	ShutdownTimeout time.Duration
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Scan: ScanRuntimeConfig{
			Concurrency:        defaultConcurrency,
			ConnectTimeoutSecs: defaultConnectTimeoutSecs,
			BannerTimeoutSecs:  defaultBannerTimeoutSecs,
			HTTPTimeoutSecs:    defaultHTTPTimeoutSecs,
			TLSTimeoutSecs:     defaultTLSTimeoutSecs,
			TLSPort:            443,
		},
		Serve: ServeRuntimeConfig{
			Addr:            "127.0.0.1:8080",
			RateLimit:       10,
			RateBurst:       20,
			MaxJobs:         1000,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

// applyConfigDefaults merges config file values into the runtime config.
// Flags still win: they are read after this runs and overwrite per-command.
func applyConfigDefaults() {
	if viper.IsSet("scan.concurrency") {
		cliConfig.Scan.Concurrency = viper.GetInt("scan.concurrency")
	}
	if viper.IsSet("scan.connect_timeout_secs") {
		cliConfig.Scan.ConnectTimeoutSecs = viper.GetInt("scan.connect_timeout_secs")
	}
	if viper.IsSet("scan.banner_timeout_secs") {
		cliConfig.Scan.BannerTimeoutSecs = viper.GetInt("scan.banner_timeout_secs")
	}
	if viper.IsSet("scan.http_timeout_secs") {
		cliConfig.Scan.HTTPTimeoutSecs = viper.GetInt("scan.http_timeout_secs")
	}
	if viper.IsSet("scan.tls_timeout_secs") {
		cliConfig.Scan.TLSTimeoutSecs = viper.GetInt("scan.tls_timeout_secs")
	}
	if viper.IsSet("scan.tls_port") {
		cliConfig.Scan.TLSPort = viper.GetInt("scan.tls_port")
	}
	if viper.IsSet("serve.addr") {
		cliConfig.Serve.Addr = viper.GetString("serve.addr")
	}
	if viper.IsSet("serve.auth_token") {
		cliConfig.Serve.AuthToken = viper.GetString("serve.auth_token")
	}
	if viper.IsSet("serve.cors_origins") {
		cliConfig.Serve.CORSOrigins = viper.GetStringSlice("serve.cors_origins")
	}
	if viper.IsSet("serve.rate_limit") {
		cliConfig.Serve.RateLimit = viper.GetInt("serve.rate_limit")
	}
	if viper.IsSet("serve.rate_burst") {
		cliConfig.Serve.RateBurst = viper.GetInt("serve.rate_burst")
	}
	if viper.IsSet("serve.max_jobs") {
		cliConfig.Serve.MaxJobs = viper.GetInt("serve.max_jobs")
	}
}

// intFlagOrConfig prefers an explicitly set flag over the config file value.
func intFlagOrConfig(fs *pflag.FlagSet, name string, flagVal, cfgVal int) int {
	if fs.Changed(name) {
		return flagVal
	}
	return cfgVal
}

// scannerConfig converts the CLI view into the engine's config.
func (c *ScanRuntimeConfig) scannerConfig() scanner.Config {
	return scanner.Config{
		Concurrency:    c.Concurrency,
		ConnectTimeout: time.Duration(c.ConnectTimeoutSecs) * time.Second,
		BannerTimeout:  time.Duration(c.BannerTimeoutSecs) * time.Second,
		HTTPTimeout:    time.Duration(c.HTTPTimeoutSecs) * time.Second,
		TLSTimeout:     time.Duration(c.TLSTimeoutSecs) * time.Second,
		TLSPort:        c.TLSPort,
	}
}
