package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the server settings. Every field can be set by flag or by an
// ONERPC_ environment variable, e.g. ONERPC_MAX_CONCURRENCY=8.
type Config struct {
	Addr             string
	Path             string
	MaxConcurrency   int
	DefaultErrorCode int
	LogLevel         string
	LogFormat        string
	CORSOrigins      []string
	HSTSMaxAge       int
	GracePeriod      time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

const envPrefix = "ONERPC"

func addFlags(flags *pflag.FlagSet) {
	flags.String("addr", ":8080", "Address to listen on")
	flags.String("path", "/rpc", "URL path of the JSON-RPC endpoint")
	flags.Int("max-concurrency", 0, "Maximum concurrent calls per batch (0 = unbounded)")
	flags.Int("default-error-code", -32000, "Error code for method errors that carry none")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json or console)")
	flags.StringSlice("cors-origin", nil, "Allowed CORS origin; repeat or comma-separate for several")
	flags.Int("hsts-max-age", 0, "Strict-Transport-Security max-age in seconds (0 = off)")
	flags.Duration("grace-period", 10*time.Second, "Graceful shutdown wait")
	flags.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	flags.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:             v.GetString("addr"),
		Path:             v.GetString("path"),
		MaxConcurrency:   v.GetInt("max-concurrency"),
		DefaultErrorCode: v.GetInt("default-error-code"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
		CORSOrigins:      splitList(v.GetStringSlice("cors-origin")),
		HSTSMaxAge:       v.GetInt("hsts-max-age"),
		GracePeriod:      v.GetDuration("grace-period"),
		ReadTimeout:      v.GetDuration("read-timeout"),
		WriteTimeout:     v.GetDuration("write-timeout"),
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return Config{}, fmt.Errorf("path must start with /: %q", cfg.Path)
	}
	if cfg.MaxConcurrency < 0 {
		return Config{}, fmt.Errorf("max-concurrency must not be negative: %d", cfg.MaxConcurrency)
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitList flattens comma-separated entries, which is how list values
// arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func newLogger(cfg Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
