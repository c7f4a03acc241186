// Package config loads the edgectl client configuration file.
package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/edgemgmt/internal/auth"
	"github.com/danmuck/edgemgmt/internal/protocol/session"
	"github.com/danmuck/edgemgmt/internal/render"
	"github.com/danmuck/edgemgmt/internal/retry"
)

// EnvAddr overrides the edge address from the file.
const EnvAddr = "EDGEMGMT_ADDR"

var ErrInvalidConfig = errors.New("config: invalid")

// ClientConfig is the resolved client setup.
type ClientConfig struct {
	Addr              string
	Secret            string
	SecretFile        string
	RequestTimeout    time.Duration
	EventTimeout      time.Duration
	Format            render.Format
	Retries           int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	MetricsAddr       string
	CorsOrigins       []string
	Printers          []render.Printer
}

type fileConfig struct {
	Addr              string          `toml:"addr"`
	Secret            string          `toml:"secret"`
	SecretFile        string          `toml:"secret_file"`
	RequestTimeout    string          `toml:"request_timeout"`
	EventTimeout      string          `toml:"event_timeout"`
	Format            string          `toml:"format"`
	Retries           int             `toml:"retries"`
	RetryInitialDelay string          `toml:"retry_initial_delay"`
	RetryMaxDelay     string          `toml:"retry_max_delay"`
	MetricsAddr       string          `toml:"metrics_addr"`
	CorsOrigins       []string        `toml:"cors_origins"`
	Printers          []printerConfig `toml:"printers"`
}

type printerConfig struct {
	Command string   `toml:"command"`
	Columns []string `toml:"columns"`
	Headers []string `toml:"headers"`
}

func Default() ClientConfig {
	sess := session.DefaultConfig()
	backoff := retry.DefaultBackoff()
	return ClientConfig{
		Addr:              sess.Addr,
		RequestTimeout:    sess.RequestTimeout,
		EventTimeout:      sess.EventTimeout,
		Format:            render.FormatTable,
		RetryInitialDelay: backoff.InitialDelay,
		RetryMaxDelay:     backoff.MaxDelay,
	}
}

// Load overlays the file at path (if any) and the environment on the
// defaults. An empty path skips the file.
func Load(path string) (ClientConfig, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return ClientConfig{}, err
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *ClientConfig) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("secret") {
		cfg.Secret = strings.TrimSpace(raw.Secret)
	}
	if meta.IsDefined("secret_file") {
		cfg.SecretFile = strings.TrimSpace(raw.SecretFile)
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"event_timeout", raw.EventTimeout, &cfg.EventTimeout},
		{"retry_initial_delay", raw.RetryInitialDelay, &cfg.RetryInitialDelay},
		{"retry_max_delay", raw.RetryMaxDelay, &cfg.RetryMaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("format") {
		f, err := render.ParseFormat(raw.Format)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg.Format = f
	}
	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("printers") {
		cfg.Printers = make([]render.Printer, 0, len(raw.Printers))
		for _, p := range raw.Printers {
			cfg.Printers = append(cfg.Printers, render.Printer{
				Command: strings.TrimSpace(p.Command),
				Columns: normalizeList(p.Columns),
				Headers: p.Headers,
			})
		}
	}
	return nil
}

func applyEnvOverrides(cfg *ClientConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Addr = v
	}
}

func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: missing addr", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}
	if c.EventTimeout <= 0 {
		return fmt.Errorf("%w: event_timeout must be positive", ErrInvalidConfig)
	}
	if _, err := render.ParseFormat(string(c.Format)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative", ErrInvalidConfig)
	}
	if c.Retries > 0 && c.RetryInitialDelay <= 0 {
		return fmt.Errorf("%w: retry_initial_delay must be positive", ErrInvalidConfig)
	}
	if c.Secret != "" && c.SecretFile != "" {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, auth.ErrSecretConflict)
	}
	for i, p := range c.Printers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: printers[%d]: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// ResolveSecret reads the secret from the inline value, the secret file or
// the environment, in that order.
func (c ClientConfig) ResolveSecret() (string, error) {
	return auth.ResolveSecret(auth.SecretSource{Inline: c.Secret, File: c.SecretFile})
}

// SessionConfig builds the session settings; secret is the resolved secret.
func (c ClientConfig) SessionConfig(secret string) session.Config {
	cfg := session.DefaultConfig()
	cfg.Addr = c.Addr
	cfg.Secret = secret
	cfg.RequestTimeout = c.RequestTimeout
	cfg.EventTimeout = c.EventTimeout
	return cfg
}

// RetryPolicy is the caller-side policy for timed-out reads. The jitter
// source is seeded per call.
func (c ClientConfig) RetryPolicy() retry.Policy {
	backoff := retry.DefaultBackoff()
	backoff.InitialDelay = c.RetryInitialDelay
	backoff.MaxDelay = c.RetryMaxDelay
	return retry.Policy{
		Retries: c.Retries,
		Backoff: backoff,
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c ClientConfig) Registry() (*render.Registry, error) {
	return render.NewRegistry(c.Printers...)
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
