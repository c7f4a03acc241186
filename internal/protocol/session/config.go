package session

import (
	"fmt"
	"strings"
	"time"
)

// DefaultAddr is the edge management endpoint on the local host.
const DefaultAddr = "127.0.0.1:5644"

// Config defines transport/session defaults.
type Config struct {
	Addr            string
	Secret          string
	RequestTimeout  time.Duration
	EventTimeout    time.Duration
	WriteTimeout    time.Duration
	MaxDatagramSize int
}

// DefaultConfig returns the defaults used by edgectl.
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		RequestTimeout:  time.Second,
		EventTimeout:    time.Hour,
		WriteTimeout:    time.Second,
		MaxDatagramSize: 65535,
	}
}

// Validate reports the first unusable setting, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: missing addr", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	if c.EventTimeout <= 0 {
		return fmt.Errorf("%w: event timeout must be positive", ErrInvalidConfig)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxDatagramSize < 512 {
		return fmt.Errorf("%w: max datagram size %d too small", ErrInvalidConfig, c.MaxDatagramSize)
	}
	if strings.ContainsAny(c.Secret, " \t\r\n") {
		return fmt.Errorf("%w: secret contains whitespace", ErrInvalidConfig)
	}
	return nil
}
