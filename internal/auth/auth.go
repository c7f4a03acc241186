// Package auth resolves the shared management secret and validates it.
//
// The secret is sent as-is in the request line; no key derivation happens
// here.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvSecret names the environment variable consulted by ResolveSecret.
const EnvSecret = "EDGEMGMT_SECRET"

var (
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrSecretConflict = errors.New("auth: secret given both inline and as a file")
	ErrInvalidSecret  = errors.New("auth: secret contains whitespace")
)

// Validator validates a secret presented by a client.
type Validator interface {
	Validate(secret string) error
}

// StaticToken accepts exactly one shared secret.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// SecretSource lists the places a secret can come from, in priority order:
// inline value, file, then environment.
type SecretSource struct {
	Inline string
	File   string
	Env    string
}

// ResolveSecret returns the configured secret, or "" when none is set.
// A file is read whole with surrounding whitespace trimmed.
func ResolveSecret(src SecretSource) (string, error) {
	inline := strings.TrimSpace(src.Inline)
	file := strings.TrimSpace(src.File)
	if inline != "" && file != "" {
		return "", ErrSecretConflict
	}

	secret := inline
	switch {
	case secret != "":
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("auth: read secret file: %w", err)
		}
		secret = strings.TrimSpace(string(data))
	default:
		env := src.Env
		if env == "" {
			env = EnvSecret
		}
		secret = strings.TrimSpace(os.Getenv(env))
	}

	if strings.ContainsAny(secret, " \t\r\n") {
		return "", ErrInvalidSecret
	}
	return secret, nil
}

// Redact masks a secret for logs, keeping only its length visible.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return fmt.Sprintf("<redacted:%d>", len(secret))
}
