package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Credential holds the Gemini API key. It is resolved once at startup and
// never mutated; the zero value is an absent credential.
type Credential struct {
	value string
}

// NewCredential wraps a raw key. Surrounding whitespace is dropped.
func NewCredential(key string) Credential {
	return Credential{value: strings.TrimSpace(key)}
}

// LoadCredential reads the credential from the named environment variable.
func LoadCredential(envVar string) Credential {
	return NewCredential(os.Getenv(envVar))
}

// Value returns the raw key. Only upstream clients should call it.
func (c Credential) Value() string {
	return c.value
}

// IsSet reports whether a non-empty key was provided.
func (c Credential) IsSet() bool {
	return c.value != ""
}

// String never reveals the key, so a Credential is safe to log.
func (c Credential) String() string {
	if !c.IsSet() {
		return "<unset>"
	}
	return "<redacted>"
}

// GoString keeps %#v from printing the key.
func (c Credential) GoString() string {
	return "config.Credential{" + c.String() + "}"
}

// LoadDotEnv loads variables from the given files (".env" when none is
// given) without overriding variables already present in the environment.
// Missing files are not an error.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}
