// Package secrets resolves API keys from inline values, files or the OS keychain.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service the CLI stores its keys under.
const DefaultService = "h1b-finder"

// Keyring addresses one OS keychain entry.
type Keyring struct {
	Service string
	User    string
}

func (k *Keyring) service() string {
	if s := strings.TrimSpace(k.Service); s != "" {
		return s
	}
	return DefaultService
}

// Source describes how to load a secret value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration, flags or env.
	Value string
	// File points to a file containing the secret value. When set it takes
	// precedence over Value.
	File string
	// Keyring is consulted last, when neither File nor Value yield a secret.
	Keyring *Keyring
}

// Load returns the resolved secret from the provided source. Precedence is File, then Value, then
// Keyring. The returned secret is always trimmed.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if src.Keyring != nil && strings.TrimSpace(src.Keyring.User) != "" {
		secret, err := keyring.Get(src.Keyring.service(), src.Keyring.User)
		switch {
		case errors.Is(err, keyring.ErrNotFound):
		case err != nil:
			return "", fmt.Errorf("reading %s from keychain: %w", name, err)
		default:
			if secret = strings.TrimSpace(secret); secret != "" {
				return secret, nil
			}
		}
	}

	return "", fmt.Errorf("%s is not configured", name)
}

// Store saves a secret in the OS keychain.
func Store(k Keyring, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("secret is empty")
	}
	if strings.TrimSpace(k.User) == "" {
		return errors.New("keychain user is required")
	}
	if err := keyring.Set(k.service(), k.User, secret); err != nil {
		return fmt.Errorf("writing %s to keychain: %w", k.User, err)
	}
	return nil
}

// Delete removes a keychain entry. A missing entry is not an error.
func Delete(k Keyring) error {
	err := keyring.Delete(k.service(), k.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting %s from keychain: %w", k.User, err)
	}
	return nil
}
