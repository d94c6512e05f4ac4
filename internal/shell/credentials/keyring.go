// Package credentials stores the Cloudflare API token in the OS keyring as
// an alternative to environment configuration on workstations.
package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "sweeper"
	user    = "cf-api-token"
)

// ErrTokenNotFound is returned when no token is stored in the keyring.
var ErrTokenNotFound = errors.New("no API token stored in keyring")

// SetToken stores the API token in the OS keyring.
func SetToken(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	if err := keyring.Set(service, user, token); err != nil {
		return fmt.Errorf("store token in keyring: %w", err)
	}
	return nil
}

// GetToken reads the API token from the OS keyring.
func GetToken() (string, error) {
	token, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read token from keyring: %w", err)
	}
	return token, nil
}

// ClearToken removes the API token from the OS keyring. Clearing an absent
// token is not an error.
func ClearToken() error {
	err := keyring.Delete(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove token from keyring: %w", err)
	}
	return nil
}
