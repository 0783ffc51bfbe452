package remote

import (
	"fmt"
	"os"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
)

// Authenticator provides authentication for OCI registry operations.
type Authenticator interface {
	// Authenticate returns credentials for the given registry. An empty username
	// defers to the default keychain.
	Authenticate(registry string) (username, password string, err error)
}

// Environment variables read by EnvAuthenticator.
const (
	EnvUsername = "XENO_REGISTRY_USERNAME"
	EnvPassword = "XENO_REGISTRY_PASSWORD"
)

// DefaultAuthenticator resolves credentials from the docker keychain.
type DefaultAuthenticator struct {
	Keychain authn.Keychain
}

// NewDefaultAuthenticator creates a default authenticator.
func NewDefaultAuthenticator() *DefaultAuthenticator {
	return &DefaultAuthenticator{Keychain: authn.DefaultKeychain}
}

// Authenticate returns credentials from the keychain.
func (a *DefaultAuthenticator) Authenticate(registry string) (string, string, error) {
	reg, err := name.NewRegistry(registry)
	if err != nil {
		return "", "", fmt.Errorf("parse registry %q: %w", registry, err)
	}
	auth, err := a.Keychain.Resolve(reg)
	if err != nil {
		return "", "", err
	}
	cfg, err := auth.Authorization()
	if err != nil {
		return "", "", err
	}
	return cfg.Username, cfg.Password, nil
}

// StaticAuthenticator returns fixed credentials for every registry.
type StaticAuthenticator struct {
	Username string
	Password string
}

func (a StaticAuthenticator) Authenticate(string) (string, string, error) {
	return a.Username, a.Password, nil
}

// EnvAuthenticator reads credentials from XENO_REGISTRY_USERNAME and
// XENO_REGISTRY_PASSWORD, falling back to Fallback when they are unset.
type EnvAuthenticator struct {
	Fallback Authenticator
}

func (a EnvAuthenticator) Authenticate(registry string) (string, string, error) {
	if user := os.Getenv(EnvUsername); user != "" {
		return user, os.Getenv(EnvPassword), nil
	}
	if a.Fallback != nil {
		return a.Fallback.Authenticate(registry)
	}
	return "", "", nil
}
