package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "crovest"

// Secret names the daemon knows how to consume.
const (
	SecretDatabaseDSN = "database_dsn"
	SecretAuthToken   = "auth_token"
)

// KnownSecrets is the list of secret names checked by List().
var KnownSecrets = []string{SecretDatabaseDSN, SecretAuthToken}

// Vault stores secrets such as the PostgreSQL DSN and the API bearer token
// in the OS keychain, with fallback to environment variables.
type Vault struct{}

// New creates a new Vault instance.
func New() *Vault {
	return &Vault{}
}

// EnvVar returns the fallback environment variable for a secret name, e.g.
// CROVEST_SECRET_DATABASE_DSN.
func EnvVar(name string) string {
	return "CROVEST_SECRET_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Set stores a secret in the OS keychain.
func (v *Vault) Set(name, secret string) error {
	return keyring.Set(serviceName, name, secret)
}

// Get retrieves a secret. It first checks the OS keychain, then falls back
// to the environment variable returned by EnvVar.
func (v *Vault) Get(name string) (string, error) {
	secret, err := keyring.Get(serviceName, name)
	if err == nil && secret != "" {
		return secret, nil
	}

	envKey := EnvVar(name)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}

	return "", fmt.Errorf("no secret found for %q: not in keychain and %s not set", name, envKey)
}

// Delete removes a secret from the OS keychain.
func (v *Vault) Delete(name string) error {
	return keyring.Delete(serviceName, name)
}

// List returns the known secret names that currently have a value, from
// either the keychain or the environment.
func (v *Vault) List() ([]string, error) {
	var names []string
	for _, name := range KnownSecrets {
		if _, err := v.Get(name); err == nil {
			names = append(names, name)
		}
	}
	return names, nil
}

// ResolveRef parses a secret reference and returns the secret it points to.
// Supported formats:
//   - "keyring://crovest/<name>" (OS keychain, env fallback)
//   - "env:VARIABLE_NAME" (environment variable)
//   - "file:///path/to/secret" (plain-text file)
func (v *Vault) ResolveRef(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "keyring://"):
		path := strings.TrimPrefix(ref, "keyring://")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid secret reference format: %q (expected \"keyring://crovest/<name>\")", ref)
		}
		return v.Get(parts[1])

	case strings.HasPrefix(ref, "env:"):
		envVar := strings.TrimPrefix(ref, "env:")
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("environment variable %q is not set", envVar)

	case strings.HasPrefix(ref, "file://"):
		filePath := strings.TrimPrefix(ref, "file://")
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading secret file %q: %w", filePath, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("secret file %q is empty", filePath)
		}
		return secret, nil
	}

	return "", fmt.Errorf("invalid secret reference format: %q (expected \"keyring://crovest/<name>\", \"env:VARIABLE_NAME\", or \"file:///path/to/secret\")", ref)
}

// Resolve returns the secret behind ref when ref is set, otherwise literal.
// Both empty yields "".
func (v *Vault) Resolve(literal, ref string) (string, error) {
	if ref == "" {
		return literal, nil
	}
	return v.ResolveRef(ref)
}
