package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestResolveRef_EnvFormat(t *testing.T) {
	v := New()

	const envVar = "TEST_CROVEST_VAULT_DSN"
	const expected = "postgres://crovest@localhost/crovest"

	t.Setenv(envVar, expected)

	got, err := v.ResolveRef("env:" + envVar)
	if err != nil {
		t.Fatalf("ResolveRef(env:): %v", err)
	}
	if got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestResolveRef_EnvFormat_Unset(t *testing.T) {
	v := New()

	os.Unsetenv("NONEXISTENT_SECRET_VAR")

	if _, err := v.ResolveRef("env:NONEXISTENT_SECRET_VAR"); err == nil {
		t.Fatal("expected error for unset env var")
	}
}

func TestResolveRef_InvalidFormat(t *testing.T) {
	v := New()

	if _, err := v.ResolveRef("plaintext:secret"); err == nil {
		t.Fatal("expected error for invalid ref format")
	}
}

func TestResolveRef_KeyringBadFormat(t *testing.T) {
	v := New()

	for _, ref := range []string{
		"keyring://badformat",
		"keyring://other-service/database_dsn",
		"keyring://crovest/",
	} {
		if _, err := v.ResolveRef(ref); err == nil {
			t.Errorf("expected error for %q", ref)
		}
	}
}

func TestKeyring_RoundTrip(t *testing.T) {
	keyring.MockInit()
	v := New()

	if err := v.Set(SecretAuthToken, "s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := v.ResolveRef("keyring://crovest/" + SecretAuthToken)
	if err != nil {
		t.Fatalf("ResolveRef(keyring://): %v", err)
	}
	if got != "s3cret" {
		t.Errorf("got %q, want %q", got, "s3cret")
	}

	names, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != SecretAuthToken {
		t.Errorf("List: got %v", names)
	}

	if err := v.Delete(SecretAuthToken); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := v.Get(SecretAuthToken); err == nil {
		t.Error("expected error after delete")
	}
}

func TestGet_EnvFallback(t *testing.T) {
	keyring.MockInit()
	v := New()

	const expected = "postgres://env-fallback"
	t.Setenv(EnvVar(SecretDatabaseDSN), expected)

	got, err := v.Get(SecretDatabaseDSN)
	if err != nil {
		t.Fatalf("Get with env fallback: %v", err)
	}
	if got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestEnvVar(t *testing.T) {
	if got := EnvVar("database-dsn"); got != "CROVEST_SECRET_DATABASE_DSN" {
		t.Errorf("EnvVar: got %q", got)
	}
}

func TestResolveRef_FileFormat(t *testing.T) {
	v := New()

	secretFile := filepath.Join(t.TempDir(), "token.txt")
	if err := os.WriteFile(secretFile, []byte("file-token\n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	got, err := v.ResolveRef("file://" + secretFile)
	if err != nil {
		t.Fatalf("ResolveRef(file://): %v", err)
	}
	if got != "file-token" {
		t.Errorf("got %q, want %q", got, "file-token")
	}
}

func TestResolveRef_FileFormat_Errors(t *testing.T) {
	v := New()

	if _, err := v.ResolveRef("file:///nonexistent/path/secret.txt"); err == nil {
		t.Fatal("expected error for missing secret file")
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}
	if _, err := v.ResolveRef("file://" + empty); err == nil {
		t.Fatal("expected error for empty secret file")
	}
}

func TestResolve_RefWins(t *testing.T) {
	v := New()
	t.Setenv("TEST_CROVEST_TOKEN", "from-env")

	got, err := v.Resolve("literal", "env:TEST_CROVEST_TOKEN")
	if err != nil || got != "from-env" {
		t.Errorf("ref: got %q, %v", got, err)
	}

	got, err = v.Resolve("literal", "")
	if err != nil || got != "literal" {
		t.Errorf("literal: got %q, %v", got, err)
	}

	got, err = v.Resolve("", "")
	if err != nil || got != "" {
		t.Errorf("empty: got %q, %v", got, err)
	}
}

func TestGet_NoSecretFound(t *testing.T) {
	keyring.MockInit()
	v := New()

	os.Unsetenv(EnvVar("nothing_here"))

	if _, err := v.Get("nothing_here"); err == nil {
		t.Fatal("expected error when no secret found")
	}
}
