package credential

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := m.Seal("sk-super-secret")
	if err != nil {
		t.Fatal(err)
	}
	if !IsEncrypted(sealed) {
		t.Errorf("sealed value missing prefix: %q", sealed)
	}
	if strings.Contains(sealed, "super-secret") {
		t.Error("plaintext visible in sealed value")
	}

	opened, err := m.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if opened != "sk-super-secret" {
		t.Errorf("opened = %q", opened)
	}
}

func TestSealEmptyValue(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := m.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("Seal(\"\") = %q, %v", sealed, err)
	}
}

func TestOpenPassesThroughPlaintext(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Open("plain-api-key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain-api-key" {
		t.Errorf("got %q", got)
	}
}

func TestOpenRejectsCorruptValue(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Open(EncryptedPrefix + "not base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := m.Open(EncryptedPrefix + "YWJj"); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
}

func TestVault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault", "credentials.json")

	v, err := OpenVault(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Set("openai", "sk-abc"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("gemini", "g-xyz"); err != nil {
		t.Fatal(err)
	}

	// Nothing readable on disk.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "sk-abc") || strings.Contains(string(raw), "g-xyz") {
		t.Error("vault file contains plaintext keys")
	}

	reopened, err := OpenVault(path)
	if err != nil {
		t.Fatal(err)
	}
	key, err := reopened.Get("openai")
	if err != nil {
		t.Fatal(err)
	}
	if key != "sk-abc" {
		t.Errorf("key = %q, want sk-abc", key)
	}
	if got := reopened.Backends(); len(got) != 2 || got[0] != "gemini" || got[1] != "openai" {
		t.Errorf("backends = %v", got)
	}

	if err := reopened.Delete("openai"); err != nil {
		t.Fatal(err)
	}
	key, err = reopened.Get("openai")
	if err != nil {
		t.Fatal(err)
	}
	if key != "" {
		t.Errorf("deleted key still present: %q", key)
	}
}
