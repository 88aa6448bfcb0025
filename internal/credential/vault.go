package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Vault is a small encrypted key-value file holding one API key per oracle
// backend.
type Vault struct {
	path    string
	manager *Manager
	entries map[string]string
}

// OpenVault loads the vault at path, creating an empty one when the file
// does not exist.
func OpenVault(path string) (*Vault, error) {
	manager, err := NewManager()
	if err != nil {
		return nil, err
	}
	v := &Vault{
		path:    path,
		manager: manager,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path) // #nosec G304
	if os.IsNotExist(err) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential vault: %w", err)
	}
	if err := json.Unmarshal(data, &v.entries); err != nil {
		return nil, fmt.Errorf("failed to parse credential vault: %w", err)
	}
	return v, nil
}

// Set seals and stores the API key for a backend.
func (v *Vault) Set(backend, key string) error {
	sealed, err := v.manager.Seal(key)
	if err != nil {
		return err
	}
	v.entries[backend] = sealed
	return v.save()
}

// Get returns the decrypted API key for a backend, or "" when none is set.
func (v *Vault) Get(backend string) (string, error) {
	stored, ok := v.entries[backend]
	if !ok {
		return "", nil
	}
	return v.manager.Open(stored)
}

// Delete removes a backend's key.
func (v *Vault) Delete(backend string) error {
	if _, ok := v.entries[backend]; !ok {
		return nil
	}
	delete(v.entries, backend)
	return v.save()
}

// Backends lists backends with stored keys, sorted.
func (v *Vault) Backends() []string {
	names := make([]string, 0, len(v.entries))
	for name := range v.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *Vault) save() error {
	data, err := json.MarshalIndent(v.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential vault: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential vault: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("failed to replace credential vault: %w", err)
	}
	return nil
}
