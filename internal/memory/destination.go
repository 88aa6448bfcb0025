package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Destination is a file the assistant reads on startup, such as a CLAUDE.md
// or AGENTS.md. Core promotions append to it without disturbing what the
// user already wrote there.
type Destination interface {
	// Name identifies the destination in config and results.
	Name() string

	// Path is where the content lives.
	Path() string

	// Read returns the current content, or "" when the file does not
	// exist yet.
	Read() (string, error)

	// Append adds one entry, separated from existing content by a blank
	// line, creating the file and its parents as needed.
	Append(entry string) error
}

// FileDestination appends to a plain file on disk.
type FileDestination struct {
	name string
	path string
}

// NewFileDestination creates a destination. name defaults to the file's
// base name.
func NewFileDestination(name, path string) *FileDestination {
	if name == "" {
		name = filepath.Base(path)
	}
	return &FileDestination{name: name, path: path}
}

// Name implements Destination.
func (d *FileDestination) Name() string { return d.name }

// Path implements Destination.
func (d *FileDestination) Path() string { return d.path }

// Read implements Destination.
func (d *FileDestination) Read() (string, error) {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", d.path, err)
	}
	return string(data), nil
}

// Append implements Destination.
func (d *FileDestination) Append(entry string) error {
	content, err := d.Read()
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n\n") {
		if strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	}
	b.WriteString(entry)
	if !strings.HasSuffix(entry, "\n") {
		b.WriteString("\n")
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", d.path, err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", d.path, err)
	}
	return nil
}
