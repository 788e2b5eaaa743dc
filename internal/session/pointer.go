package session

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode"
	"unicode/utf8"
)

const maxPointerLen = 128

// PointerFile persists the logged-in user id between runs. A missing file
// means logged out.
type PointerFile struct {
	path string
}

func NewPointerFile(path string) *PointerFile {
	return &PointerFile{path: path}
}

func (p *PointerFile) Path() string {
	return p.path
}

// Load returns the stored user id. A malformed pointer is removed and
// reported as logged out.
func (p *PointerFile) Load() (string, bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read session pointer: %w", err)
	}

	id := string(bytes.TrimSuffix(data, []byte("\n")))
	if !ValidPointer(id) {
		if err := p.Clear(); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return id, true, nil
}

func (p *PointerFile) Save(userID string) error {
	if !ValidPointer(userID) {
		return fmt.Errorf("save session pointer: invalid user id %q", userID)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(userID+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session pointer: %w", err)
	}
	return nil
}

func (p *PointerFile) Clear() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear session pointer: %w", err)
	}
	return nil
}

// ValidPointer accepts 1..128 bytes of printable, non-space UTF-8.
func ValidPointer(id string) bool {
	if id == "" || len(id) > maxPointerLen || !utf8.ValidString(id) {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
