// Package identity keeps the local player's stable id and display name.
package identity

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// MaxNameRunes bounds display names, matching room rosters.
const MaxNameRunes = 32

// Identity is the persisted local player.
type Identity struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// DefaultName derives the fallback display name from an id.
func DefaultName(id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 6 {
		short = short[:6]
	}
	return "Player" + short
}

// LoadOrCreate reads the identity at path, generating and saving a fresh one
// when the file does not exist.
func LoadOrCreate(path string) (Identity, error) {
	var id Identity
	_, err := toml.DecodeFile(path, &id)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		id = Identity{ID: uuid.NewString()}
	default:
		return Identity{}, fmt.Errorf("failed to read identity: %w", err)
	}
	changed := false
	if id.ID == "" {
		id.ID = uuid.NewString()
		changed = true
	}
	if strings.TrimSpace(id.Name) == "" {
		id.Name = DefaultName(id.ID)
		changed = true
	}
	if changed || errors.Is(err, os.ErrNotExist) {
		if err := Save(path, id); err != nil {
			return Identity{}, err
		}
	}
	return id, nil
}

// Save writes id to path.
func Save(path string, id Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(id); err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}

// Rename validates name, stores it and returns the updated identity.
func Rename(path string, id Identity, name string) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return id, errors.New("display name is empty")
	}
	if r := []rune(name); len(r) > MaxNameRunes {
		name = strings.TrimSpace(string(r[:MaxNameRunes]))
	}
	id.Name = name
	if err := Save(path, id); err != nil {
		return id, err
	}
	return id, nil
}
