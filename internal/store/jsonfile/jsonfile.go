package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cultivator/internal/model"
)

// Store keeps the ledger as a single indented JSON document.
type Store struct {
	Path string
}

func New(path string) *Store { return &Store{Path: path} }

// Load reads the ledger; a missing or empty file yields an empty ledger.
func (s *Store) Load(ctx context.Context) (model.Ledger, error) {
	l := model.NewLedger()
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return l, fmt.Errorf("read ledger: %w", err)
	}
	if len(b) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(b, &l); err != nil {
		return model.NewLedger(), fmt.Errorf("decode ledger %s: %w", s.Path, err)
	}
	l.Normalize()
	return l, nil
}

// Save writes to a temp file beside the target, syncs it, then renames over the target.
func (s *Store) Save(ctx context.Context, l model.Ledger) error {
	if s.Path == "" {
		return errors.New("empty ledger path")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.Normalize()
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
