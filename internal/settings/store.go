// Package settings persists the external database connection as a flat JSON
// document at a fixed per-installation path.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	dbconnector "linedash-backend"
)

var ErrCorrupt = errors.New("settings document is corrupt")

type Store interface {
	Load(ctx context.Context) (dbconnector.ConnectionConfig, error)
	Save(ctx context.Context, cfg dbconnector.ConnectionConfig) error
}

// Defaults is the document written on first start and after a clear.
func Defaults() dbconnector.ConnectionConfig {
	return dbconnector.ConnectionConfig{AuthMode: dbconnector.AuthWindows}
}

func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "linedash", "config.json"), nil
}

type document struct {
	dbconnector.ConnectionConfig
	SealedPassword string `json:"sealedPassword,omitempty"`
}

type FileStore struct {
	path   string
	sealer Sealer
	mu     sync.Mutex
}

// NewFileStore stores the document at path. With a nil sealer the password is
// written in clear text.
func NewFileStore(path string, sealer Sealer) *FileStore {
	return &FileStore{path: path, sealer: sealer}
}

func (s *FileStore) Path() string { return s.path }

// Load returns Defaults when the document does not exist yet.
func (s *FileStore) Load(ctx context.Context) (dbconnector.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return dbconnector.ConnectionConfig{}, fmt.Errorf("read settings: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return dbconnector.ConnectionConfig{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	cfg := doc.ConnectionConfig
	if doc.SealedPassword != "" {
		if s.sealer == nil {
			return dbconnector.ConnectionConfig{}, errors.New("settings password is sealed but no encryption key is configured")
		}
		plain, err := s.sealer.Decrypt(doc.SealedPassword)
		if err != nil {
			return dbconnector.ConnectionConfig{}, errors.New("failed to decrypt password")
		}
		cfg.Password = plain
	}
	return cfg, nil
}

// Save replaces the whole document atomically.
func (s *FileStore) Save(ctx context.Context, cfg dbconnector.ConnectionConfig) error {
	doc := document{ConnectionConfig: cfg}
	if s.sealer != nil && cfg.Password != "" {
		sealed, err := s.sealer.Encrypt(cfg.Password)
		if err != nil {
			return fmt.Errorf("seal password: %w", err)
		}
		doc.Password = ""
		doc.SealedPassword = sealed
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
