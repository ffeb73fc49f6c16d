package httpclient

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"bookshelf/internal/backend"
)

func saveSession(path string, s *backend.Session) error {
	if s == nil || s.AccessToken == "" {
		return errors.New("empty session")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func loadSession(path string) (*backend.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s backend.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, errors.New("stored session has no token")
	}
	return &s, nil
}

func clearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
