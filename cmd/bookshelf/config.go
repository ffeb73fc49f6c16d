package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultBaseURL = "http://localhost:8080"

// fileConfig is ~/.bookshelf/config.yaml. Every key is optional and flags
// override it.
type fileConfig struct {
	API        string `yaml:"api"`
	Token      string `yaml:"token"`
	CatalogURL string `yaml:"catalog_url"`
}

func bookshelfDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".bookshelf")
}

func defaultConfigPath() string { return filepath.Join(bookshelfDir(), "config.yaml") }
func defaultTokenPath() string  { return filepath.Join(bookshelfDir(), "session.json") }

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// resolve fills unset flag values from the file and then from defaults.
func (fc fileConfig) resolve(o *options) {
	if o.api == "" {
		o.api = fc.API
	}
	if o.api == "" {
		o.api = defaultBaseURL
	}
	if o.tokenPath == "" {
		o.tokenPath = fc.Token
	}
	if o.tokenPath == "" {
		o.tokenPath = defaultTokenPath()
	}
	if o.catalogURL == "" {
		o.catalogURL = fc.CatalogURL
	}
}
