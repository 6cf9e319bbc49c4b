package main

import (
	"path/filepath"

	"github.com/postalsys/cryptarc/internal/config"
)

// defaultKeyPaths resolves the platform key-file locations, creating the
// containing directory if needed (spec.md §6).
func defaultKeyPaths() (config.KeyPaths, error) {
	if _, err := config.EnsureConfigDir(); err != nil {
		return config.KeyPaths{}, err
	}
	return config.DefaultKeyPaths()
}

// configDirQuiet resolves the config directory without creating it, for the
// optional YAML defaults file lookup; a resolution failure here is not
// fatal, since the defaults file is optional.
func configDirQuiet() (string, error) {
	paths, err := config.DefaultKeyPaths()
	if err != nil {
		return "", err
	}
	return filepath.Dir(paths.Public), nil
}
