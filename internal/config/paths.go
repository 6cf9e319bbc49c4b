package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// KeyPaths holds the resolved default locations of the public and secret
// key files, per spec.md §6.
type KeyPaths struct {
	Public string
	Secret string
}

// DefaultKeyPaths resolves the default pub/sec file locations: on UNIX,
// ${XDG_CONFIG_HOME:-$HOME/.config}/cryptarc/{cryptarc.pub,cryptarc.sec}; on
// Windows, %APPDATA%\cryptarc\{cryptarc.pub,cryptarc.sec}. This is a plain
// function rather than part of Config because it is a platform rule, not a
// user-tunable default.
func DefaultKeyPaths() (KeyPaths, error) {
	dir, err := configDir()
	if err != nil {
		return KeyPaths{}, err
	}
	return KeyPaths{
		Public: filepath.Join(dir, "cryptarc.pub"),
		Secret: filepath.Join(dir, "cryptarc.sec"),
	}, nil
}

// EnsureConfigDir creates the directory DefaultKeyPaths resolves into, with
// owner-only permissions, if it does not already exist.
func EnsureConfigDir() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return dir, nil
}

func configDir() (string, error) {
	if runtime.GOOS == "windows" {
		if v := os.Getenv("APPDATA"); v != "" {
			return filepath.Join(v, "cryptarc"), nil
		}
		return "", fmt.Errorf("config: %%APPDATA%% is not set")
	}

	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "cryptarc"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cryptarc"), nil
}
