package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// resolveConfigPath normalizes an operator-supplied config path. Symlinks
// are resolved so later checks see the real file; only yaml files are
// accepted.
func resolveConfigPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid config path: %w", err)
	}

	realPath, err := filepath.EvalSymlinks(filepath.Clean(absPath))
	if err != nil {
		return "", fmt.Errorf("error resolving config path: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(realPath))
	if ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("config file must have .yaml or .yml extension")
	}

	return realPath, nil
}

// LoadFile loads configuration from a YAML file, overlaying it on the
// defaults, then applies environment variables on top.
func LoadFile(path string) (*Config, error) {
	realPath, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(realPath)
	if err != nil {
		return nil, fmt.Errorf("error accessing config file: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("config path must be a regular file")
	}

	data, err := os.ReadFile(realPath)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.overlayEnv()

	return cfg, cfg.validate()
}
