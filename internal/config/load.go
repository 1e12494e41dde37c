package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads path on top of Default and validates the result. An empty path
// or a missing file yields the defaults. The decoder is chosen by extension:
// .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := Decode(cfg, filepath.Ext(path), data); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Decode parses data in the format named by ext into cfg. Unknown keys are
// rejected.
func Decode(cfg *Config, ext string, data []byte) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	default:
		return fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
}

// Encode writes cfg in the format named by ext.
func Encode(cfg *Config, ext string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	case "toml":
		return toml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
}
