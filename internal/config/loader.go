package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BRANDFLOW_"
)

// nestedSections lists second-level blocks so env vars can reach them:
// BRANDFLOW_RETRIEVAL_CHROMEM_PATH -> retrieval.chromem.path.
var nestedSections = map[string][]string{
	"retrieval": {"chromem", "qdrant", "embeddings"},
	"logging":   {"output", "sampling", "caller", "stacktrace", "redaction"},
	"telemetry": {"sampling", "metrics", "shutdown"},
}

// Source is the merged file and environment configuration tree.
type Source struct {
	k    *koanf.Koanf
	path string
}

// NewSource reads the YAML file at configPath (when it exists) and overlays
// BRANDFLOW_* environment variables.
//
// An empty configPath falls back to ~/.config/brandflow/config.yaml. A
// missing file is not an error; a file with permissions wider than 0600 or
// larger than 1MB is rejected.
func NewSource(configPath string) (*Source, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "brandflow", "config.yaml")
		}
	}

	if configPath != "" {
		content, err := readConfigFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &Source{k: k, path: configPath}, nil
}

// Unmarshal decodes the subtree at path into v. Fields absent from the
// tree keep the values v already holds, so callers pass pre-filled defaults.
func (s *Source) Unmarshal(path string, v interface{}) error {
	if err := s.k.Unmarshal(path, v); err != nil {
		if path == "" {
			path = "<root>"
		}
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path is set in the file or environment.
func (s *Source) Exists(path string) bool {
	return s.k.Exists(path)
}

// MapKeys returns the keys of the map at path, sorted.
func (s *Source) MapKeys(path string) []string {
	return s.k.MapKeys(path)
}

// Path returns the config file path that was considered.
func (s *Source) Path() string {
	return s.path
}

// LoadWithFile loads the application Config from configPath and the
// environment, applies defaults and validates the result.
//
// Precedence (highest first):
//  1. Environment variables (BRANDFLOW_SERVER_HTTP_PORT, BRANDFLOW_LLM_MODEL, ...)
//  2. YAML config file
//  3. Default()
func LoadWithFile(configPath string) (*Config, *Source, error) {
	src, err := NewSource(configPath)
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	if err := src.Unmarshal("", cfg); err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, src, nil
}

// envKey maps BRANDFLOW_SECTION_FIELD_NAME to section.field_name, expanding
// known nested blocks. Variables without a section are ignored.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}

	section, field := parts[0], parts[1]
	for _, sub := range nestedSections[section] {
		if rest, ok := strings.CutPrefix(field, sub+"_"); ok {
			return section + "." + sub + "." + rest
		}
	}
	return section + "." + field
}

// readConfigFile opens the file once and validates it through the open
// descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	// Windows has a different permission model.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
