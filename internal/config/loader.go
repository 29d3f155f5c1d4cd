package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

const escapedDollar = "\x00ESCAPED_DOLLAR\x00"

// Loader reads configuration documents.
type Loader struct {
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that resolves variables from the process environment.
func NewLoader() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// LoadConfig loads configuration from a file path. An empty path returns
// the default configuration.
func LoadConfig(path string) (*GatewayConfig, error) {
	return NewLoader().Load(path)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*GatewayConfig, error) {
	return NewLoader().LoadFromReader(r)
}

// Load loads configuration from a file path.
func (l *Loader) Load(path string) (*GatewayConfig, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.parseConfig(data)
}

// LoadFromReader loads configuration from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*GatewayConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parseConfig(data)
}

func (l *Loader) parseConfig(data []byte) (*GatewayConfig, error) {
	content := l.substituteEnvVars(string(data))

	cfg := &GatewayConfig{}
	if strings.TrimSpace(content) != "" {
		dec := yaml.NewDecoder(strings.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} with environment
// values. "$$" escapes a literal dollar sign.
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", escapedDollar)

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		if value, ok := l.lookupEnv(sub[1]); ok {
			return value
		}
		if len(sub) >= 3 {
			return sub[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, escapedDollar, "$")
}
