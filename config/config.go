// Package config loads data-access settings from defaults, YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is stripped from environment variables before they are mapped to keys.
const DefaultEnvPrefix = "ORM_"

type loadOptions struct {
	files        []string
	optionalFile string
	yaml         [][]byte
	envPrefix    string
}

// Option customizes Load.
type Option func(*loadOptions)

// WithFile loads a YAML file. A missing file is an error.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.files = append(o.files, path)
	}
}

// WithOptionalFile loads a YAML file when it exists.
func WithOptionalFile(path string) Option {
	return func(o *loadOptions) {
		o.optionalFile = path
	}
}

// WithYAML loads inline YAML after any files.
func WithYAML(content []byte) Option {
	return func(o *loadOptions) {
		o.yaml = append(o.yaml, content)
	}
}

// WithEnvPrefix replaces DefaultEnvPrefix. An empty prefix disables environment loading.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Inline YAML
// 3. YAML configuration files
// 4. Default values (lowest priority)
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if o.optionalFile != "" {
		if err := k.Load(file.Provider(o.optionalFile), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", o.optionalFile, err)
		}
	}

	for _, path := range o.files {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	for _, content := range o.yaml {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse inline yaml: %w", err)
		}
	}

	if o.envPrefix != "" {
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix:        o.envPrefix,
			TransformFunc: envTransform(o.envPrefix),
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envTransform converts ORM_DATABASE_POOL_MAXCONNS to database.pool.maxconns.
func envTransform(prefix string) func(string, string) (string, any) {
	return func(key, value string) (string, any) {
		key = strings.TrimPrefix(key, prefix)
		return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
	}
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.pretty": false,

		"database.query.slow.threshold":  "200ms",
		"database.query.log.maxlength":   1000,
		"database.query.log.parameters":  false,
		"database.transaction.isolation": "",
	}
}
