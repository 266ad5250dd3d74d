package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type ProjectConfig struct {
	Project  string         `yaml:"project"`
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Sources  []Source       `yaml:"sources"`
	Exclude  []string       `yaml:"exclude"`
	Format   FormatConfig   `yaml:"format"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"GRIMOIRE_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"GRIMOIRE_DSN"`
}

type Source struct {
	Name      string   `yaml:"name"`
	Paths     []string `yaml:"paths"`
	Canonical bool     `yaml:"canonical"`
}

type FormatConfig struct {
	Terminator       string `yaml:"terminator"`
	KeyDelimiter     string `yaml:"key_delimiter"`
	Introducer       string `yaml:"introducer"`
	CommentPrefix    string `yaml:"comment_prefix"`
	ExtensionKeyword string `yaml:"extension_keyword"`
	TypeWords        int    `yaml:"type_words"`
	KeyIndent        int    `yaml:"key_indent"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"GRIMOIRE_LOG_LEVEL"`
	Format string `yaml:"format" env:"GRIMOIRE_LOG_FORMAT"`
}

type CacheConfig struct {
	Entries int `yaml:"entries"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: environment: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
		if strings.HasPrefix(cfg.Database.DSN, "postgres://") || strings.HasPrefix(cfg.Database.DSN, "postgresql://") {
			cfg.Database.Driver = DriverPostgres
		}
	}

	f := &cfg.Format
	if f.Terminator == "" {
		f.Terminator = "."
	}
	if f.KeyDelimiter == "" {
		f.KeyDelimiter = ";"
	}
	if f.Introducer == "" {
		f.Introducer = "="
	}
	if f.CommentPrefix == "" {
		f.CommentPrefix = "#"
	}
	if f.ExtensionKeyword == "" {
		f.ExtensionKeyword = "with"
	}
	if f.TypeWords == 0 {
		f.TypeWords = 2
	}
	if f.KeyIndent == 0 {
		f.KeyIndent = 2
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Cache.Entries == 0 {
		cfg.Cache.Entries = 1024
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch cfg.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]struct{})
	for i, src := range cfg.Sources {
		if strings.TrimSpace(src.Name) == "" {
			return fmt.Errorf("source %d name is required", i)
		}
		if len(src.Paths) == 0 {
			return fmt.Errorf("source %d paths are required", i)
		}
		key := strings.ToLower(src.Name)
		if _, exists := seen[key]; exists {
			return fmt.Errorf("duplicate source name: %s", src.Name)
		}
		seen[key] = struct{}{}
	}

	if err := validateFormat(&cfg.Format); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if cfg.Cache.Entries < 0 {
		return fmt.Errorf("cache entries must not be negative")
	}

	return nil
}

func validateFormat(f *FormatConfig) error {
	marks := map[string]string{
		"terminator":     f.Terminator,
		"key delimiter":  f.KeyDelimiter,
		"introducer":     f.Introducer,
		"comment prefix": f.CommentPrefix,
	}
	used := make(map[string]string)
	for name, mark := range marks {
		if strings.TrimSpace(mark) != mark || mark == "" {
			return fmt.Errorf("%s must be non-blank without surrounding whitespace", name)
		}
		if name == "comment prefix" {
			continue
		}
		if len([]rune(mark)) != 1 {
			return fmt.Errorf("%s must be a single character, got %q", name, mark)
		}
		if other, ok := used[mark]; ok {
			return fmt.Errorf("%s and %s are both %q", name, other, mark)
		}
		used[mark] = name
	}
	if len(strings.Fields(f.ExtensionKeyword)) != 1 {
		return fmt.Errorf("extension keyword must be a single word")
	}
	if f.TypeWords < 1 {
		return fmt.Errorf("type words must be at least 1")
	}
	if f.KeyIndent < 0 {
		return fmt.Errorf("key indent must not be negative")
	}
	return nil
}

func (c *ProjectConfig) SourceByName(name string) (*Source, bool) {
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			return &c.Sources[i], true
		}
	}
	return nil, false
}
