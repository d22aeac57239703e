// Package config loads winnow settings from TOML, YAML or JSON files.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/winnow"
)

//go:embed schema.json
var schemaJSON []byte

// Config holds all configuration options for winnow.
type Config struct {
	Fingerprint FingerprintConfig `koanf:"fingerprint" toml:"fingerprint"`
	Detection   DetectionConfig   `koanf:"detection" toml:"detection"`
	Corpus      CorpusConfig      `koanf:"corpus" toml:"corpus"`
	Cache       CacheConfig       `koanf:"cache" toml:"cache"`
	Output      OutputConfig      `koanf:"output" toml:"output"`
	Logging     LoggingConfig     `koanf:"logging" toml:"logging"`
}

// FingerprintConfig holds the winnowing parameters.
type FingerprintConfig struct {
	K     int    `koanf:"k" toml:"k"`
	W     int    `koanf:"w" toml:"w"`
	Base  uint32 `koanf:"base" toml:"base"`
	Prime uint32 `koanf:"prime" toml:"prime"`
}

// DetectionConfig controls how files are compared.
type DetectionConfig struct {
	Language       string  `koanf:"language" toml:"language"`
	Threshold      float64 `koanf:"threshold" toml:"threshold"`
	Workers        int     `koanf:"workers" toml:"workers"`
	FileTimeout    string  `koanf:"file_timeout" toml:"file_timeout"` // e.g. "30s"; "0s" disables
	SameSubmission bool    `koanf:"same_submission" toml:"same_submission"`
	RoundDigits    int     `koanf:"round_digits" toml:"round_digits"`
}

// CorpusConfig controls how submissions and their files are found.
type CorpusConfig struct {
	Roots             []string `koanf:"roots" toml:"roots"`
	Include           []string `koanf:"include" toml:"include"`
	Exclude           []string `koanf:"exclude" toml:"exclude"`
	RepoFilter        []string `koanf:"repo_filter" toml:"repo_filter"`
	MaxFileSize       int64    `koanf:"max_file_size" toml:"max_file_size"`
	Gitignore         bool     `koanf:"gitignore" toml:"gitignore"`
	Mode              string   `koanf:"mode" toml:"mode"`
	SubmissionPerRoot bool     `koanf:"submission_per_root" toml:"submission_per_root"`
	IDMode            string   `koanf:"id_mode" toml:"id_mode"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format     string `koanf:"format" toml:"format"` // text, json, markdown, yaml, toon
	File       string `koanf:"file" toml:"file"`
	Color      bool   `koanf:"color" toml:"color"`
	ResultsDir string `koanf:"results_dir" toml:"results_dir"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level string `koanf:"level" toml:"level"`
	JSON  bool   `koanf:"json" toml:"json"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	p := winnow.DefaultParams()
	return &Config{
		Fingerprint: FingerprintConfig{K: p.K, W: p.W, Base: p.Base, Prime: p.Prime},
		Detection: DetectionConfig{
			Threshold:   0.6,
			FileTimeout: "30s",
			RoundDigits: 4,
		},
		Corpus: CorpusConfig{
			Roots:       []string{},
			Include:     []string{},
			Exclude:     []string{},
			RepoFilter:  []string{},
			MaxFileSize: 1 << 20,
			Gitignore:   true,
			Mode:        string(corpus.ModeDirs),
			IDMode:      string(corpus.IDByName),
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".winnow/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Params returns the winnowing parameters.
func (c *Config) Params() winnow.Params {
	return winnow.Params{K: c.Fingerprint.K, W: c.Fingerprint.W, Base: c.Fingerprint.Base, Prime: c.Fingerprint.Prime}
}

// FileTimeout parses detection.file_timeout. An empty value means no limit.
func (c *Config) FileTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Detection.FileTimeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Detection.FileTimeout)
	if err != nil {
		return 0, fmt.Errorf("detection.file_timeout: %w", err)
	}
	return d, nil
}

// CacheTTL returns cache.ttl as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Hour
}

// Validate checks value ranges that the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Fingerprint.K < 1 {
		errs = append(errs, fmt.Errorf("fingerprint.k must be at least 1, got %d", c.Fingerprint.K))
	}
	if c.Fingerprint.W < 1 {
		errs = append(errs, fmt.Errorf("fingerprint.w must be at least 1, got %d", c.Fingerprint.W))
	}
	if err := c.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("fingerprint: %w", err))
	}
	if c.Detection.Threshold < 0 || c.Detection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("detection.threshold must be in [0, 1], got %v", c.Detection.Threshold))
	}
	if c.Detection.Workers < 0 {
		errs = append(errs, fmt.Errorf("detection.workers must not be negative, got %d", c.Detection.Workers))
	}
	if d, err := c.FileTimeout(); err != nil {
		errs = append(errs, err)
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("detection.file_timeout must not be negative, got %s", d))
	}
	switch corpus.Mode(c.Corpus.Mode) {
	case corpus.ModeDirs, corpus.ModeGit, "":
	default:
		errs = append(errs, fmt.Errorf("corpus.mode must be %q or %q, got %q", corpus.ModeDirs, corpus.ModeGit, c.Corpus.Mode))
	}
	switch corpus.IDMode(c.Corpus.IDMode) {
	case corpus.IDByName, corpus.IDByHash, "":
	default:
		errs = append(errs, fmt.Errorf("corpus.id_mode must be %q or %q, got %q", corpus.IDByName, corpus.IDByHash, c.Corpus.IDMode))
	}
	if c.Corpus.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("corpus.max_file_size must not be negative, got %d", c.Corpus.MaxFileSize))
	}
	return errors.Join(errs...)
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = koanfjson.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := validateSchema(k.Raw()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// validateSchema checks a parsed document against the embedded JSON Schema. The
// document is passed through JSON first so every parser yields the same value types.
func validateSchema(doc map[string]any) error {
	compiler := jsonschema.NewCompiler()
	schema, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("parse config schema: %w", err)
	}
	if err := compiler.AddResource("winnow.schema.json", schema); err != nil {
		return err
	}
	sch, err := compiler.Compile("winnow.schema.json")
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(instance)
}

// LoadResult is a loaded configuration and the file it came from. Source is empty when
// no file was found and the defaults apply.
type LoadResult struct {
	Config *Config
	Source string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path     string
	searched []string
}

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchPaths replaces the candidate files LoadConfig looks for.
func WithSearchPaths(paths ...string) LoadOption {
	return func(o *loadOptions) {
		o.searched = paths
	}
}

// SearchPaths lists the files LoadConfig tries, in order: winnow.{toml,yaml,yml,json}
// and their dot-variants in the working directory and in .winnow, then ~/.winnow.toml
// and /etc/default/winnow.toml.
func SearchPaths() []string {
	names := []string{
		"winnow.toml",
		"winnow.yaml",
		"winnow.yml",
		"winnow.json",
		".winnow.toml",
		".winnow.yaml",
		".winnow.yml",
		".winnow.json",
	}

	var paths []string
	for _, dir := range []string{".", ".winnow"} {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".winnow.toml"))
	}
	return append(paths, filepath.Join("/etc", "default", "winnow.toml"))
}

// LoadConfig loads the configuration from an explicit path or the first file found on
// the search path. A file that exists but fails to load is an error.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	candidates := o.searched
	if candidates == nil {
		candidates = SearchPaths()
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: path}, nil
	}
	return &LoadResult{Config: DefaultConfig()}, nil
}
