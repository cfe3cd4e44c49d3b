// Package config loads application settings from an optional YAML file,
// environment overrides and built-in defaults, then validates the result.
//
// Precedence, lowest first: defaults, the YAML file, UEAH_* environment
// variables. Command-line flags are applied by the CLI on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ueah/internal/navpath"
	"github.com/roach88/ueah/internal/route"
)

// Environment variables read by Load.
const (
	EnvDataDir  = "UEAH_DATA_DIR"
	EnvLogLevel = "UEAH_LOG_LEVEL"
	EnvLocale   = "UEAH_LOCALE"
	EnvTier     = "UEAH_STORAGE_TIER"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string        `yaml:"log_level" validate:"required,oneof=debug info warn warning error"`
	Locale   string        `yaml:"locale" validate:"required,bcp47_language_tag"`
	Storage  StorageConfig `yaml:"storage"`
	Hosting  HostingConfig `yaml:"hosting"`
	Routing  RoutingConfig `yaml:"routing"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Site     SiteConfig    `yaml:"site"`
}

// StorageConfig selects where local state lives.
type StorageConfig struct {
	Tier    string `yaml:"tier" validate:"required,oneof=auto enhanced fallback"`
	DataDir string `yaml:"data_dir" validate:"required"`
}

// HostingConfig describes the origin the app is served from and the rule
// for detecting a base path.
type HostingConfig struct {
	Origin       string `yaml:"origin" validate:"required,url"`
	DomainSuffix string `yaml:"domain_suffix"`
	BasePath     string `yaml:"base_path" validate:"omitempty,startswith=/"`
}

// RoutingConfig overrides the closed route vocabularies.
type RoutingConfig struct {
	RedirectParam string   `yaml:"redirect_param" validate:"required,alphanum"`
	AgeGroups     []string `yaml:"age_groups" validate:"omitempty,unique,dive,required"`
	Skills        []string `yaml:"skills" validate:"omitempty,unique,dive,required"`
}

// CatalogConfig points at an on-disk pack directory. Empty uses the packs
// compiled into the binary.
type CatalogConfig struct {
	Dir string `yaml:"dir" validate:"omitempty,dir"`
}

// SiteConfig holds the default page metadata.
type SiteConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Locale:   "en",
		Storage: StorageConfig{
			Tier:    "auto",
			DataDir: defaultDataDir(),
		},
		Hosting: HostingConfig{
			Origin: "http://localhost",
		},
		Routing: RoutingConfig{
			RedirectParam: "p",
		},
		Site: SiteConfig{
			Name:        "UEAH",
			Description: "Hand-picked English learning resources for children and teenagers.",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ueah")
	}
	return ".ueah"
}

// Load reads path (when non-empty), applies environment overrides and
// validates. A missing file named explicitly is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvDataDir); ok && v != "" {
		cfg.Storage.DataDir = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvLocale); ok && v != "" {
		cfg.Locale = v
	}
	if v, ok := os.LookupEnv(EnvTier); ok && v != "" {
		cfg.Storage.Tier = strings.ToLower(v)
	}
}

// ValidationError lists every invalid field.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is one failed constraint.
type FieldError struct {
	Field string
	Rule  string
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s failed %s (got %v)", f.Field, f.Rule, f.Value)
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every constraint and reports all failures together.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	out := &ValidationError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{
			Field: strings.TrimPrefix(fe.Namespace(), "Config."),
			Rule:  fe.Tag(),
			Value: fe.Value(),
		}
	}
	return out
}

// Vocabulary returns the route vocabulary, falling back to the defaults
// for any list left empty.
func (c Config) Vocabulary() route.Vocabulary {
	v := route.DefaultVocabulary()
	if len(c.Routing.AgeGroups) > 0 {
		v.AgeGroups = append([]string(nil), c.Routing.AgeGroups...)
	}
	if len(c.Routing.Skills) > 0 {
		v.Skills = append([]string(nil), c.Routing.Skills...)
	}
	return v
}

// HostingRule returns the base path detection rule.
func (c Config) HostingRule() navpath.HostingRule {
	return navpath.HostingRule{
		DomainSuffix: c.Hosting.DomainSuffix,
		BasePath:     c.Hosting.BasePath,
	}
}

// DatabasePath is the SQLite file backing the enhanced tier.
func (c Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "ueah.db")
}

// StoragePath is the JSON file backing the fallback tier.
func (c Config) StoragePath() string {
	return filepath.Join(c.Storage.DataDir, "local-storage.json")
}
