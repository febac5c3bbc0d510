// Package config loads cppmodule settings from a YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/cppmodule/internal/filter"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".cppmodule.yaml"

// ErrInvalid is returned for config files that parse but fail validation.
var ErrInvalid = errors.New("invalid config")

// Rule is the file form of filter.Rule.
type Rule struct {
	Patterns []string `yaml:"patterns" validate:"required,min=1,dive,required"`
	Kinds    []string `yaml:"kinds,omitempty" validate:"dive,kind"`
	What     string   `yaml:"what" validate:"required,what"`
}

// Config holds all settings. Zero values of MaxFileSize and Workers mean
// no limit and GOMAXPROCS respectively.
type Config struct {
	Templates   bool     `yaml:"templates"`
	Default     string   `yaml:"default" validate:"required,what"`
	MaxFileSize int64    `yaml:"max_file_size" validate:"gte=0"`
	Workers     int      `yaml:"workers" validate:"gte=0,lte=1024"`
	Languages   []string `yaml:"languages,omitempty" validate:"dive,oneof=c cpp"`
	Rules       []Rule   `yaml:"rules,omitempty" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("what", func(fl validator.FieldLevel) bool {
		_, err := filter.ParseWhat(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		_, err := filter.ParseKinds([]string{fl.Field().String()})
		return err == nil
	})
	return v
}

// Default returns the settings used when no file is present: every
// declaration is included at definition level and templates are off.
func Default() Config {
	return Config{
		Default:     filter.Definition.String(),
		MaxFileSize: 1 << 20,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from CPPMODULE_* variables. Unparseable
// values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CPPMODULE_TEMPLATES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Templates = b
		}
	}
	if v := getenv("CPPMODULE_DEFAULT"); v != "" {
		c.Default = v
	}
	if v := getenv("CPPMODULE_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxFileSize = n
		}
	}
	if v := getenv("CPPMODULE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
}

// Validate checks field constraints and rule vocabularies.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Filter compiles the configured rules.
func (c Config) Filter() (*filter.Rules, error) {
	def, err := filter.ParseWhat(c.Default)
	if err != nil {
		return nil, fmt.Errorf("%w: default: %v", ErrInvalid, err)
	}
	rules := make([]filter.Rule, 0, len(c.Rules))
	for i, r := range c.Rules {
		what, err := filter.ParseWhat(r.What)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrInvalid, i, err)
		}
		kinds, err := filter.ParseKinds(r.Kinds)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrInvalid, i, err)
		}
		rules = append(rules, filter.Rule{Patterns: r.Patterns, Kinds: kinds, What: what})
	}
	return filter.NewRules(def, rules), nil
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
