package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the syntax from the file extension; anything but .toml is
// read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// validLogLevels lists accepted log.level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads the configuration file at path, applies environment overrides
// from the process environment and validates the result. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	return Loader{}.Load(path)
}

// LoadFromReader decodes a configuration in the given format on top of the
// defaults and validates it. Environment variables are not consulted.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := Default()
	if err := decode(r, format, &cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Loader loads configuration with environment overrides. Tests can set
// Lookup to inject a deterministic environment.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load reads path (if non-empty), applies CTCDECODE_* overrides and validates.
func (l Loader) Load(path string) (*Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, FormatFor(path), &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := l.applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(r io.Reader, format Format, cfg *Config) error {
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("config: decode toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("config: decode yaml: %w", err)
		}
	default:
		return fmt.Errorf("config: unknown format %q", format)
	}
	return nil
}

func (l Loader) applyEnv(cfg *Config) error {
	var errs []error
	overrideString(l.Lookup, "CTCDECODE_LOG_LEVEL", &cfg.Log.Level)
	overrideString(l.Lookup, "CTCDECODE_VOCAB_PATH", &cfg.Vocabulary.Path)
	overrideString(l.Lookup, "CTCDECODE_LM_PATH", &cfg.LanguageModel.Path)
	overrideString(l.Lookup, "CTCDECODE_LM_URL", &cfg.LanguageModel.URL)
	overrideString(l.Lookup, "CTCDECODE_LM_CACHE_DIR", &cfg.LanguageModel.CacheDir)
	overrideString(l.Lookup, "CTCDECODE_STORE_PATH", &cfg.Store.Path)
	errs = append(errs,
		overrideInt(l.Lookup, "CTCDECODE_BEAM_SIZE", &cfg.Decoder.BeamSize),
		overrideFloat(l.Lookup, "CTCDECODE_ALPHA", &cfg.Decoder.Alpha),
		overrideFloat(l.Lookup, "CTCDECODE_BETA", &cfg.Decoder.Beta),
		overrideInt(l.Lookup, "CTCDECODE_WORKERS", &cfg.Batch.Workers),
	)
	return errors.Join(errs...)
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = n
	return nil
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = f
	return nil
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Vocabulary.Alphabet = strings.ToLower(strings.TrimSpace(c.Vocabulary.Alphabet))
	if c.Batch.Workers == 0 {
		c.Batch.Workers = runtime.NumCPU()
	}
}

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(validLogLevels, cfg.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: %s", cfg.Log.Level, strings.Join(validLogLevels, ", ")))
	}

	if cfg.Vocabulary.Path == "" {
		switch cfg.Vocabulary.Alphabet {
		case AlphabetEnglish:
		case "":
			errs = append(errs, errors.New("vocabulary: one of path or alphabet is required"))
		default:
			errs = append(errs, fmt.Errorf("vocabulary.alphabet %q is invalid; valid values: %s", cfg.Vocabulary.Alphabet, AlphabetEnglish))
		}
	}
	if cfg.Vocabulary.Blank == "" {
		errs = append(errs, errors.New("vocabulary.blank is required"))
	}

	if dc, err := cfg.DecoderConfig(); err != nil {
		errs = append(errs, fmt.Errorf("decoder.input: %w", err))
	} else if err := dc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("decoder: %w", err))
	}

	lm := cfg.LanguageModel
	if lm.Path != "" && lm.URL != "" {
		errs = append(errs, errors.New("language_model: path and url are mutually exclusive"))
	}
	if lm.UnknownLogProb > 0 {
		errs = append(errs, fmt.Errorf("language_model.unknown_logp %g must be <= 0", lm.UnknownLogProb))
	}
	if lm.URL != "" && !strings.HasPrefix(lm.URL, "https://") && !strings.HasPrefix(lm.URL, "http://") {
		errs = append(errs, fmt.Errorf("language_model.url %q must be an http(s) URL", lm.URL))
	}

	if cfg.Batch.Workers < 0 {
		errs = append(errs, fmt.Errorf("batch.workers %d must be >= 0", cfg.Batch.Workers))
	}

	return errors.Join(errs...)
}
