// Package config loads ctcdecode settings from YAML or TOML files with
// environment overrides.
package config

import (
	_ "embed"
	"runtime"

	"github.com/ieee0824/ctcdecode/decoder"
	"github.com/ieee0824/ctcdecode/emission"
	"github.com/ieee0824/ctcdecode/language"
	"github.com/ieee0824/ctcdecode/vocab"
)

//go:embed sample_config.yaml
var sampleConfig string

// SampleConfig returns a documented configuration file with default values.
func SampleConfig() string {
	return sampleConfig
}

// AlphabetEnglish selects the built-in lowercase English character set.
const AlphabetEnglish = "english"

// DefaultLMURL is the LibriSpeech 4-gram published by Kaldi. Its words are
// uppercase; LanguageModel.Lowercase folds them for the English alphabet.
const DefaultLMURL = "https://kaldi-asr.org/models/5/4gram_big.arpa.gz"

// Log configures logging.
type Log struct {
	Level string `yaml:"level" toml:"level"` // debug, info, warn or error
}

// Vocabulary selects the output symbol set. Path wins over Alphabet.
type Vocabulary struct {
	Path     string `yaml:"path" toml:"path"`
	Alphabet string `yaml:"alphabet" toml:"alphabet"`
	Blank    string `yaml:"blank" toml:"blank"`
}

// Decoder holds beam search parameters.
type Decoder struct {
	BeamSize         int     `yaml:"beam_size" toml:"beam_size"`
	Alpha            float64 `yaml:"alpha" toml:"alpha"`
	Beta             float64 `yaml:"beta" toml:"beta"`
	Input            string  `yaml:"input" toml:"input"`
	BeamPruneLogProb float64 `yaml:"beam_prune_logp" toml:"beam_prune_logp"`
	TokenMinLogProb  float64 `yaml:"token_min_logp" toml:"token_min_logp"`
}

// LanguageModel locates the ARPA model. Path and URL are exclusive; with
// neither set decoding uses acoustic scores only.
type LanguageModel struct {
	Path           string  `yaml:"path" toml:"path"`
	URL            string  `yaml:"url" toml:"url"`
	CacheDir       string  `yaml:"cache_dir" toml:"cache_dir"`
	UnknownLogProb float64 `yaml:"unknown_logp" toml:"unknown_logp"`
	Lowercase      bool    `yaml:"lowercase" toml:"lowercase"`
}

// Enabled reports whether a language model is configured.
func (l LanguageModel) Enabled() bool {
	return l.Path != "" || l.URL != ""
}

// Batch configures concurrent decoding.
type Batch struct {
	Workers  int  `yaml:"workers" toml:"workers"`
	FailFast bool `yaml:"fail_fast" toml:"fail_fast"`
}

// Store configures the run database. An empty path disables recording.
type Store struct {
	Path string `yaml:"path" toml:"path"`
}

// Config is the top-level configuration.
type Config struct {
	Log           Log           `yaml:"log" toml:"log"`
	Vocabulary    Vocabulary    `yaml:"vocabulary" toml:"vocabulary"`
	Decoder       Decoder       `yaml:"decoder" toml:"decoder"`
	LanguageModel LanguageModel `yaml:"language_model" toml:"language_model"`
	Batch         Batch         `yaml:"batch" toml:"batch"`
	Store         Store         `yaml:"store" toml:"store"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	dc := decoder.DefaultConfig()
	return Config{
		Log:        Log{Level: "info"},
		Vocabulary: Vocabulary{Alphabet: AlphabetEnglish, Blank: vocab.DefaultBlank},
		Decoder: Decoder{
			BeamSize: dc.BeamSize,
			Alpha:    dc.Alpha,
			Beta:     dc.Beta,
			Input:    dc.Input.String(),
		},
		LanguageModel: LanguageModel{UnknownLogProb: language.DefaultUnknownLogProb, Lowercase: true},
		Batch:         Batch{Workers: runtime.NumCPU()},
	}
}

// DecoderConfig converts the decoder section. It fails on an unknown input
// convention.
func (c *Config) DecoderConfig() (decoder.Config, error) {
	conv, err := emission.ParseConvention(c.Decoder.Input)
	if err != nil {
		return decoder.Config{}, err
	}
	return decoder.Config{
		BeamSize:         c.Decoder.BeamSize,
		Alpha:            c.Decoder.Alpha,
		Beta:             c.Decoder.Beta,
		Input:            conv,
		BeamPruneLogProb: c.Decoder.BeamPruneLogProb,
		TokenMinLogProb:  c.Decoder.TokenMinLogProb,
	}, nil
}
