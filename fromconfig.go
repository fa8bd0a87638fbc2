package ctcdecode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ieee0824/ctcdecode/internal/config"
	"github.com/ieee0824/ctcdecode/internal/lmcache"
	"github.com/ieee0824/ctcdecode/language"
	"github.com/ieee0824/ctcdecode/vocab"
)

// NewFromConfig builds a Decoder from cfg: the vocabulary, the language
// model (read from disk or downloaded into the cache), the beam parameters
// and the worker count. opts are applied after the configured values.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Decoder, error) {
	dc, err := cfg.DecoderConfig()
	if err != nil {
		return nil, fmt.Errorf("decoder config: %w", err)
	}
	v, err := LoadVocabulary(cfg.Vocabulary)
	if err != nil {
		return nil, err
	}

	base := []Option{WithConfig(dc), WithWorkers(cfg.Batch.Workers)}
	// Resolve the logger first so model loading logs through it.
	probe := &Decoder{}
	for _, opt := range opts {
		opt(probe)
	}
	logger := probe.logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.LanguageModel.Enabled() {
		model, err := LoadLanguageModel(ctx, cfg.LanguageModel, logger)
		if err != nil {
			return nil, err
		}
		sopts := []language.ScorerOption{language.WithUnknownLogProb(cfg.LanguageModel.UnknownLogProb)}
		if cfg.LanguageModel.Lowercase {
			sopts = append(sopts, language.WithLowercase())
		}
		base = append(base, WithScorer(language.NewScorer(model, sopts...)))
	}
	return New(v, append(base, opts...)...), nil
}

// LoadVocabulary reads the configured vocabulary file, or builds the named
// built-in alphabet when no path is set.
func LoadVocabulary(cfg config.Vocabulary) (*vocab.Vocabulary, error) {
	var vopts []vocab.Option
	if cfg.Blank != "" {
		vopts = append(vopts, vocab.WithBlank(cfg.Blank))
	}
	if cfg.Path != "" {
		v, err := vocab.LoadFile(cfg.Path, vopts...)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary %s: %w", cfg.Path, err)
		}
		return v, nil
	}
	switch cfg.Alphabet {
	case "", config.AlphabetEnglish:
		return vocab.New(vocab.EnglishSymbols(), vopts...)
	}
	return nil, fmt.Errorf("unknown alphabet %q", cfg.Alphabet)
}

// LoadLanguageModel reads the configured ARPA model, downloading it first
// when only a URL is given.
func LoadLanguageModel(ctx context.Context, cfg config.LanguageModel, logger *slog.Logger) (*language.NGramModel, error) {
	path := cfg.Path
	if path == "" {
		f := &lmcache.Fetcher{Dir: cfg.CacheDir, Logger: logger}
		p, err := f.Ensure(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch language model: %w", err)
		}
		path = p
	}

	start := time.Now()
	model, err := language.LoadARPAFile(path)
	if err != nil {
		return nil, fmt.Errorf("load language model %s: %w", path, err)
	}
	counts := model.Counts()
	logger.Info("language model loaded",
		"path", path,
		"order", model.Order,
		"unigrams", counts[0],
		"duration", time.Since(start),
	)
	return model, nil
}
