package language

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// DefaultUnknownLogProb is the log probability charged for a word the model
// does not know.
const DefaultUnknownLogProb = -10.0

// defaultCacheSize bounds the number of memoized histories.
const defaultCacheSize = 1 << 18

// WordScorer scores decoded text with an NGramModel, one word at a time.
// Words are separated by whitespace. A trailing word not yet followed by a
// space is partial: it costs nothing while it can still grow into a model
// word. WordScorer is safe for concurrent use.
type WordScorer struct {
	model     *NGramModel
	unknown   float64
	lowercase bool
	cacheSize int
	prefixes  []string // sorted model words for prefix lookups

	mu    sync.RWMutex
	cache map[string]float64 // completed-word history -> log prob
}

// ScorerOption configures a WordScorer.
type ScorerOption func(*WordScorer)

// WithUnknownLogProb sets the log probability of out-of-vocabulary words.
func WithUnknownLogProb(lp float64) ScorerOption {
	return func(s *WordScorer) {
		s.unknown = lp
	}
}

// WithLowercase folds both the model vocabulary and the decoded text to
// lowercase, so a lowercase alphabet can be scored with an uppercase model.
func WithLowercase() ScorerOption {
	return func(s *WordScorer) {
		s.lowercase = true
	}
}

// WithCacheSize bounds the history memo. The memo is reset when full.
func WithCacheSize(n int) ScorerOption {
	return func(s *WordScorer) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// NewScorer returns a WordScorer over model.
func NewScorer(model *NGramModel, opts ...ScorerOption) *WordScorer {
	s := &WordScorer{
		model:     model,
		unknown:   DefaultUnknownLogProb,
		cacheSize: defaultCacheSize,
		cache:     make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lowercase {
		s.model = model.Lowercased()
	}
	for _, w := range s.model.Vocab() {
		switch w {
		case SentenceStart, SentenceEnd, Unknown:
			continue
		}
		s.prefixes = append(s.prefixes, w)
	}
	return s
}

// Model returns the underlying n-gram model.
func (s *WordScorer) Model() *NGramModel {
	return s.model
}

// LogProb returns the log probability of the completed words of text. With
// final set every word counts as completed and end of sentence is scored.
func (s *WordScorer) LogProb(text string, final bool) (float64, error) {
	words, partial := s.split(text, final)
	lp := s.history(words)
	if final {
		return lp + s.model.LogProb(s.context(words), SentenceEnd), nil
	}
	if partial != "" && !s.isPrefix(partial) {
		lp += s.unknown
	}
	return lp, nil
}

// CompletedWords returns the number of words of text followed by a space,
// or all of them when final is set.
func (s *WordScorer) CompletedWords(text string, final bool) int {
	words, _ := s.split(text, final)
	return len(words)
}

// split separates text into completed words and a trailing partial word.
func (s *WordScorer) split(text string, final bool) ([]string, string) {
	if s.lowercase {
		text = strings.ToLower(text)
	}
	words := strings.Fields(text)
	if final || len(words) == 0 || endsInSpace(text) {
		return words, ""
	}
	return words[:len(words)-1], words[len(words)-1]
}

func endsInSpace(text string) bool {
	r, size := utf8.DecodeLastRuneInString(text)
	return size > 0 && unicode.IsSpace(r)
}

// history returns the memoized log probability of words following <s>.
func (s *WordScorer) history(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	key := strings.Join(words, " ")
	s.mu.RLock()
	lp, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return lp
	}

	last := words[len(words)-1]
	prefix := words[:len(words)-1]
	lp = s.history(prefix)
	if s.model.Has(last) {
		lp += s.model.LogProb(s.context(prefix), last)
	} else {
		lp += s.unknown
	}

	s.mu.Lock()
	if len(s.cache) >= s.cacheSize {
		clear(s.cache)
	}
	s.cache[key] = lp
	s.mu.Unlock()
	return lp
}

// context returns the model history for the word after words: <s> followed
// by at most the last Order-1 tokens, unknown words mapped to <unk>.
func (s *WordScorer) context(words []string) []string {
	n := max(s.model.Order-1, 0)
	ctx := make([]string, 0, n+1)
	if len(words) < n {
		ctx = append(ctx, SentenceStart)
		n = len(words)
	}
	for _, w := range words[len(words)-n:] {
		if !s.model.Has(w) {
			w = Unknown
		}
		ctx = append(ctx, w)
	}
	return ctx
}

// isPrefix reports whether some model word starts with p.
func (s *WordScorer) isPrefix(p string) bool {
	i := sort.SearchStrings(s.prefixes, p)
	return i < len(s.prefixes) && strings.HasPrefix(s.prefixes[i], p)
}
