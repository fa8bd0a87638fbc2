package decoder

// Scorer supplies language model evidence for decoded text. Implementations
// must be safe for concurrent use and deterministic.
type Scorer interface {
	// LogProb returns the natural-log probability contribution of text.
	// With final set the text is complete: the trailing word is scored as a
	// whole word and end of sentence is applied.
	LogProb(text string, final bool) (float64, error)

	// CompletedWords returns the number of words in text terminated by a word
	// boundary, or all words when final is set.
	CompletedWords(text string, final bool) int
}

// NoLM is a Scorer that contributes nothing. Beam search with NoLM ranks by
// acoustic evidence alone.
type NoLM struct{}

// LogProb always returns 0.
func (NoLM) LogProb(string, bool) (float64, error) { return 0, nil }

// CompletedWords always returns 0.
func (NoLM) CompletedWords(string, bool) int { return 0 }
