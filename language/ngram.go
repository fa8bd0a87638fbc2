// Package language provides the n-gram language model used to rescore CTC
// hypotheses: ARPA loading, a Witten-Bell builder and a word-level scorer.
package language

import (
	"sort"
	"strings"

	"github.com/ieee0824/ctcdecode/internal/mathutil"
)

// Reserved ARPA tokens.
const (
	SentenceStart = "<s>"
	SentenceEnd   = "</s>"
	Unknown       = "<unk>"
)

// NGramModel is a backoff n-gram model of any order. All log values are
// natural logs.
type NGramModel struct {
	Order int // highest order present

	// grams[n-1] maps space-joined n-grams to their entries.
	grams []map[string]ngramEntry

	// OOVLogProb is returned for words missing from the unigram table. It is
	// the <unk> unigram when the model has one, mathutil.LogZero otherwise.
	OOVLogProb float64
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// NewNGramModel creates an empty model of the given order.
func NewNGramModel(order int) *NGramModel {
	order = max(order, 1)
	m := &NGramModel{
		Order:      order,
		grams:      make([]map[string]ngramEntry, order),
		OOVLogProb: mathutil.LogZero,
	}
	for i := range m.grams {
		m.grams[i] = make(map[string]ngramEntry)
	}
	return m
}

func (m *NGramModel) set(words []string, e ngramEntry) {
	m.grams[len(words)-1][strings.Join(words, " ")] = e
}

// Entry returns the log probability and backoff weight stored for the
// n-gram words.
func (m *NGramModel) Entry(words ...string) (logProb, logBackoff float64, ok bool) {
	if len(words) == 0 || len(words) > m.Order {
		return 0, 0, false
	}
	e, ok := m.grams[len(words)-1][strings.Join(words, " ")]
	return e.LogProb, e.LogBackoff, ok
}

// Has reports whether word is in the unigram table.
func (m *NGramModel) Has(word string) bool {
	_, ok := m.grams[0][word]
	return ok
}

// LogProb returns log P(word | history), backing off to lower orders when
// the exact n-gram is missing. Only the last Order-1 history words are used.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	if n := m.Order - 1; len(history) > n {
		history = history[len(history)-n:]
	}
	return m.backoff(history, word)
}

func (m *NGramModel) backoff(history []string, word string) float64 {
	if len(history) == 0 {
		if e, ok := m.grams[0][word]; ok {
			return e.LogProb
		}
		return m.OOVLogProb
	}
	h := strings.Join(history, " ")
	if e, ok := m.grams[len(history)][h+" "+word]; ok {
		return e.LogProb
	}
	lp := m.backoff(history[1:], word)
	if e, ok := m.grams[len(history)-1][h]; ok {
		lp += e.LogBackoff
	}
	return lp
}

// Lowercased returns a copy of m with every word lowercased. N-grams that
// fold together keep the most probable entry.
func (m *NGramModel) Lowercased() *NGramModel {
	out := NewNGramModel(m.Order)
	for i, grams := range m.grams {
		for key, e := range grams {
			folded := strings.ToLower(key)
			if prev, ok := out.grams[i][folded]; ok && !preferEntry(e, prev) {
				continue
			}
			out.grams[i][folded] = e
		}
	}
	out.OOVLogProb = m.OOVLogProb
	if e, ok := out.grams[0][Unknown]; ok {
		out.OOVLogProb = e.LogProb
	}
	return out
}

// preferEntry reports whether a replaces b when two n-grams fold together.
func preferEntry(a, b ngramEntry) bool {
	if a.LogProb != b.LogProb {
		return a.LogProb > b.LogProb
	}
	return a.LogBackoff > b.LogBackoff
}

// SentenceLogProb returns the log probability of words as a whole sentence,
// wrapped in <s> and </s>.
func (m *NGramModel) SentenceLogProb(words []string) float64 {
	total := 0.0
	history := make([]string, 0, len(words)+1)
	history = append(history, SentenceStart)
	for _, w := range words {
		total += m.LogProb(history, w)
		history = append(history, w)
	}
	return total + m.LogProb(history, SentenceEnd)
}

// Vocab returns the unigram vocabulary in sorted order.
func (m *NGramModel) Vocab() []string {
	words := make([]string, 0, len(m.grams[0]))
	for w := range m.grams[0] {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Counts returns the number of entries per order, index 0 being unigrams.
func (m *NGramModel) Counts() []int {
	counts := make([]int, len(m.grams))
	for i, grams := range m.grams {
		counts[i] = len(grams)
	}
	return counts
}
