// Package vocab maps CTC output indices to text symbols.
//
// Index 0 is always the blank marker; the remaining symbols follow in the
// order they were supplied. A Vocabulary is immutable after construction and
// safe for concurrent use.
package vocab

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultBlank is the blank marker symbol used when none is configured.
const DefaultBlank = "^"

// WordPieceMarker prefixes sub-word units that start a new word
// (SentencePiece / BPE convention).
const WordPieceMarker = "▁"

// Space is the word delimiter of character vocabularies.
const Space = " "

var (
	// ErrIndexOutOfRange is returned when an index has no symbol.
	ErrIndexOutOfRange = errors.New("vocab: index out of range")
	// ErrDuplicateSymbol is returned when a symbol appears twice.
	ErrDuplicateSymbol = errors.New("vocab: duplicate symbol")
	// ErrEmptySymbol is returned for an empty symbol string.
	ErrEmptySymbol = errors.New("vocab: empty symbol")
)

// Vocabulary is an array-backed bidirectional index/symbol table.
type Vocabulary struct {
	symbols  []string // index -> symbol; [0] is the blank marker
	rendered []string // index -> text contributed to decoded output
	leading  []string // rendering at the very start of a text
	index    map[string]int
}

type options struct {
	blank string
}

// Option configures a Vocabulary.
type Option func(*options)

// WithBlank sets the blank marker symbol stored at index 0.
func WithBlank(symbol string) Option {
	return func(o *options) {
		o.blank = symbol
	}
}

// New builds a Vocabulary with the blank marker at index 0 followed by
// symbols in input order.
func New(symbols []string, opts ...Option) (*Vocabulary, error) {
	o := options{blank: DefaultBlank}
	for _, opt := range opts {
		opt(&o)
	}
	if o.blank == "" {
		return nil, fmt.Errorf("%w: blank marker", ErrEmptySymbol)
	}

	n := len(symbols) + 1
	v := &Vocabulary{
		symbols:  make([]string, n),
		rendered: make([]string, n),
		leading:  make([]string, n),
		index:    make(map[string]int, n),
	}
	v.symbols[0] = o.blank
	v.index[o.blank] = 0

	for i, s := range symbols {
		idx := i + 1
		if s == "" {
			return nil, fmt.Errorf("%w at position %d", ErrEmptySymbol, i)
		}
		if prev, ok := v.index[s]; ok {
			return nil, fmt.Errorf("%w: %q at indices %d and %d", ErrDuplicateSymbol, s, prev, idx)
		}
		v.symbols[idx] = s
		v.index[s] = idx
		v.rendered[idx], v.leading[idx] = render(s)
	}
	return v, nil
}

// render returns the text a symbol contributes in the middle of a text and
// at its start. Word-piece units become a space plus the unit, except at the
// start where the marker is dropped.
func render(s string) (mid, head string) {
	if rest, ok := strings.CutPrefix(s, WordPieceMarker); ok {
		return Space + rest, rest
	}
	return s, s
}

// Size returns the number of indices, blank included.
func (v *Vocabulary) Size() int {
	return len(v.symbols)
}

// Blank returns the blank index. It is always 0.
func (v *Vocabulary) Blank() int {
	return 0
}

// BlankSymbol returns the blank marker symbol.
func (v *Vocabulary) BlankSymbol() string {
	return v.symbols[0]
}

// Symbol returns the symbol stored at index i.
func (v *Vocabulary) Symbol(i int) (string, error) {
	if i < 0 || i >= len(v.symbols) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(v.symbols))
	}
	return v.symbols[i], nil
}

// Index returns the index of symbol s.
func (v *Vocabulary) Index(s string) (int, bool) {
	i, ok := v.index[s]
	return i, ok
}

// Symbols returns a copy of all symbols in index order, blank first.
func (v *Vocabulary) Symbols() []string {
	out := make([]string, len(v.symbols))
	copy(out, v.symbols)
	return out
}

// Render returns the text symbol i contributes to decoded output. atStart
// selects the rendering used as the first unit of a text.
func (v *Vocabulary) Render(i int, atStart bool) (string, error) {
	if i < 0 || i >= len(v.symbols) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(v.symbols))
	}
	if atStart {
		return v.leading[i], nil
	}
	return v.rendered[i], nil
}

// Append returns text extended by the rendering of symbol i. The blank
// contributes nothing.
func (v *Vocabulary) Append(text string, i int) (string, error) {
	r, err := v.Render(i, text == "")
	if err != nil {
		return "", err
	}
	return text + r, nil
}
