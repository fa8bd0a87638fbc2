package vocab

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNonContiguous is returned when a JSON vocabulary skips an id.
var ErrNonContiguous = errors.New("vocab: token ids are not contiguous")

// spaceToken is the textual spelling of the space symbol in vocabulary files.
const spaceToken = "<space>"

// blankTokens are spellings of the blank marker found in exported
// vocabularies. Blank is implicit at index 0, so a leading blank entry is
// skipped; anywhere else it is an error.
var blankTokens = map[string]bool{
	"<blank>": true,
	"<blk>":   true,
	"[blank]": true,
	"<pad>":   true,
	"<eps>":   true,
}

// EnglishSymbols returns the character alphabet of the LibriSpeech-style
// models: lowercase letters, apostrophe, and space.
func EnglishSymbols() []string {
	symbols := make([]string, 0, 28)
	for c := 'a'; c <= 'z'; c++ {
		symbols = append(symbols, string(c))
	}
	return append(symbols, "'", Space)
}

// English returns a Vocabulary over EnglishSymbols with the default blank.
func English() *Vocabulary {
	v, err := New(EnglishSymbols())
	if err != nil {
		panic(err) // static alphabet
	}
	return v
}

// Load reads one symbol per line. A tab ends the symbol (SentencePiece
// .vocab files carry a score column), "<space>" denotes the space symbol,
// and a blank-marker spelling is skipped when it is the first entry.
func Load(r io.Reader, opts ...Option) (*Vocabulary, error) {
	blank := resolveBlank(opts)
	scanner := bufio.NewScanner(r)
	var symbols []string
	skipped := false
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if tok, _, ok := strings.Cut(line, "\t"); ok {
			line = tok
		}
		if line == "" {
			continue
		}
		if line != Space {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
		}
		if line == spaceToken {
			line = Space
		}
		if blankTokens[line] || line == blank {
			if len(symbols) == 0 && !skipped {
				skipped = true
				continue
			}
			return nil, fmt.Errorf("%w: blank marker %q on line %d", ErrDuplicateSymbol, line, lineNum)
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return New(symbols, opts...)
}

// LoadJSON reads an id -> token object such as {"1": "a", "2": "b"}.
// Ids must be contiguous from 1; id 0, when present, must be a blank token.
func LoadJSON(r io.Reader, opts ...Option) (*Vocabulary, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse vocabulary JSON: %w", err)
	}

	ids := make([]int, 0, len(raw))
	byID := make(map[int]string, len(raw))
	for k, tok := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", k, err)
		}
		ids = append(ids, id)
		byID[id] = tok
	}
	sort.Ints(ids)

	if len(ids) > 0 && ids[0] == 0 {
		if tok := byID[0]; !blankTokens[tok] && tok != resolveBlank(opts) {
			return nil, fmt.Errorf("vocab: id 0 is %q, want a blank token", tok)
		}
		ids = ids[1:]
	}

	symbols := make([]string, 0, len(ids))
	for i, id := range ids {
		if id != i+1 {
			return nil, fmt.Errorf("%w: expected id %d, got %d", ErrNonContiguous, i+1, id)
		}
		tok := byID[id]
		if tok == spaceToken {
			tok = Space
		}
		if blankTokens[tok] {
			return nil, fmt.Errorf("%w: blank marker %q at id %d", ErrDuplicateSymbol, tok, id)
		}
		symbols = append(symbols, tok)
	}
	return New(symbols, opts...)
}

// LoadFile opens path and loads it with LoadJSON for .json files and Load
// otherwise.
func LoadFile(path string, opts ...Option) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(f, opts...)
	}
	return Load(f, opts...)
}

func resolveBlank(opts []Option) string {
	o := options{blank: DefaultBlank}
	for _, opt := range opts {
		opt(&o)
	}
	return o.blank
}
