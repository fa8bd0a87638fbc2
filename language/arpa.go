package language

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrFormat is returned for malformed ARPA input.
var ErrFormat = errors.New("language: malformed ARPA")

// LoadARPAFile reads an ARPA model from path. Files ending in .gz are
// decompressed transparently.
func LoadARPAFile(path string) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 1<<20)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	m, err := LoadARPA(r)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// LoadARPA reads a language model in ARPA format. ARPA stores base-10 logs;
// they are converted to natural logs.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	next := func() (string, bool) {
		for scanner.Scan() {
			lineNo++
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				return line, true
			}
		}
		return "", false
	}

	var line string
	var ok bool
	for {
		if line, ok = next(); !ok {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: missing \\data\\ header", ErrFormat)
		}
		if line == `\data\` {
			break
		}
	}

	declared := make(map[int]int)
	order := 0
	for {
		if line, ok = next(); !ok {
			return nil, fmt.Errorf("%w: truncated after \\data\\", ErrFormat)
		}
		rest, isCount := strings.CutPrefix(line, "ngram ")
		if !isCount {
			break
		}
		ns, cs, found := strings.Cut(rest, "=")
		n, err1 := strconv.Atoi(strings.TrimSpace(ns))
		c, err2 := strconv.Atoi(strings.TrimSpace(cs))
		if !found || err1 != nil || err2 != nil || n < 1 {
			return nil, fmt.Errorf("%w: line %d: bad count %q", ErrFormat, lineNo, line)
		}
		declared[n] = c
		order = max(order, n)
	}
	if order == 0 {
		return nil, fmt.Errorf("%w: no ngram counts", ErrFormat)
	}

	model := NewNGramModel(order)
	section := 0
	for {
		switch {
		case line == `\end\`:
			if e, ok := model.grams[0][Unknown]; ok {
				model.OOVLogProb = e.LogProb
			}
			return model, nil
		case strings.HasPrefix(line, `\`) && strings.HasSuffix(line, "-grams:"):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, `\`), "-grams:"))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad section %q", ErrFormat, lineNo, line)
			}
			if _, ok := declared[n]; !ok {
				return nil, fmt.Errorf("%w: line %d: section for undeclared %d-grams", ErrFormat, lineNo, n)
			}
			section = n
		case section == 0:
			return nil, fmt.Errorf("%w: line %d: entry outside a section", ErrFormat, lineNo)
		default:
			if err := parseNGramLine(model, section, line); err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, lineNo, err)
			}
		}
		if line, ok = next(); !ok {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: missing \\end\\", ErrFormat)
		}
	}
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 || len(fields) > order+2 {
		return fmt.Errorf("%d fields for a %d-gram: %q", len(fields), order, line)
	}

	log10Prob, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}
	entry := ngramEntry{LogProb: log10Prob * math.Ln10}
	if len(fields) == order+2 {
		bo, err := strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
		entry.LogBackoff = bo * math.Ln10
	}

	model.set(fields[1:order+1], entry)
	return nil
}
