package language

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
)

// Builder counts n-grams over tokenized sentences and writes a Witten-Bell
// smoothed ARPA model.
type Builder struct {
	order     int
	sentences int
	unigrams  map[string]int
	bigrams   map[[2]string]int
	trigrams  map[[3]string]int
}

// MaxBuildOrder is the highest order Builder counts.
const MaxBuildOrder = 3

// NewBuilder creates a builder of the given order, clamped to [2, MaxBuildOrder].
func NewBuilder(order int) *Builder {
	return &Builder{
		order:    min(max(order, 2), MaxBuildOrder),
		unigrams: make(map[string]int),
		bigrams:  make(map[[2]string]int),
		trigrams: make(map[[3]string]int),
	}
}

// Order returns the order of the model being built.
func (b *Builder) Order() int {
	return b.order
}

// Sentences returns the number of sentences added.
func (b *Builder) Sentences() int {
	return b.sentences
}

// AddSentence adds a tokenized sentence. <s> and </s> are added.
func (b *Builder) AddSentence(words []string) {
	if len(words) == 0 {
		return
	}
	b.sentences++
	seq := make([]string, 0, len(words)+2)
	seq = append(seq, SentenceStart)
	seq = append(seq, words...)
	seq = append(seq, SentenceEnd)

	for i, w := range seq {
		b.unigrams[w]++
		if i >= 1 {
			b.bigrams[[2]string{seq[i-1], w}]++
		}
		if b.order >= 3 && i >= 2 {
			b.trigrams[[3]string{seq[i-2], seq[i-1], w}]++
		}
	}
}

// ReadCorpus adds one sentence per line of r, words separated by
// whitespace. normalize, when non-nil, is applied to every line first.
func (b *Builder) ReadCorpus(r io.Reader, normalize func(string) string) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		if normalize != nil {
			line = normalize(line)
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		b.AddSentence(words)
		n++
	}
	return n, scanner.Err()
}

// wbContext holds Witten-Bell statistics of one history: N(h) tokens and
// T(h) distinct followers.
type wbContext struct {
	tokens    int
	types     int
	followers []string
}

func (c *wbContext) denom() float64 {
	return float64(c.tokens + c.types)
}

// WriteARPA writes the model in ARPA format (log10 values) to w.
func (b *Builder) WriteARPA(w io.Writer) error {
	uniTotal := 0
	for _, c := range b.unigrams {
		uniTotal += c
	}
	if uniTotal == 0 {
		return fmt.Errorf("language: no sentences to build a model from")
	}
	pUni := func(word string) float64 {
		return float64(b.unigrams[word]) / float64(uniTotal)
	}

	biCtx := make(map[string]*wbContext)
	for key, c := range b.bigrams {
		ctx := biCtx[key[0]]
		if ctx == nil {
			ctx = &wbContext{}
			biCtx[key[0]] = ctx
		}
		ctx.tokens += c
		ctx.types++
		ctx.followers = append(ctx.followers, key[1])
	}
	pBi := func(prev, word string) float64 {
		if c, ok := b.bigrams[[2]string{prev, word}]; ok {
			return float64(c) / biCtx[prev].denom()
		}
		return pUni(word)
	}

	triCtx := make(map[[2]string]*wbContext)
	for key, c := range b.trigrams {
		h := [2]string{key[0], key[1]}
		ctx := triCtx[h]
		if ctx == nil {
			ctx = &wbContext{}
			triCtx[h] = ctx
		}
		ctx.tokens += c
		ctx.types++
		ctx.followers = append(ctx.followers, key[2])
	}

	// backoff returns the log10 weight spreading the reserved mass of ctx
	// over the lower-order distribution of the unseen words.
	backoff := func(ctx *wbContext, lower func(string) float64) float64 {
		if ctx == nil {
			return 0
		}
		seen := float64(ctx.tokens) / ctx.denom()
		lowerSeen := 0.0
		for _, f := range ctx.followers {
			lowerSeen += lower(f)
		}
		if lowerSeen >= 1 {
			return 0
		}
		return math.Log10((1 - seen) / (1 - lowerSeen))
	}

	ew := &errWriter{w: bufio.NewWriter(w)}
	ew.printf("\\data\\\n")
	ew.printf("ngram 1=%d\n", len(b.unigrams))
	ew.printf("ngram 2=%d\n", len(b.bigrams))
	if b.order >= 3 && len(b.trigrams) > 0 {
		ew.printf("ngram 3=%d\n", len(b.trigrams))
	}

	ew.printf("\n\\1-grams:\n")
	for _, word := range sortedKeys(b.unigrams, strings.Compare) {
		bo := backoff(biCtx[word], pUni)
		ew.entry(math.Log10(pUni(word)), word, bo)
	}

	ew.printf("\n\\2-grams:\n")
	for _, key := range sortedKeys(b.bigrams, compareKeys[[2]string]) {
		lp := math.Log10(float64(b.bigrams[key]) / biCtx[key[0]].denom())
		bo := 0.0
		if b.order >= 3 {
			bo = backoff(triCtx[key], func(word string) float64 { return pBi(key[1], word) })
		}
		ew.entry(lp, key[0]+" "+key[1], bo)
	}

	if b.order >= 3 && len(b.trigrams) > 0 {
		ew.printf("\n\\3-grams:\n")
		for _, key := range sortedKeys(b.trigrams, compareKeys[[3]string]) {
			lp := math.Log10(float64(b.trigrams[key]) / triCtx[[2]string{key[0], key[1]}].denom())
			ew.entry(lp, key[0]+" "+key[1]+" "+key[2], 0)
		}
	}

	ew.printf("\n\\end\\\n")
	return ew.flush()
}

func sortedKeys[K comparable, V any](m map[K]V, cmp func(a, b K) int) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp)
	return keys
}

func compareKeys[K [2]string | [3]string](a, b K) int {
	for i := range len(a) {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// errWriter keeps the first write error.
type errWriter struct {
	w   *bufio.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) entry(logProb float64, words string, logBackoff float64) {
	if logBackoff != 0 {
		e.printf("%.6f\t%s\t%.6f\n", logProb, words, logBackoff)
		return
	}
	e.printf("%.6f\t%s\n", logProb, words)
}

func (e *errWriter) flush() error {
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}
