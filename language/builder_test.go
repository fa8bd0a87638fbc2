package language

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func buildARPA(t *testing.T, b *Builder) string {
	t.Helper()
	var buf bytes.Buffer
	if err := b.WriteARPA(&buf); err != nil {
		t.Fatalf("WriteARPA error: %v", err)
	}
	return buf.String()
}

func TestBuilderBigram(t *testing.T) {
	b := NewBuilder(2)
	b.AddSentence([]string{"the", "cat"})
	b.AddSentence([]string{"the", "cat", "sat", "down"})
	b.AddSentence([]string{"the", "dog"})

	arpa := buildARPA(t, b)
	for _, section := range []string{`\data\`, `\1-grams:`, `\2-grams:`, `\end\`} {
		if !strings.Contains(arpa, section) {
			t.Errorf("missing %s section", section)
		}
	}
	if strings.Contains(arpa, `\3-grams:`) {
		t.Error("unexpected \\3-grams: section for bigram model")
	}

	model, err := LoadARPA(strings.NewReader(arpa))
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	if model.Order != 2 {
		t.Errorf("Order = %d, want 2", model.Order)
	}
	if !model.Has("cat") {
		t.Error("cat not in vocabulary")
	}

	// 3 "the" after <s>, seen with 1 distinct follower: 3/(3+1).
	if got, want := model.LogProb([]string{SentenceStart}, "the"), math.Log(0.75); math.Abs(got-want) > 1e-5 {
		t.Errorf("LogProb(<s>, the) = %f, want %f", got, want)
	}

	score := model.SentenceLogProb([]string{"the", "cat"})
	if math.IsNaN(score) || math.IsInf(score, 0) {
		t.Errorf("SentenceLogProb = %f (not finite)", score)
	}
}

func TestBuilderTrigram(t *testing.T) {
	b := NewBuilder(3)
	b.AddSentence([]string{"it", "is", "a", "nice", "day"})
	b.AddSentence([]string{"it", "is", "hot"})
	b.AddSentence([]string{"tomorrow", "is", "a", "nice", "day"})

	arpa := buildARPA(t, b)
	if !strings.Contains(arpa, `\3-grams:`) {
		t.Error("missing \\3-grams: section")
	}

	model, err := LoadARPA(strings.NewReader(arpa))
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	if model.Order != 3 {
		t.Errorf("Order = %d, want 3", model.Order)
	}

	seen := model.SentenceLogProb([]string{"it", "is", "a", "nice", "day"})
	unseen := model.SentenceLogProb([]string{"it", "is", "a", "cold", "day"})
	if seen <= unseen {
		t.Errorf("seen sentence should score higher: %.4f <= %.4f", seen, unseen)
	}
}

func TestBuilderRoundTrip(t *testing.T) {
	b := NewBuilder(3)
	for _, s := range [][]string{{"a", "b"}, {"a", "b", "c"}, {"b", "c"}} {
		b.AddSentence(s)
	}

	model, err := LoadARPA(strings.NewReader(buildARPA(t, b)))
	if err != nil {
		t.Fatalf("LoadARPA round-trip error: %v", err)
	}

	if model.Order != 3 {
		t.Errorf("Order = %d, want 3", model.Order)
	}
	for n, grams := range model.grams {
		for key, e := range grams {
			if e.LogProb >= 0 || math.IsNaN(e.LogProb) || math.IsInf(e.LogProb, 0) {
				t.Errorf("%d-gram %q LogProb = %f, want finite negative", n+1, key, e.LogProb)
			}
		}
	}
}

func TestBuilderOrderClamp(t *testing.T) {
	if got := NewBuilder(1).Order(); got != 2 {
		t.Errorf("NewBuilder(1).Order() = %d, want 2", got)
	}
	if got := NewBuilder(5).Order(); got != MaxBuildOrder {
		t.Errorf("NewBuilder(5).Order() = %d, want %d", got, MaxBuildOrder)
	}
}

func TestBuilderReadCorpus(t *testing.T) {
	b := NewBuilder(2)
	corpus := "The cat sat\n\n  the DOG  \n"

	n, err := b.ReadCorpus(strings.NewReader(corpus), strings.ToLower)
	if err != nil {
		t.Fatalf("ReadCorpus error: %v", err)
	}
	if n != 2 || b.Sentences() != 2 {
		t.Errorf("ReadCorpus = %d (Sentences %d), want 2", n, b.Sentences())
	}

	model, err := LoadARPA(strings.NewReader(buildARPA(t, b)))
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	if !model.Has("dog") || model.Has("DOG") {
		t.Error("corpus lines should be normalized before counting")
	}
}

func TestBuilderEmpty(t *testing.T) {
	if err := NewBuilder(2).WriteARPA(&bytes.Buffer{}); err == nil {
		t.Error("WriteARPA on an empty builder should fail")
	}
}

type failingWriter struct{}

var errWrite = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestBuilderWriteError(t *testing.T) {
	b := NewBuilder(2)
	b.AddSentence([]string{"a"})
	if err := b.WriteARPA(failingWriter{}); !errors.Is(err, errWrite) {
		t.Errorf("WriteARPA error = %v, want %v", err, errWrite)
	}
}
