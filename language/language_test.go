package language

import (
	"compress/gzip"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ieee0824/ctcdecode/internal/mathutil"
)

const testARPA = `\data\
ngram 1=6
ngram 2=4

\1-grams:
-1.0	</s>
-99	<s>	-0.5
-0.5	the	-0.2
-0.7	cat	-0.3
-0.9	sat
-2.0	<unk>

\2-grams:
-0.3	<s> the
-0.4	the cat
-0.2	cat sat
-0.1	sat </s>

\end\
`

const trigramARPA = `\data\
ngram 1=4
ngram 2=3
ngram 3=1

\1-grams:
-1.0	</s>
-99	<s>	-0.5
-0.5	a	-0.2
-0.6	b	-0.4

\2-grams:
-0.3	<s> a	-0.1
-0.4	a b	-0.25
-0.2	b a

\3-grams:
-0.05	<s> a b

\end\
`

func loadTest(t *testing.T, arpa string) *NGramModel {
	t.Helper()
	model, err := LoadARPA(strings.NewReader(arpa))
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	return model
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-10
}

func TestLoadARPA(t *testing.T) {
	model := loadTest(t, testARPA)

	if model.Order != 2 {
		t.Errorf("Order = %d, want 2", model.Order)
	}
	if c := model.Counts(); len(c) != 2 || c[0] != 6 || c[1] != 4 {
		t.Errorf("Counts = %v, want [6 4]", c)
	}

	lp, bo, ok := model.Entry("cat")
	if !ok {
		t.Fatal("missing unigram for cat")
	}
	if want := -0.7 * math.Ln10; !almostEqual(lp, want) {
		t.Errorf("cat LogProb = %f, want %f", lp, want)
	}
	if want := -0.3 * math.Ln10; !almostEqual(bo, want) {
		t.Errorf("cat LogBackoff = %f, want %f", bo, want)
	}
	if lp, _, ok := model.Entry("the", "cat"); !ok || !almostEqual(lp, -0.4*math.Ln10) {
		t.Errorf("Entry(the cat) = %f, %v", lp, ok)
	}
	if _, _, ok := model.Entry("a", "b", "c"); ok {
		t.Error("Entry above the model order should miss")
	}
	if want := -2.0 * math.Ln10; !almostEqual(model.OOVLogProb, want) {
		t.Errorf("OOVLogProb = %f, want %f (from <unk>)", model.OOVLogProb, want)
	}
}

func TestLoadARPA_NoUnk(t *testing.T) {
	model := loadTest(t, trigramARPA)
	if model.OOVLogProb != mathutil.LogZero {
		t.Errorf("OOVLogProb = %g, want LogZero", model.OOVLogProb)
	}
	if got := model.LogProb(nil, "zebra"); got != mathutil.LogZero {
		t.Errorf("LogProb(zebra) = %g, want LogZero", got)
	}
}

func TestLoadARPA_Errors(t *testing.T) {
	tests := []struct {
		name    string
		arpa    string
		wantErr error
	}{
		{"no_header", "1-grams:\n-1.0 a\n", ErrFormat},
		{"no_counts", "\\data\\\n\\1-grams:\n-1.0 a\n\\end\\\n", ErrFormat},
		{"entry_outside_section", "\\data\\\nngram 1=1\n-1.0 a\n\\end\\\n", ErrFormat},
		{"bad_count", "\\data\\\nngram 1=x\n", ErrFormat},
		{"bad_prob", "\\data\\\nngram 1=1\n\\1-grams:\nabc a\n\\end\\\n", ErrFormat},
		{"too_few_fields", "\\data\\\nngram 1=1\nngram 2=1\n\\2-grams:\n-1.0 a\n\\end\\\n", ErrFormat},
		{"undeclared_section", "\\data\\\nngram 1=1\n\\2-grams:\n-1.0 a b\n\\end\\\n", ErrFormat},
		{"missing_end", "\\data\\\nngram 1=1\n\\1-grams:\n-1.0 a\n", ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadARPA(strings.NewReader(tt.arpa))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadARPA error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadARPAFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "lm.arpa")
	if err := os.WriteFile(plain, []byte(testARPA), 0o644); err != nil {
		t.Fatal(err)
	}

	gz := filepath.Join(dir, "lm.arpa.gz")
	f, err := os.Create(gz)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(testARPA)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{plain, gz} {
		model, err := LoadARPAFile(path)
		if err != nil {
			t.Fatalf("LoadARPAFile(%s) error: %v", path, err)
		}
		if c := model.Counts(); c[0] != 6 {
			t.Errorf("%s: %d unigrams, want 6", path, c[0])
		}
	}

	if _, err := LoadARPAFile(filepath.Join(dir, "missing.arpa")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
}

func TestLogProb_Bigram(t *testing.T) {
	model := loadTest(t, testARPA)

	lp := model.LogProb([]string{SentenceStart}, "the")
	if want := -0.3 * math.Ln10; !almostEqual(lp, want) {
		t.Errorf("LogProb(<s>, the) = %f, want %f", lp, want)
	}
}

func TestLogProb_Backoff(t *testing.T) {
	model := loadTest(t, testARPA)

	// No "cat the" bigram: backoff(cat) + P(the).
	lp := model.LogProb([]string{"cat"}, "the")
	if want := (-0.3 + -0.5) * math.Ln10; !almostEqual(lp, want) {
		t.Errorf("LogProb(cat, the) = %f, want %f", lp, want)
	}
}

func TestLogProb_Trigram(t *testing.T) {
	model := loadTest(t, trigramARPA)

	tests := []struct {
		name    string
		history []string
		word    string
		want    float64
	}{
		{"exact", []string{"<s>", "a"}, "b", -0.05},
		// No "a b a" trigram: backoff(a b) + P(a | b).
		{"backoff_to_bigram", []string{"a", "b"}, "a", -0.25 + -0.2},
		// No "b a b" trigram and no backoff for "b a": P(b | a).
		{"missing_context", []string{"b", "a"}, "b", -0.4},
		// backoff(<s> a) + backoff(a) + P(a).
		{"backoff_to_unigram", []string{"<s>", "a"}, "a", -0.1 + -0.2 + -0.5},
		{"long_history", []string{"b", "b", "<s>", "a"}, "b", -0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.LogProb(tt.history, tt.word)
			if want := tt.want * math.Ln10; !almostEqual(got, want) {
				t.Errorf("LogProb(%v, %s) = %f, want %f", tt.history, tt.word, got, want)
			}
		})
	}
}

const fourgramARPA = `\data\
ngram 1=5
ngram 2=3
ngram 3=2
ngram 4=1

\1-grams:
-1.0	</s>
-99	<s>	-0.5
-0.5	a	-0.2
-0.6	b	-0.4
-0.7	c	-0.3

\2-grams:
-0.3	<s> a	-0.1
-0.4	a b	-0.25
-0.2	b c	-0.15

\3-grams:
-0.05	<s> a b	-0.35
-0.1	a b c

\4-grams:
-0.01	<s> a b c

\end\
`

func TestLogProb_FourGram(t *testing.T) {
	model := loadTest(t, fourgramARPA)

	if model.Order != 4 {
		t.Fatalf("Order = %d, want 4", model.Order)
	}
	if c := model.Counts(); len(c) != 4 || c[0] != 5 || c[1] != 3 || c[2] != 2 || c[3] != 1 {
		t.Errorf("Counts = %v, want [5 3 2 1]", c)
	}

	tests := []struct {
		name    string
		history []string
		word    string
		want    float64
	}{
		{"exact", []string{"<s>", "a", "b"}, "c", -0.01},
		{"long_history", []string{"c", "<s>", "a", "b"}, "c", -0.01},
		// No "b a b c" and no "b a b" backoff: P(c | a b).
		{"backoff_to_trigram", []string{"b", "a", "b"}, "c", -0.1},
		// backoff(<s> a b) + backoff(a b) + backoff(b) + P(a).
		{"backoff_to_unigram", []string{"<s>", "a", "b"}, "a", -0.35 + -0.25 + -0.4 + -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.LogProb(tt.history, tt.word)
			if want := tt.want * math.Ln10; !almostEqual(got, want) {
				t.Errorf("LogProb(%v, %s) = %f, want %f", tt.history, tt.word, got, want)
			}
		})
	}

	// </s> after "a b c": no 4-gram, no "a b c" backoff, backoff(b c) +
	// backoff(c) + P(</s>).
	want := (-0.3 + -0.05 + -0.01 + (-0.15 + -0.3 + -1.0)) * math.Ln10
	if got := model.SentenceLogProb([]string{"a", "b", "c"}); !almostEqual(got, want) {
		t.Errorf("SentenceLogProb(a b c) = %f, want %f", got, want)
	}
	if got, _ := NewScorer(model).LogProb("a b c", true); !almostEqual(got, want) {
		t.Errorf("WordScorer.LogProb(a b c) = %f, want %f", got, want)
	}
}

func TestLowercased(t *testing.T) {
	model := loadTest(t, `\data\
ngram 1=4
ngram 2=1

\1-grams:
-1.0	</s>
-99	<s>
-1.0	The
-0.5	THE

\2-grams:
-0.3	<s> THE

\end\
`)
	folded := model.Lowercased()
	if lp, _, ok := folded.Entry("the"); !ok || !almostEqual(lp, -0.5*math.Ln10) {
		t.Errorf("Entry(the) = %f, %v, want the more probable spelling", lp, ok)
	}
	if c := folded.Counts(); c[0] != 3 || c[1] != 1 {
		t.Errorf("Counts = %v, want [3 1]", c)
	}
	if got := folded.LogProb([]string{SentenceStart}, "the"); !almostEqual(got, -0.3*math.Ln10) {
		t.Errorf("LogProb(<s>, the) = %f", got)
	}
	if folded.OOVLogProb != mathutil.LogZero {
		t.Errorf("OOVLogProb = %g, want LogZero", folded.OOVLogProb)
	}
}

func TestSentenceLogProb(t *testing.T) {
	model := loadTest(t, testARPA)

	lp := model.SentenceLogProb([]string{"the", "cat", "sat"})
	if want := (-0.3 + -0.4 + -0.2 + -0.1) * math.Ln10; !almostEqual(lp, want) {
		t.Errorf("SentenceLogProb = %f, want %f", lp, want)
	}
}

func TestVocab(t *testing.T) {
	model := loadTest(t, testARPA)

	got := model.Vocab()
	want := []string{"</s>", "<s>", "<unk>", "cat", "sat", "the"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Vocab = %v, want %v", got, want)
	}
	if !model.Has("cat") || model.Has("dog") {
		t.Error("Has mismatch")
	}
	if c := model.Counts(); len(c) != 2 || c[0] != 6 || c[1] != 4 {
		t.Errorf("Counts = %v, want [6 4]", c)
	}
}
