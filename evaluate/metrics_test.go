package evaluate

import (
	"math"
	"testing"
)

func TestCERAndWER(t *testing.T) {
	tests := []struct {
		name     string
		ref, hyp string
		cer, wer float64
	}{
		{"exact", "the cat", "the cat", 0, 0},
		{"one_char", "the cat", "the bat", 1.0 / 7, 0.5},
		{"missing_word", "the cat sat", "the cat", 4.0 / 11, 1.0 / 3},
		{"empty_both", "", "", 0, 0},
		{"empty_ref", "", "a", 1, 1},
		{"empty_hyp", "ab", "", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CER(tt.ref, tt.hyp); math.Abs(got-tt.cer) > 1e-12 {
				t.Errorf("CER(%q, %q) = %f, want %f", tt.ref, tt.hyp, got, tt.cer)
			}
			if got := WER(tt.ref, tt.hyp); math.Abs(got-tt.wer) > 1e-12 {
				t.Errorf("WER(%q, %q) = %f, want %f", tt.ref, tt.hyp, got, tt.wer)
			}
		})
	}
}

func TestAccumulator(t *testing.T) {
	var acc Accumulator
	if acc.CER() != 0 || acc.WER() != 0 || acc.ExactRate() != 0 {
		t.Error("zero Accumulator should report zero rates")
	}

	cer, wer := acc.Add("the cat", "the bat")
	if math.Abs(cer-1.0/7) > 1e-12 || wer != 0.5 {
		t.Errorf("Add = (%f, %f), want (%f, 0.5)", cer, wer, 1.0/7)
	}
	acc.Add("a", "a")

	// Corpus rates weight by reference length: 1 error over 8 chars.
	if got := acc.CER(); math.Abs(got-1.0/8) > 1e-12 {
		t.Errorf("CER = %f, want %f", got, 1.0/8)
	}
	if got := acc.WER(); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("WER = %f, want %f", got, 1.0/3)
	}
	if got := acc.ExactRate(); got != 0.5 {
		t.Errorf("ExactRate = %f, want 0.5", got)
	}

	var other Accumulator
	other.Add("dog", "dog")
	acc.Merge(other)
	if acc.Utterances != 3 || acc.Exact != 2 || acc.Chars != 11 {
		t.Errorf("after Merge = %+v", acc)
	}
}
