// Package evaluate scores decoded text against reference transcripts.
package evaluate

import "strings"

// CER returns the character error rate of hyp against ref: the edit
// distance over runes divided by the reference length. An empty reference
// gives 0 for an empty hypothesis and 1 otherwise.
func CER(ref, hyp string) float64 {
	return rate(EditDistance([]rune(ref), []rune(hyp)), len([]rune(ref)), hyp != "")
}

// WER returns the word error rate of hyp against ref, words being
// whitespace-separated fields.
func WER(ref, hyp string) float64 {
	r, h := strings.Fields(ref), strings.Fields(hyp)
	return rate(EditDistance(r, h), len(r), len(h) > 0)
}

func rate(errs, total int, hypNonEmpty bool) float64 {
	if total == 0 {
		if hypNonEmpty {
			return 1
		}
		return 0
	}
	return float64(errs) / float64(total)
}

// Accumulator sums edit operations over a corpus so rates are weighted by
// reference length rather than averaged per utterance. The zero value is
// ready to use.
type Accumulator struct {
	Utterances int
	Exact      int
	CharErrors int
	Chars      int
	WordErrors int
	Words      int
}

// Add scores one utterance and returns its own CER and WER.
func (a *Accumulator) Add(ref, hyp string) (cer, wer float64) {
	rr, hr := []rune(ref), []rune(hyp)
	rw, hw := strings.Fields(ref), strings.Fields(hyp)
	ce := EditDistance(rr, hr)
	we := EditDistance(rw, hw)

	a.Utterances++
	if ref == hyp {
		a.Exact++
	}
	a.CharErrors += ce
	a.Chars += len(rr)
	a.WordErrors += we
	a.Words += len(rw)
	return rate(ce, len(rr), len(hr) > 0), rate(we, len(rw), len(hw) > 0)
}

// Merge adds the counts of other into a.
func (a *Accumulator) Merge(other Accumulator) {
	a.Utterances += other.Utterances
	a.Exact += other.Exact
	a.CharErrors += other.CharErrors
	a.Chars += other.Chars
	a.WordErrors += other.WordErrors
	a.Words += other.Words
}

// CER returns the corpus character error rate.
func (a *Accumulator) CER() float64 {
	return rate(a.CharErrors, a.Chars, a.CharErrors > 0)
}

// WER returns the corpus word error rate.
func (a *Accumulator) WER() float64 {
	return rate(a.WordErrors, a.Words, a.WordErrors > 0)
}

// ExactRate returns the fraction of utterances decoded exactly.
func (a *Accumulator) ExactRate() float64 {
	if a.Utterances == 0 {
		return 0
	}
	return float64(a.Exact) / float64(a.Utterances)
}
