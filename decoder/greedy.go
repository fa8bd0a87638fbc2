package decoder

import (
	"fmt"
	"strings"

	"github.com/ieee0824/ctcdecode/emission"
	"github.com/ieee0824/ctcdecode/vocab"
)

// Greedy collapses a per-frame index sequence into text: consecutive repeats
// of the same raw index collapse into one, then blanks are removed. A real
// repeated symbol survives only when separated by a blank.
func Greedy(indices []int, v *vocab.Vocabulary) (string, error) {
	var b strings.Builder
	prev := -1
	for t, idx := range indices {
		if _, err := v.Symbol(idx); err != nil {
			return "", fmt.Errorf("greedy decode frame %d: %w", t, err)
		}
		if idx == prev {
			continue
		}
		prev = idx
		if idx == v.Blank() {
			continue
		}
		r, _ := v.Render(idx, b.Len() == 0)
		b.WriteString(r)
	}
	return b.String(), nil
}

// GreedyFrames decodes the argmax path of frames. Both input conventions
// share the same argmax, so frames are not converted.
func GreedyFrames(frames [][]float64, v *vocab.Vocabulary) (string, error) {
	if err := emission.CheckWidth(frames, v.Size()); err != nil {
		return "", fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	return Greedy(emission.ArgmaxPath(frames), v)
}
