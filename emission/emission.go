// Package emission handles per-timestep symbol distributions produced by an
// acoustic model: one row (frame) per time step, one column per vocabulary
// index.
package emission

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ieee0824/ctcdecode/internal/mathutil"
)

// Convention tells how frame values are expressed.
type Convention int

const (
	// Probabilities are values in [0,1] summing to 1 per frame.
	Probabilities Convention = iota
	// LogProbabilities are natural-log values whose exponentials sum to 1.
	LogProbabilities
)

// distributionTolerance bounds the deviation accepted by Validate.
const distributionTolerance = 1e-3

var (
	// ErrRagged is returned when frames have different widths.
	ErrRagged = errors.New("emission: frames have different widths")
	// ErrWidth is returned when the frame width differs from the vocabulary size.
	ErrWidth = errors.New("emission: frame width does not match vocabulary size")
	// ErrDistribution is returned when a frame is not a valid distribution.
	ErrDistribution = errors.New("emission: frame is not a probability distribution")
)

func (c Convention) String() string {
	switch c {
	case Probabilities:
		return "prob"
	case LogProbabilities:
		return "logprob"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// ParseConvention parses "prob"/"probabilities" or "logprob"/"log_probabilities".
// An empty string selects Probabilities.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prob", "probs", "probabilities":
		return Probabilities, nil
	case "logprob", "logprobs", "log_probabilities", "log-probabilities":
		return LogProbabilities, nil
	}
	return 0, fmt.Errorf("emission: unknown convention %q", s)
}

// Width returns the common width of frames, 0 when there are none.
func Width(frames [][]float64) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}
	w := len(frames[0])
	for t, f := range frames {
		if len(f) != w {
			return 0, fmt.Errorf("%w: frame %d has %d values, frame 0 has %d", ErrRagged, t, len(f), w)
		}
	}
	return w, nil
}

// CheckWidth verifies that every frame has exactly width values.
func CheckWidth(frames [][]float64, width int) error {
	for t, f := range frames {
		if len(f) != width {
			return fmt.Errorf("%w: frame %d has %d values, vocabulary has %d", ErrWidth, t, len(f), width)
		}
	}
	return nil
}

// Validate checks frame widths and that each frame is a distribution under conv.
func Validate(frames [][]float64, width int, conv Convention) error {
	if err := CheckWidth(frames, width); err != nil {
		return err
	}
	for t, f := range frames {
		switch conv {
		case Probabilities:
			for i, p := range f {
				if math.IsNaN(p) || p < 0 || p > 1 {
					return fmt.Errorf("%w: frame %d index %d has value %g", ErrDistribution, t, i, p)
				}
			}
			if s := mathutil.SumVec(f); math.Abs(s-1) > distributionTolerance {
				return fmt.Errorf("%w: frame %d sums to %g", ErrDistribution, t, s)
			}
		case LogProbabilities:
			for i, lp := range f {
				if math.IsNaN(lp) || lp > distributionTolerance {
					return fmt.Errorf("%w: frame %d index %d has log value %g", ErrDistribution, t, i, lp)
				}
			}
			if s := mathutil.LogSumExp(f); math.Abs(s) > distributionTolerance {
				return fmt.Errorf("%w: frame %d log-sums to %g", ErrDistribution, t, s)
			}
		default:
			return fmt.Errorf("emission: unknown convention %v", conv)
		}
	}
	return nil
}

// ToLogProbs returns frames as natural-log probabilities. Probabilities are
// converted with log, zero mapping to mathutil.LogZero; log-probabilities are
// returned unchanged (not copied).
func ToLogProbs(frames [][]float64, conv Convention) [][]float64 {
	if conv == LogProbabilities || len(frames) == 0 {
		return frames
	}
	out := mathutil.NewMat(len(frames), len(frames[0]))
	for t, f := range frames {
		for i, p := range f {
			out[t][i] = mathutil.SafeLog(p)
		}
	}
	return out
}

// ArgmaxPath returns the most likely index of every frame. The ordering is
// the same for both conventions, so frames are used as-is.
func ArgmaxPath(frames [][]float64) []int {
	path := make([]int, len(frames))
	for t, f := range frames {
		path[t] = mathutil.Argmax(f)
	}
	return path
}
