package decoder

import (
	"fmt"
	"math"

	"github.com/ieee0824/ctcdecode/emission"
)

// Config holds beam search parameters.
type Config struct {
	BeamSize int     // maximum number of retained hypotheses per frame
	Alpha    float64 // language model weight
	Beta     float64 // bonus per completed word

	// Input is the convention of the frame values.
	Input emission.Convention

	// BeamPruneLogProb drops retained hypotheses scoring below
	// best+BeamPruneLogProb. 0 disables.
	BeamPruneLogProb float64

	// TokenMinLogProb skips symbols whose frame log probability is below the
	// threshold unless they are the frame's most likely symbol. 0 disables.
	TokenMinLogProb float64

	// Observer, when set, is told about every frame's candidate counts.
	Observer Observer
}

// Observer receives per-frame search statistics.
type Observer interface {
	ObserveStep(frame, candidates, retained int)
}

// DefaultConfig returns reasonable default parameters.
func DefaultConfig() Config {
	return Config{
		BeamSize: 100,
		Alpha:    0.5,
		Beta:     1.0,
		Input:    emission.Probabilities,
	}
}

// Validate reports configuration errors. All errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.BeamSize < 1 {
		return fmt.Errorf("%w: beam size %d, want >= 1", ErrInvalidConfig, c.BeamSize)
	}
	if math.IsNaN(c.Alpha) || math.IsInf(c.Alpha, 0) || c.Alpha < 0 {
		return fmt.Errorf("%w: alpha %g, want finite and >= 0", ErrInvalidConfig, c.Alpha)
	}
	if math.IsNaN(c.Beta) || math.IsInf(c.Beta, 0) {
		return fmt.Errorf("%w: beta %g, want finite", ErrInvalidConfig, c.Beta)
	}
	if c.Input != emission.Probabilities && c.Input != emission.LogProbabilities {
		return fmt.Errorf("%w: input convention %v", ErrInvalidConfig, c.Input)
	}
	if math.IsNaN(c.BeamPruneLogProb) || c.BeamPruneLogProb > 0 {
		return fmt.Errorf("%w: beam prune log prob %g, want <= 0", ErrInvalidConfig, c.BeamPruneLogProb)
	}
	if math.IsNaN(c.TokenMinLogProb) || c.TokenMinLogProb > 0 {
		return fmt.Errorf("%w: token min log prob %g, want <= 0", ErrInvalidConfig, c.TokenMinLogProb)
	}
	return nil
}
