package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for configuration errors, before any frame
	// is processed.
	ErrInvalidConfig = errors.New("decoder: invalid configuration")

	// ErrShapeMismatch is returned when the frame width differs from the
	// vocabulary size. It wraps ErrInvalidConfig.
	ErrShapeMismatch = fmt.Errorf("%w: frame width does not match vocabulary size", ErrInvalidConfig)

	// ErrInvalidFrame is returned when a frame leaves no possible extension.
	ErrInvalidFrame = errors.New("decoder: invalid frame")

	// ErrScorer wraps failures of the language model scorer.
	ErrScorer = errors.New("decoder: language model scorer failed")
)
