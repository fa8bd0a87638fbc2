package decoder

import (
	"context"
	"fmt"
	"sort"

	"github.com/ieee0824/ctcdecode/emission"
	"github.com/ieee0824/ctcdecode/internal/mathutil"
	"github.com/ieee0824/ctcdecode/vocab"
)

// noSymbol marks a hypothesis that has not emitted anything yet.
const noSymbol = -1

// hypothesis is a beam entry: one decoded text with the acoustic mass of its
// alignments split by the last raw symbol. blank holds paths whose last
// frame was blank, symbol holds paths whose last frame was last.
type hypothesis struct {
	text   string
	last   int
	blank  float64
	symbol float64
	lm     lmTerm
	score  float64
}

func (h *hypothesis) acoustic() float64 {
	return mathutil.LogAdd(h.blank, h.symbol)
}

// lmTerm is the language model evidence for a text.
type lmTerm struct {
	logProb float64
	words   int
}

// candidates collects the extensions of one frame, merged by text, in
// discovery order.
type candidates struct {
	byText map[string]*hypothesis
	order  []*hypothesis
}

func newCandidates(capacity int) *candidates {
	return &candidates{
		byText: make(map[string]*hypothesis, capacity),
		order:  make([]*hypothesis, 0, capacity),
	}
}

func (c *candidates) reset() {
	clear(c.byText)
	c.order = c.order[:0]
}

func (c *candidates) at(text string, last int) *hypothesis {
	if h, ok := c.byText[text]; ok {
		return h
	}
	h := &hypothesis{text: text, last: last, blank: mathutil.LogZero, symbol: mathutil.LogZero}
	c.byText[text] = h
	c.order = append(c.order, h)
	return h
}

// addSymbol merges mass ending in raw symbol s into h. Texts reached through
// different final units (possible with sub-word vocabularies) keep the unit
// carrying the larger mass.
func (h *hypothesis) addSymbol(s int, mass float64) {
	if h.last != s && mass > h.symbol {
		h.last = s
	}
	h.symbol = mathutil.LogAdd(h.symbol, mass)
}

// search holds the per-call state of BeamSearch.
type search struct {
	v    *vocab.Vocabulary
	lm   Scorer
	cfg  Config
	memo map[string]lmTerm
}

func (s *search) lmFor(text string) (lmTerm, error) {
	if term, ok := s.memo[text]; ok {
		return term, nil
	}
	lp, err := s.lm.LogProb(text, false)
	if err != nil {
		return lmTerm{}, fmt.Errorf("%w: score %q: %w", ErrScorer, text, err)
	}
	term := lmTerm{logProb: lp, words: s.lm.CompletedWords(text, false)}
	s.memo[text] = term
	return term, nil
}

// BeamSearch decodes frames with a CTC prefix beam search and returns the
// retained hypotheses sorted by score, best first. Hypotheses are unique by
// decoded text; equal scores keep discovery order.
//
// frames must all have v.Size() values in the convention given by
// cfg.Input. An empty frame sequence yields a single empty hypothesis with
// score 0. ctx is checked between frames.
func BeamSearch(ctx context.Context, frames [][]float64, v *vocab.Vocabulary, lm Scorer, cfg Config) ([]Hypothesis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := emission.CheckWidth(frames, v.Size()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	if len(frames) == 0 {
		return []Hypothesis{{}}, nil
	}
	if lm == nil {
		lm = NoLM{}
	}

	logFrames := emission.ToLogProbs(frames, cfg.Input)
	s := &search{v: v, lm: lm, cfg: cfg, memo: make(map[string]lmTerm)}

	beam := []*hypothesis{{text: "", last: noSymbol, blank: 0, symbol: mathutil.LogZero}}
	next := newCandidates(cfg.BeamSize * 4)
	blank := v.Blank()

	for t, frame := range logFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next.reset()
		top := mathutil.Argmax(frame)

		for _, h := range beam {
			total := h.acoustic()
			for sym, lp := range frame {
				if lp <= mathutil.LogZero {
					continue
				}
				if cfg.TokenMinLogProb < 0 && lp < cfg.TokenMinLogProb && sym != top {
					continue
				}

				if sym == blank {
					e := next.at(h.text, h.last)
					e.blank = mathutil.LogAdd(e.blank, total+lp)
					continue
				}

				if sym == h.last {
					// Repeat without a blank in between collapses.
					e := next.at(h.text, h.last)
					e.addSymbol(sym, h.symbol+lp)
					if h.blank > mathutil.LogZero {
						ext, err := v.Append(h.text, sym)
						if err != nil {
							return nil, err
						}
						next.at(ext, sym).addSymbol(sym, h.blank+lp)
					}
					continue
				}

				ext, err := v.Append(h.text, sym)
				if err != nil {
					return nil, err
				}
				next.at(ext, sym).addSymbol(sym, total+lp)
			}
		}

		if len(next.order) == 0 {
			return nil, fmt.Errorf("%w: frame %d gives every symbol zero probability", ErrInvalidFrame, t)
		}

		for _, h := range next.order {
			term, err := s.lmFor(h.text)
			if err != nil {
				return nil, err
			}
			h.lm = term
			h.score = h.acoustic() + cfg.Alpha*term.logProb + cfg.Beta*float64(term.words)
		}

		generated := len(next.order)
		beam = prune(next.order, beam[:0], cfg.BeamSize, cfg.BeamPruneLogProb)
		if cfg.Observer != nil {
			cfg.Observer.ObserveStep(t, generated, len(beam))
		}
	}

	return s.finish(beam)
}

// finish rescores the surviving hypotheses as complete texts.
func (s *search) finish(beam []*hypothesis) ([]Hypothesis, error) {
	out := make([]Hypothesis, 0, len(beam))
	for _, h := range beam {
		lp, err := s.lm.LogProb(h.text, true)
		if err != nil {
			return nil, fmt.Errorf("%w: score %q: %w", ErrScorer, h.text, err)
		}
		words := s.lm.CompletedWords(h.text, true)
		ac := h.acoustic()
		out = append(out, Hypothesis{
			Text:          h.text,
			Score:         ac + s.cfg.Alpha*lp + s.cfg.Beta*float64(words),
			AcousticScore: ac,
			LMScore:       lp,
			Words:         words,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// prune keeps at most beamSize hypotheses by descending score. Ties keep the
// order of src. A negative pruneLogProb also drops hypotheses that trail the
// best by more than -pruneLogProb.
func prune(src []*hypothesis, dst []*hypothesis, beamSize int, pruneLogProb float64) []*hypothesis {
	sort.SliceStable(src, func(i, j int) bool {
		return src[i].score > src[j].score
	})
	if len(src) > beamSize {
		src = src[:beamSize]
	}
	if pruneLogProb < 0 && len(src) > 0 {
		threshold := src[0].score + pruneLogProb
		keep := len(src)
		for i, h := range src {
			if h.score < threshold {
				keep = i
				break
			}
		}
		src = src[:keep]
	}
	return append(dst, src...)
}
