// Package selector decides, for one image, which re-encoding (if any) should
// replace the original bytes.
package selector

import (
	"fmt"

	"github.com/rm-hull/png-optimizer/internal/policy"
)

type Strategy string

const (
	Lossless  Strategy = "lossless"
	Quantized Strategy = "quantized"
)

type Kind string

const (
	Replace            Kind = "replace"
	SkipNotSmaller     Kind = "skip-not-smaller"
	SkipBelowThreshold Kind = "skip-below-threshold"
	SkipUnsupported    Kind = "skip-unsupported"
	Error              Kind = "error"
)

// Skipped reports whether the outcome is a policy skip.
func (k Kind) Skipped() bool {
	return k == SkipNotSmaller || k == SkipBelowThreshold || k == SkipUnsupported
}

// Image is a decoded source as seen by the selector. Both encoders must be
// pure functions of the decoded pixels and their arguments.
type Image interface {
	Paletted() bool
	Animated() bool
	EncodeLossless() ([]byte, error)
	EncodeQuantized(colors int) ([]byte, error)
}

type Decoder interface {
	Decode(data []byte) (Image, error)
}

type DecoderFunc func(data []byte) (Image, error)

func (f DecoderFunc) Decode(data []byte) (Image, error) {
	return f(data)
}

type Candidate struct {
	Strategy Strategy
	Colors   int
	Data     []byte
}

func (c Candidate) Name() string {
	if c.Strategy == Quantized {
		return fmt.Sprintf("palette-%d", c.Colors)
	}
	return string(c.Strategy)
}

func (c Candidate) Size() int64 {
	return int64(len(c.Data))
}

type Outcome struct {
	Kind         Kind
	OriginalSize int64
	ChosenSize   int64
	Strategy     Strategy
	StrategyName string
	Reason       string
	Err          error

	// Data holds the winning bytes and is only set for Replace.
	Data []byte

	// Considered lists the strategies that produced a candidate, in listing order.
	Considered []Strategy
}

type Selector struct {
	decoder Decoder
	policy  policy.Policy
}

func New(decoder Decoder, p policy.Policy) *Selector {
	return &Selector{decoder: decoder, policy: p}
}

// Select evaluates the original bytes against every applicable candidate.
// It never panics on bad input: decode or lossless encode failures come back
// as an Error outcome with the original size unchanged.
func (s *Selector) Select(original []byte) Outcome {
	originalSize := int64(len(original))

	img, err := s.decoder.Decode(original)
	if err != nil {
		return Failed(originalSize, err)
	}

	if img.Animated() {
		return Outcome{
			Kind:         SkipUnsupported,
			OriginalSize: originalSize,
			ChosenSize:   originalSize,
			Reason:       "animated PNG",
		}
	}

	candidates, err := s.Candidates(img)
	if err != nil {
		return Failed(originalSize, err)
	}

	best := Best(candidates)
	kind, reason := Decide(originalSize, best.Size(), s.policy.MinReductionBytes)

	outcome := Outcome{
		Kind:         kind,
		OriginalSize: originalSize,
		ChosenSize:   best.Size(),
		Strategy:     best.Strategy,
		StrategyName: best.Name(),
		Reason:       reason,
	}
	for _, c := range candidates {
		outcome.Considered = append(outcome.Considered, c.Strategy)
	}
	if kind == Replace {
		outcome.Data = best.Data
	}
	return outcome
}

// Candidates returns the lossless candidate followed, for sources that are
// not already paletted, by the quantized one. Quantizing a paletted image
// again would compound the loss on every run, so it is never attempted. A
// failed quantized encode just drops that candidate.
func (s *Selector) Candidates(img Image) ([]Candidate, error) {
	lossless, err := img.EncodeLossless()
	if err != nil {
		return nil, err
	}
	candidates := []Candidate{{Strategy: Lossless, Data: lossless}}

	if img.Paletted() {
		return candidates, nil
	}

	quantized, err := img.EncodeQuantized(s.policy.Colors)
	if err != nil {
		return candidates, nil
	}
	return append(candidates, Candidate{Strategy: Quantized, Colors: s.policy.Colors, Data: quantized}), nil
}

// Best returns the smallest candidate; the earliest listed wins a tie.
func Best(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Size() < best.Size() {
			best = c
		}
	}
	return best
}

// Decide applies the replace policy to the best candidate size.
func Decide(originalSize, bestSize, minReduction int64) (Kind, string) {
	if bestSize >= originalSize {
		return SkipNotSmaller, "not smaller"
	}
	if originalSize-bestSize < minReduction {
		return SkipBelowThreshold, fmt.Sprintf("save<%dB", minReduction)
	}
	return Replace, ""
}

// Failed builds the Error outcome for a file that could not be evaluated.
func Failed(originalSize int64, err error) Outcome {
	return Outcome{
		Kind:         Error,
		OriginalSize: originalSize,
		ChosenSize:   originalSize,
		Reason:       err.Error(),
		Err:          err,
	}
}
