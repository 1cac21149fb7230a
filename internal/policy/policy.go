package policy

import (
	"fmt"

	"github.com/agilira/go-errors"
)

// Version is the format-version tag. It feeds both the manifest document
// and the policy signature, so bumping it invalidates every cached decision.
const Version = "1"

const (
	MinColors = 2
	MaxColors = 256

	DefaultColors            = 256
	DefaultMinReductionBytes = 1024
)

const ErrCodeInvalidPolicy = "PNGOPT_INVALID_CONFIG"

// Policy holds the tunable parameters that decide what gets written.
type Policy struct {
	Colors            int
	MinReductionBytes int64
}

func Default() Policy {
	return Policy{
		Colors:            DefaultColors,
		MinReductionBytes: DefaultMinReductionBytes,
	}
}

func (p Policy) Validate() error {
	if p.Colors < MinColors || p.Colors > MaxColors {
		return errors.New(ErrCodeInvalidPolicy,
			fmt.Sprintf("palette size must be in range [%d-%d], got %d", MinColors, MaxColors, p.Colors))
	}
	if p.MinReductionBytes < 0 {
		return errors.New(ErrCodeInvalidPolicy,
			fmt.Sprintf("minimum reduction must not be negative, got %d", p.MinReductionBytes))
	}
	return nil
}

// String renders the canonical parameter list the signature is computed over.
func (p Policy) String() string {
	return fmt.Sprintf("v=%s;colors=%d;min_reduction=%d", Version, p.Colors, p.MinReductionBytes)
}
