package umicorrect

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

const (
	// DefaultThreshold is the default maximum edit distance between two
	// UMIs that may be merged.
	DefaultThreshold = 3
	// DefaultParallelism is the default number of groups clustered
	// concurrently.
	DefaultParallelism = 4
)

// Opts configures Correct.
type Opts struct {
	// Threshold is the maximum Levenshtein distance between two UMIs of a
	// group for one to absorb the other. Must be >= 0.
	Threshold int
	// Parallelism is the number of groups clustered concurrently. Must be
	// > 0.
	Parallelism int
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{
	Threshold:   DefaultThreshold,
	Parallelism: DefaultParallelism,
}

// Validate returns an error of kind errors.Invalid if o cannot be used.
func (o *Opts) Validate() error {
	if o.Threshold < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("edit distance threshold must be >= 0, got %d", o.Threshold))
	}
	if o.Parallelism <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("parallelism must be > 0, got %d", o.Parallelism))
	}
	return nil
}
