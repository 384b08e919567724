package meeting

import (
	"fmt"
	"math"
	"strings"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
)

// ValidateSegments checks the shape guarantees the rest of the client relies
// on: a non-blank speaker label, a non-negative start and end >= start.
func ValidateSegments(segs []Segment) error {
	for i, s := range segs {
		if strings.TrimSpace(s.Speaker) == "" {
			return fmt.Errorf("%w: segment %d has no speaker label", scerrors.ErrValidation, i)
		}
		if math.IsNaN(s.Start) || math.IsNaN(s.End) {
			return fmt.Errorf("%w: segment %d has a non-numeric offset", scerrors.ErrValidation, i)
		}
		if s.Start < 0 {
			return fmt.Errorf("%w: segment %d starts before the recording (%.3fs)", scerrors.ErrValidation, i, s.Start)
		}
		if s.End < s.Start {
			return fmt.Errorf("%w: segment %d ends at %.3fs before it starts at %.3fs", scerrors.ErrValidation, i, s.End, s.Start)
		}
	}
	return nil
}
