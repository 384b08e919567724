package meeting

import (
	"fmt"
	"math"
)

// FormatOffset renders an offset in seconds as m:ss. Minutes are unbounded
// and unpadded; seconds are truncated and zero-padded to two digits.
func FormatOffset(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Duration returns the end offset of the last segment, or 0 for an empty transcript.
func Duration(segs []Segment) float64 {
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].End
}

// SpeakerCount returns the number of distinct speaker labels in segs.
func SpeakerCount(segs []Segment) int {
	seen := make(map[string]struct{}, len(segs))
	for _, s := range segs {
		seen[s.Speaker] = struct{}{}
	}
	return len(seen)
}
