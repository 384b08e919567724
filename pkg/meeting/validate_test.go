package meeting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
)

func TestValidateSegments(t *testing.T) {
	tests := []struct {
		name    string
		segs    []Segment
		wantErr string
	}{
		{name: "empty", segs: nil},
		{name: "valid", segs: []Segment{
			{Speaker: "A", Text: "hello", Start: 0, End: 1},
			{Speaker: "B", Text: "world", Start: 1, End: 1},
		}},
		{name: "blank speaker", segs: []Segment{{Speaker: "  ", Start: 0, End: 1}}, wantErr: "segment 0 has no speaker label"},
		{name: "negative start", segs: []Segment{{Speaker: "A", Start: -1, End: 1}}, wantErr: "starts before the recording"},
		{name: "end before start", segs: []Segment{
			{Speaker: "A", Start: 0, End: 1},
			{Speaker: "B", Start: 5, End: 4},
		}, wantErr: "segment 1 ends at 4.000s"},
		{name: "NaN", segs: []Segment{{Speaker: "A", Start: math.NaN(), End: 1}}, wantErr: "non-numeric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSegments(tt.segs)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, scerrors.IsValidation(err))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
