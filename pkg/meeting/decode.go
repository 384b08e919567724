package meeting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
)

// envelope is the paired response shape: transcript and insights in one body.
// "segments" is accepted as an alias for "transcript".
type envelope struct {
	Transcript []Segment         `json:"transcript"`
	Segments   []Segment         `json:"segments"`
	Insights   *Insights         `json:"insights"`
	Speakers   map[string]string `json:"speakers"`
}

// DecodeJSON reads a transcript body. Two shapes are accepted: a bare JSON
// array of segments, or an object carrying "transcript" (or "segments") and
// an optional "insights" object and "speakers" label to name mapping.
// Anything else is a validation error.
func DecodeJSON(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", scerrors.ErrValidation)
	}

	result := &Result{}
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &result.Segments); err != nil {
			return nil, fmt.Errorf("%w: decoding segment array: %v", scerrors.ErrValidation, err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: decoding transcript object: %v", scerrors.ErrValidation, err)
		}
		switch {
		case env.Transcript != nil:
			result.Segments = env.Transcript
		case env.Segments != nil:
			result.Segments = env.Segments
		default:
			return nil, fmt.Errorf("%w: object has no transcript", scerrors.ErrValidation)
		}
		if env.Insights != nil {
			result.Insights = *env.Insights
		}
		result.Speakers = env.Speakers
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", scerrors.ErrValidation)
	}

	if result.Segments == nil {
		result.Segments = []Segment{}
	}
	if err := ValidateSegments(result.Segments); err != nil {
		return nil, err
	}
	return result, nil
}
