package meeting

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
)

// Plain-text export parsing regular expressions
var (
	// Matches an exported entry: [12:05] Speaker Name: Text content
	exportLineRegex = regexp.MustCompile(`^\[(\d+):(\d{2})\]\s+([^:]+?):\s*(.*)$`)
)

// ParseExport parses a transcript in the plain-text export format back into
// segments. Display names become speaker labels. The format has no end
// times, so each segment ends where it starts. Lines that do not open a new
// entry are folded into the previous entry's text. A timestamp whose minutes
// do not fit in an int is a validation error.
func ParseExport(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &Result{Segments: make([]Segment, 0)}
	var current *Segment

	flush := func() {
		if current != nil {
			result.Segments = append(result.Segments, *current)
			current = nil
		}
	}

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Blank lines separate entries
		if line == "" {
			continue
		}

		matches := exportLineRegex.FindStringSubmatch(line)
		if matches == nil {
			// Continuation of a multi-line utterance; skip stray text before the first entry
			if current != nil {
				current.Text += " " + line
			}
			continue
		}

		flush()

		minutes, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: timestamp [%s:%s] is out of range", scerrors.ErrValidation, lineNum, matches[1], matches[2])
		}
		seconds, err := strconv.Atoi(matches[2])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: timestamp [%s:%s] is out of range", scerrors.ErrValidation, lineNum, matches[1], matches[2])
		}
		offset := float64(minutes)*60 + float64(seconds)

		current = &Segment{
			Speaker: strings.TrimSpace(matches[3]),
			Text:    strings.TrimSpace(matches[4]),
			Start:   offset,
			End:     offset, // export format doesn't have end times
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
