// Package export turns transcript and insights data into downloadable
// documents: a plain-text transcript and single-event iCalendar files.
package export

import (
	"strings"
	"time"

	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
)

// Document MIME types.
const (
	TranscriptMIME = "text/plain"
	CalendarMIME   = "text/calendar"
)

// entrySeparator is the exact gap between exported entries: one blank line.
const entrySeparator = "\n\n"

// Transcript renders segments in their original order, one entry per
// segment as "[m:ss] <display name>: <text>". Display names resolve through
// speakers and fall back to the raw label.
func Transcript(segs []meeting.Segment, speakers *meeting.SpeakerMap) string {
	entries := make([]string, len(segs))
	for i, s := range segs {
		entries[i] = "[" + meeting.FormatOffset(s.Start) + "] " + speakers.Resolve(s.Speaker) + ": " + s.Text
	}
	return strings.Join(entries, entrySeparator)
}

// TranscriptFilename names a transcript export after the UTC calendar date of now.
func TranscriptFilename(now time.Time) string {
	return "transcript-" + now.UTC().Format(time.DateOnly) + ".txt"
}
