package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
)

// HistoryEntry summarizes one completed upload. History lives in process
// memory only.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	CompletedAt time.Time `json:"completed_at"`
	Segments    int       `json:"segments"`
	Speakers    int       `json:"speakers"`
	Duration    float64   `json:"duration_seconds"`
	Events      int       `json:"calendar_events"`
	HasInsights bool      `json:"has_insights"`
}

func newHistoryEntry(source string, at time.Time, segs []meeting.Segment, in meeting.Insights) HistoryEntry {
	return HistoryEntry{
		ID:          uuid.NewString(),
		Source:      source,
		CompletedAt: at,
		Segments:    len(segs),
		Speakers:    meeting.SpeakerCount(segs),
		Duration:    meeting.Duration(segs),
		Events:      len(in.CalendarEvents),
		HasInsights: !in.Empty(),
	}
}

// DashboardStats are totals derived from the history list on every read.
type DashboardStats struct {
	Recordings     int     `json:"recordings"`
	TotalSeconds   float64 `json:"total_seconds"`
	Speakers       int     `json:"speakers"`
	CalendarEvents int     `json:"calendar_events"`
	LastSource     string  `json:"last_source,omitempty"`
}

// Dashboard computes the dashboard totals for a state. Speakers sums the
// per-recording counts; labels are not comparable across recordings.
func Dashboard(s State) DashboardStats {
	var stats DashboardStats
	for _, h := range s.History {
		stats.Recordings++
		stats.TotalSeconds += h.Duration
		stats.Speakers += h.Speakers
		stats.CalendarEvents += h.Events
	}
	if n := len(s.History); n > 0 {
		stats.LastSource = s.History[n-1].Source
	}
	return stats
}
