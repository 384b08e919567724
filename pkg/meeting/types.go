// Package meeting holds the transcript and insights data model returned by the
// transcription backend, the speaker display-name mapping, and parsers for
// transcripts loaded from local files.
package meeting

// Segment is one speaker-attributed utterance. Start and End are offsets in
// seconds from the start of the recording.
type Segment struct {
	Speaker string        `json:"speaker"`
	Text    string        `json:"text"`
	Start   float64       `json:"start"`
	End     float64       `json:"end"`
	Context []ContextItem `json:"context,omitempty"`
}

// ContextItem is a knowledge-base hint the backend attaches to a segment.
type ContextItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionText  string `json:"action_text"`
	ActionURL   string `json:"action_url"`
}

// Conflict is a disputed point raised in the meeting and how it was resolved.
type Conflict struct {
	Point      string `json:"point"`
	Resolution string `json:"resolution"`
}

// CalendarEvent is a follow-up the backend extracted from the conversation.
// Date and Time are display strings; the client does not interpret them.
type CalendarEvent struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// MindMapNode is one topic and its subtopics.
type MindMapNode struct {
	Topic     string   `json:"topic"`
	Subtopics []string `json:"subtopics"`
}

// Insights is the post-processing analysis of a transcript. It is supplied
// whole by the backend and never partially updated.
type Insights struct {
	Summary        string          `json:"summary"`
	Conflicts      []Conflict      `json:"conflicts"`
	CalendarEvents []CalendarEvent `json:"calendar_events"`
	MindMap        []MindMapNode   `json:"mind_map"`
}

// Empty reports whether the backend supplied no analysis at all.
func (i Insights) Empty() bool {
	return i.Summary == "" && len(i.Conflicts) == 0 && len(i.CalendarEvents) == 0 && len(i.MindMap) == 0
}

// Clone returns a deep copy.
func (i Insights) Clone() Insights {
	out := Insights{Summary: i.Summary}
	if i.Conflicts != nil {
		out.Conflicts = append([]Conflict(nil), i.Conflicts...)
	}
	if i.CalendarEvents != nil {
		out.CalendarEvents = append([]CalendarEvent(nil), i.CalendarEvents...)
	}
	if i.MindMap != nil {
		out.MindMap = make([]MindMapNode, len(i.MindMap))
		for n, node := range i.MindMap {
			out.MindMap[n] = MindMapNode{
				Topic:     node.Topic,
				Subtopics: append([]string(nil), node.Subtopics...),
			}
		}
	}
	return out
}

// Result is everything one successful upload yields. Speakers carries
// display names saved alongside a transcript; the backend never sends it.
type Result struct {
	Segments []Segment         `json:"transcript"`
	Insights Insights          `json:"insights"`
	Speakers map[string]string `json:"speakers,omitempty"`
}

// CloneSegments returns a copy of segs that shares no backing arrays with it.
func CloneSegments(segs []Segment) []Segment {
	if segs == nil {
		return nil
	}
	out := make([]Segment, len(segs))
	for i, s := range segs {
		out[i] = s
		if s.Context != nil {
			out[i].Context = append([]ContextItem(nil), s.Context...)
		}
	}
	return out
}
