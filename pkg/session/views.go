package session

import (
	"fmt"

	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
)

// View is a top-level navigation target.
type View string

const (
	ViewDashboard  View = "dashboard"
	ViewUpload     View = "upload"
	ViewTranscript View = "transcript"
	ViewHistory    View = "history"
	ViewSettings   View = "settings"
)

// Views lists the navigation targets in sidebar order.
var Views = []View{ViewDashboard, ViewUpload, ViewTranscript, ViewHistory, ViewSettings}

// TranscriptTab selects between the conversation and its analysis.
type TranscriptTab string

const (
	TabTranscript   TranscriptTab = "transcript"
	TabIntelligence TranscriptTab = "intelligence"
)

// InsightsTab selects one analysis panel.
type InsightsTab string

const (
	InsightsSummary   InsightsTab = "summary"
	InsightsConflicts InsightsTab = "conflicts"
	InsightsCalendar  InsightsTab = "calendar"
	InsightsMindMap   InsightsTab = "mindmap"
)

// InsightsTabs lists the analysis panels in display order.
var InsightsTabs = []InsightsTab{InsightsSummary, InsightsConflicts, InsightsCalendar, InsightsMindMap}

// Label returns the heading shown for a panel.
func (t InsightsTab) Label() string {
	switch t {
	case InsightsSummary:
		return "Executive Summary"
	case InsightsConflicts:
		return "Disputes & Resolutions"
	case InsightsCalendar:
		return "Smart Booking"
	case InsightsMindMap:
		return "Topic Mind Map"
	default:
		return string(t)
	}
}

// ParseView validates a view name.
func ParseView(name string) (View, error) {
	for _, v := range Views {
		if string(v) == name {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// ParseTranscriptTab validates a transcript tab name.
func ParseTranscriptTab(name string) (TranscriptTab, error) {
	switch TranscriptTab(name) {
	case TabTranscript, TabIntelligence:
		return TranscriptTab(name), nil
	}
	return "", fmt.Errorf("%w: transcript tab %q", ErrUnknownView, name)
}

// ParseInsightsTab validates an insights panel name.
func ParseInsightsTab(name string) (InsightsTab, error) {
	for _, t := range InsightsTabs {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: insights tab %q", ErrUnknownView, name)
}

// Component names what the UI renders for a state.
type Component string

const (
	ComponentDashboard   Component = "dashboard"
	ComponentUpload      Component = "upload"
	ComponentTranscript  Component = "transcript"
	ComponentSummary     Component = "summary"
	ComponentConflicts   Component = "conflicts"
	ComponentCalendar    Component = "calendar"
	ComponentMindMap     Component = "mindmap"
	ComponentHistory     Component = "history"
	ComponentSettings    Component = "settings"
	ComponentPlaceholder Component = "placeholder"
)

// Empty-state messages.
const (
	NoTranscriptText = "No transcript active. Go to Upload to start."
	NoConflictsText  = "No significant disputes or conflicts detected in the transcript."
	NoEventsText     = "No upcoming meetings or calendar events found."
	NoSummaryText    = "No summary was produced for this recording."
	NoMindMapText    = "No topics were mapped for this recording."
	NoHistoryText    = "No recordings processed in this session yet."
)

// Visibility is the component chosen for a state plus the text shown in
// place of it when its data is empty.
type Visibility struct {
	Component   Component `json:"component"`
	Placeholder string    `json:"placeholder,omitempty"`
}

// Visible maps a state to the component to render. It reads the state only.
func Visible(s State) Visibility {
	switch s.View {
	case ViewUpload:
		return Visibility{Component: ComponentUpload}
	case ViewHistory:
		if len(s.History) == 0 {
			return Visibility{Component: ComponentHistory, Placeholder: NoHistoryText}
		}
		return Visibility{Component: ComponentHistory}
	case ViewSettings:
		return Visibility{Component: ComponentSettings}
	case ViewTranscript:
		if len(s.Transcript) == 0 {
			return Visibility{Component: ComponentPlaceholder, Placeholder: NoTranscriptText}
		}
		if s.TranscriptTab != TabIntelligence {
			return Visibility{Component: ComponentTranscript}
		}
		return visibleInsights(s.InsightsTab, s.Insights)
	default:
		return Visibility{Component: ComponentDashboard}
	}
}

func visibleInsights(tab InsightsTab, in meeting.Insights) Visibility {
	switch tab {
	case InsightsConflicts:
		if len(in.Conflicts) == 0 {
			return Visibility{Component: ComponentConflicts, Placeholder: NoConflictsText}
		}
		return Visibility{Component: ComponentConflicts}
	case InsightsCalendar:
		if len(in.CalendarEvents) == 0 {
			return Visibility{Component: ComponentCalendar, Placeholder: NoEventsText}
		}
		return Visibility{Component: ComponentCalendar}
	case InsightsMindMap:
		if len(in.MindMap) == 0 {
			return Visibility{Component: ComponentMindMap, Placeholder: NoMindMapText}
		}
		return Visibility{Component: ComponentMindMap}
	default:
		if in.Summary == "" {
			return Visibility{Component: ComponentSummary, Placeholder: NoSummaryText}
		}
		return Visibility{Component: ComponentSummary}
	}
}
