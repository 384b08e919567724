// Package session holds the single view-state record behind the UI: the
// active view and tabs, the selected file, the loaded transcript and insights,
// the speaker mapping with its in-progress rename, and the upload notice.
//
// Every mutation goes through a Store method. Reads return deep copies, so a
// rendered page never observes a half-applied transition.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
)

// Session errors.
var (
	ErrUnknownView    = fmt.Errorf("%w: unknown view", scerrors.ErrValidation)
	ErrUnknownSpeaker = fmt.Errorf("%w: unknown speaker", scerrors.ErrNotFound)
	ErrNoFileSelected = fmt.Errorf("%w: no file selected", scerrors.ErrInvalidState)
	ErrEmptyFileName  = fmt.Errorf("%w: file name is empty", scerrors.ErrValidation)
	ErrUploadInFlight = fmt.Errorf("%w: upload already in progress", scerrors.ErrInvalidState)
	ErrNoUpload       = fmt.Errorf("%w: no upload in progress", scerrors.ErrInvalidState)
)

// SelectedFile describes the audio chosen for the next upload.
type SelectedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Rename is the single label currently in edit mode.
type Rename struct {
	Label  string `json:"label"`
	Buffer string `json:"buffer"`
}

// State is one snapshot of the view-state record.
type State struct {
	View          View          `json:"view"`
	TranscriptTab TranscriptTab `json:"transcript_tab"`
	InsightsTab   InsightsTab   `json:"insights_tab"`

	File    *SelectedFile `json:"file,omitempty"`
	Loading bool          `json:"loading"`
	Notice  string        `json:"notice,omitempty"`

	// Source names the recording the transcript came from.
	Source     string              `json:"source,omitempty"`
	Transcript []meeting.Segment   `json:"transcript"`
	Speakers   *meeting.SpeakerMap `json:"speakers"`
	Insights   meeting.Insights    `json:"insights"`
	Rename     *Rename             `json:"rename,omitempty"`

	History []HistoryEntry `json:"history"`
}

// clone returns a deep copy of s.
func (s State) clone() State {
	out := s
	if s.File != nil {
		f := *s.File
		out.File = &f
	}
	if s.Rename != nil {
		r := *s.Rename
		out.Rename = &r
	}
	out.Transcript = meeting.CloneSegments(s.Transcript)
	out.Speakers = s.Speakers.Clone()
	out.Insights = s.Insights.Clone()
	out.History = append([]HistoryEntry(nil), s.History...)
	return out
}

// Store guards the view-state record. The zero value is not usable; call NewStore.
type Store struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
}

// NewStore returns a store on the dashboard with nothing loaded.
func NewStore() *Store {
	return &Store{
		state: State{
			View:          ViewDashboard,
			TranscriptTab: TabTranscript,
			InsightsTab:   InsightsSummary,
			Transcript:    []meeting.Segment{},
			Speakers:      meeting.NewSpeakerMap(nil),
		},
		now: time.Now,
	}
}

// Snapshot returns a deep copy of the current record.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Visible maps the current record to the component to render.
func (s *Store) Visible() Visibility {
	return Visible(s.Snapshot())
}

// SelectView switches the top-level view. Stores are untouched.
func (s *Store) SelectView(name string) error {
	v, err := ParseView(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.View = v
	s.mu.Unlock()
	return nil
}

// SelectTranscriptTab switches between the conversation and its analysis.
func (s *Store) SelectTranscriptTab(name string) error {
	t, err := ParseTranscriptTab(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.TranscriptTab = t
	s.mu.Unlock()
	return nil
}

// SelectInsightsTab switches the analysis panel.
func (s *Store) SelectInsightsTab(name string) error {
	t, err := ParseInsightsTab(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.InsightsTab = t
	s.mu.Unlock()
	return nil
}

// SelectFile records the audio chosen for the next upload. It is refused
// while an upload is running so the in-flight file stays described.
func (s *Store) SelectFile(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyFileName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading {
		return ErrUploadInFlight
	}
	s.state.File = &SelectedFile{Name: name, Size: size}
	return nil
}

// ClearFile drops the selected file.
func (s *Store) ClearFile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Loading {
		s.state.File = nil
	}
}

// BeginUpload marks an upload as in flight and returns the file to send.
func (s *Store) BeginUpload() (SelectedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.File == nil {
		return SelectedFile{}, ErrNoFileSelected
	}
	if s.state.Loading {
		return SelectedFile{}, ErrUploadInFlight
	}
	s.state.Loading = true
	s.state.Notice = ""
	return *s.state.File, nil
}

// BeginUploadFile selects a file and marks its upload as in flight in one
// step, so two concurrent callers cannot both pass the in-flight check and
// overwrite each other's selection.
func (s *Store) BeginUploadFile(name string, size int64) (SelectedFile, error) {
	if strings.TrimSpace(name) == "" {
		return SelectedFile{}, ErrEmptyFileName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading {
		return SelectedFile{}, ErrUploadInFlight
	}
	file := SelectedFile{Name: name, Size: size}
	s.state.File = &file
	s.state.Loading = true
	s.state.Notice = ""
	return file, nil
}

// CompleteUpload installs a new transcript and insights together, rebuilds
// the speaker mapping, drops any open rename, and shows the transcript.
func (s *Store) CompleteUpload(result *meeting.Result) (HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Loading {
		return HistoryEntry{}, ErrNoUpload
	}

	segs := meeting.CloneSegments(result.Segments)
	if segs == nil {
		segs = []meeting.Segment{}
	}

	source := ""
	if s.state.File != nil {
		source = s.state.File.Name
	}

	s.state.Source = source
	s.state.Transcript = segs
	s.state.Speakers = meeting.NewSpeakerMap(segs)
	s.state.Insights = result.Insights.Clone()
	s.state.Rename = nil
	s.state.Loading = false
	s.state.Notice = ""
	s.state.View = ViewTranscript
	s.state.TranscriptTab = TabTranscript
	s.state.InsightsTab = InsightsSummary

	entry := newHistoryEntry(source, s.now(), segs, result.Insights)
	s.state.History = append(s.state.History, entry)
	return entry, nil
}

// FailUpload ends an upload without touching transcript, insights or the
// speaker mapping, and raises the single failure notice.
func (s *Store) FailUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	s.state.Notice = scerrors.UploadFailedNotice
}

// DismissNotice clears the failure notice.
func (s *Store) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Notice = ""
}

// Load installs a transcript that did not come from an upload, such as a
// file opened from disk. It follows the same replacement rules as a
// completed upload but is not recorded in history. Saved display names in
// result.Speakers are applied to labels the transcript actually uses.
func (s *Store) Load(source string, result *meeting.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading {
		return ErrUploadInFlight
	}
	segs := meeting.CloneSegments(result.Segments)
	if segs == nil {
		segs = []meeting.Segment{}
	}
	s.state.Source = source
	s.state.Transcript = segs
	s.state.Speakers = meeting.NewSpeakerMap(segs)
	for label, name := range result.Speakers {
		if name = strings.TrimSpace(name); name != "" {
			s.state.Speakers.Rename(label, name)
		}
	}
	s.state.Insights = result.Insights.Clone()
	s.state.Rename = nil
	s.state.View = ViewTranscript
	s.state.TranscriptTab = TabTranscript
	return nil
}

// BeginRename puts label in edit mode with the buffer seeded from its
// current display name. An open rename on another label is replaced.
func (s *Store) BeginRename(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Speakers.Has(label) {
		return fmt.Errorf("%w: %q", ErrUnknownSpeaker, label)
	}
	s.state.Rename = &Rename{Label: label, Buffer: s.state.Speakers.Resolve(label)}
	return nil
}

// SetRenameBuffer replaces the edit buffer. It is a no-op with no open rename.
func (s *Store) SetRenameBuffer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Rename != nil {
		s.state.Rename.Buffer = text
	}
}

// CommitRename writes the buffer under the label being edited and leaves
// edit mode. A blank buffer keeps the current name. It reports whether a
// name was written.
func (s *Store) CommitRename() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.state.Rename
	if r == nil {
		return false
	}
	s.state.Rename = nil
	name := strings.TrimSpace(r.Buffer)
	if name == "" {
		return false
	}
	return s.state.Speakers.Rename(r.Label, name)
}

// CancelRename leaves edit mode without changing the mapping.
func (s *Store) CancelRename() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Rename = nil
}

// Rename sets a display name directly, outside the edit-mode flow.
func (s *Store) Rename(label, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: display name is empty", scerrors.ErrValidation)
	}
	if !s.state.Speakers.Rename(label, name) {
		return fmt.Errorf("%w: %q", ErrUnknownSpeaker, label)
	}
	return nil
}
