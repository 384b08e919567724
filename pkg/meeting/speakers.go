package meeting

import (
	"encoding/json"
	"strings"
)

// Side is the display role of a speaker in the transcript view.
type Side string

const (
	SidePrimary   Side = "primary"
	SideSecondary Side = "secondary"
)

// SpeakerMap maps backend speaker labels to user-facing display names.
//
// A map built with NewSpeakerMap holds one entry per distinct label, in
// first-occurrence order, initially mapped to itself. Entries only change
// through Rename and are never removed. The zero value is an empty map.
type SpeakerMap struct {
	order []string
	names map[string]string
	sides map[string]Side
}

// NewSpeakerMap collects the distinct speaker labels of segs in
// first-occurrence order and maps each to itself. Sides alternate
// primary/secondary in that same order.
func NewSpeakerMap(segs []Segment) *SpeakerMap {
	m := &SpeakerMap{
		names: make(map[string]string),
		sides: make(map[string]Side),
	}
	for _, s := range segs {
		if _, seen := m.names[s.Speaker]; seen {
			continue
		}
		m.names[s.Speaker] = s.Speaker
		if len(m.order)%2 == 0 {
			m.sides[s.Speaker] = SidePrimary
		} else {
			m.sides[s.Speaker] = SideSecondary
		}
		m.order = append(m.order, s.Speaker)
	}
	return m
}

// Resolve returns the display name for label. Unknown labels and blank
// names fall back to the raw label.
func (m *SpeakerMap) Resolve(label string) string {
	if m == nil {
		return label
	}
	if name := m.names[label]; strings.TrimSpace(name) != "" {
		return name
	}
	return label
}

// Rename sets the display name for label. It reports false, and changes
// nothing, when label is not in the map.
func (m *SpeakerMap) Rename(label, name string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.names[label]; !ok {
		return false
	}
	m.names[label] = name
	return true
}

// Has reports whether label is a key of the map.
func (m *SpeakerMap) Has(label string) bool {
	if m == nil {
		return false
	}
	_, ok := m.names[label]
	return ok
}

// Labels returns the keys in first-occurrence order.
func (m *SpeakerMap) Labels() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

// Len returns the number of labels.
func (m *SpeakerMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Side returns the display role assigned to label when the map was built.
// Labels the map does not know are shown as primary.
func (m *SpeakerMap) Side(label string) Side {
	if m == nil {
		return SidePrimary
	}
	if side, ok := m.sides[label]; ok {
		return side
	}
	return SidePrimary
}

// Names returns a plain copy of the label to name mapping.
func (m *SpeakerMap) Names() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for k, v := range m.names {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy.
func (m *SpeakerMap) Clone() *SpeakerMap {
	if m == nil {
		return nil
	}
	c := &SpeakerMap{
		order: append([]string(nil), m.order...),
		names: make(map[string]string, len(m.names)),
		sides: make(map[string]Side, len(m.sides)),
	}
	for k, v := range m.names {
		c.names[k] = v
	}
	for k, v := range m.sides {
		c.sides[k] = v
	}
	return c
}

// MarshalJSON encodes the map as a plain JSON object of label to name.
func (m *SpeakerMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Names())
}
