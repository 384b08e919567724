package meeting

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// VTT parsing regular expressions
var (
	// Matches segment header: 1 "Speaker Name" (speaker_id) or just: 1 "" (0)
	vttSegmentHeaderRegex = regexp.MustCompile(`^\d+\s+"([^"]*)"(?:\s+\((\d+)\))?`)

	// Matches timestamp line: 00:00:05.579 --> 00:00:06.858 (hours optional)
	vttTimestampRegex = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}\.\d{3})\s+-->\s+((?:\d+:)?\d{2}:\d{2}\.\d{3})`)

	// Matches a voice span: <v Speaker Name>text
	vttVoiceRegex = regexp.MustCompile(`^<v(?:\.[^\s>]+)*\s+([^>]+)>(.*?)(?:</v>)?$`)
)

// UnknownSpeaker labels cues that carry no speaker information.
const UnknownSpeaker = "Unknown"

// ParseVTT parses a WebVTT transcript. Speakers come from either a numbered
// header line with a quoted name or a <v Name> voice span on the cue text.
// Cues without any speaker are attributed to UnknownSpeaker.
func ParseVTT(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &Result{Segments: make([]Segment, 0)}

	var current *Segment
	var headerSpeaker string

	flush := func() {
		if current != nil && current.Text != "" {
			if current.Speaker == "" {
				current.Speaker = UnknownSpeaker
			}
			result.Segments = append(result.Segments, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Empty line ends a cue; skip the WEBVTT header and NOTE blocks
		if line == "" {
			flush()
			headerSpeaker = ""
			continue
		}
		if strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") {
			continue
		}

		// Try to match segment header (e.g., 1 "Speaker Name" (123))
		if matches := vttSegmentHeaderRegex.FindStringSubmatch(line); matches != nil {
			flush()
			headerSpeaker = matches[1]
			continue
		}

		// Try to match timestamp line
		if matches := vttTimestampRegex.FindStringSubmatch(line); matches != nil {
			flush()
			current = &Segment{
				Speaker: headerSpeaker,
				Start:   parseVTTTimestamp(matches[1]),
				End:     parseVTTTimestamp(matches[2]),
			}
			continue
		}

		// Must be text content
		if current == nil {
			continue
		}
		text := line
		if matches := vttVoiceRegex.FindStringSubmatch(line); matches != nil {
			if current.Speaker == "" {
				current.Speaker = strings.TrimSpace(matches[1])
			}
			text = strings.TrimSpace(matches[2])
		}
		if current.Text != "" {
			current.Text += " "
		}
		current.Text += text
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// parseVTTTimestamp parses a VTT timestamp ([HH:]MM:SS.mmm) to seconds.
func parseVTTTimestamp(ts string) float64 {
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}

	var hours, minutes int
	if len(parts) == 3 {
		hours, _ = strconv.Atoi(parts[0])
		minutes, _ = strconv.Atoi(parts[1])
	} else {
		minutes, _ = strconv.Atoi(parts[0])
	}

	seconds, _ := strconv.ParseFloat(parts[len(parts)-1], 64)

	return float64(hours*3600+minutes*60) + seconds
}
