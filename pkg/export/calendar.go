package export

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/scribe-cli/pkg/meeting"
)

// iCalendar constants.
const (
	ProdID = "-//Scribe//Meeting Intelligence//EN"

	// uidDomain qualifies event UIDs.
	uidDomain = "scribe.local"

	// dtstampLayout is the UTC basic format required for DTSTAMP.
	dtstampLayout = "20060102T150405Z"

	// maxLineOctets is the content-line limit before folding.
	maxLineOctets = 75

	crlf = "\r\n"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	textEscaper   = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\r\n", `\n`, "\n", `\n`, "\r", `\n`)
)

// NewUID returns an event identifier that is unique per call.
func NewUID() string {
	return uuid.NewString() + "@" + uidDomain
}

// Calendar renders one event as a VCALENDAR holding exactly one VEVENT.
// The event's date and time are display strings from the backend; they are
// carried in DESCRIPTION and not encoded as DTSTART/DTEND.
func Calendar(event meeting.CalendarEvent, now time.Time, uid string) string {
	var b strings.Builder
	writeLine := func(line string) {
		b.WriteString(foldLine(line))
		b.WriteString(crlf)
	}

	writeLine("BEGIN:VCALENDAR")
	writeLine("VERSION:2.0")
	writeLine("PRODID:" + ProdID)
	writeLine("BEGIN:VEVENT")
	writeLine("UID:" + uid)
	writeLine("DTSTAMP:" + now.UTC().Format(dtstampLayout))
	writeLine("SUMMARY:" + escapeText(event.Title))
	writeLine("DESCRIPTION:" + escapeText(describe(event)))
	writeLine("END:VEVENT")
	writeLine("END:VCALENDAR")

	return b.String()
}

// CalendarFilename names an .ics export after the event title, with every
// run of whitespace (leading and trailing included) and each path separator
// replaced by an underscore. A blank title is named event.ics.
func CalendarFilename(title string) string {
	if strings.TrimSpace(title) == "" {
		return "event.ics"
	}
	name := whitespaceRun.ReplaceAllString(title, "_")
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	return name + ".ics"
}

func describe(event meeting.CalendarEvent) string {
	when := strings.TrimSpace(strings.TrimSpace(event.Date) + " " + strings.TrimSpace(event.Time))
	if when == "" {
		return "Scheduled via Scribe"
	}
	return "Proposed for " + when + ". Scheduled via Scribe"
}

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// foldLine splits a content line longer than 75 octets into CRLF + space
// continuation lines without breaking a UTF-8 sequence.
func foldLine(line string) string {
	if len(line) <= maxLineOctets {
		return line
	}

	var b strings.Builder
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString(crlf + " ")
		line = line[cut:]
		// Continuation lines lose one octet to the leading space.
		limit = maxLineOctets - 1
	}
	b.WriteString(line)
	return b.String()
}
