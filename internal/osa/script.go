// ABOUTME: AppleScript construction and output-parsing helpers shared by
// ABOUTME: every automation-backed domain variant.

package osa

import (
	"fmt"
	"strings"
	"time"
)

// Separators used by list-emitting scripts: tab between fields, newline
// between records. Scripts strip these characters from field values before
// emitting, so the parse below never mis-splits.
const (
	FieldSep  = "\t"
	RecordSep = "\n"
)

// Quote renders s as an AppleScript string literal. All caller-supplied
// text reaches a script only through Quote.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Tell builds a "tell application" block around the given statement lines.
func Tell(app string, lines ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tell application %s\n", Quote(app))
	for _, line := range lines {
		b.WriteByte('\t')
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("end tell")
	return b.String()
}

// DateLines builds statements assigning t to an AppleScript date variable
// field by field. Interpolating a formatted date string would parse in
// the user's locale; setting components does not.
func DateLines(varName string, t time.Time) []string {
	t = t.Local()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return []string{
		fmt.Sprintf("set %s to current date", varName),
		fmt.Sprintf("set year of %s to %d", varName, t.Year()),
		fmt.Sprintf("set month of %s to %d", varName, int(t.Month())),
		fmt.Sprintf("set day of %s to %d", varName, t.Day()),
		fmt.Sprintf("set time of %s to %d", varName, int(t.Sub(midnight)/time.Second)),
	}
}

// ParseRecords splits list-shaped script output into records and fields.
// Blank lines are skipped; field content is preserved verbatim. Empty
// output yields an empty slice.
func ParseRecords(out string) [][]string {
	var records [][]string
	for _, line := range strings.Split(out, RecordSep) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, strings.Split(line, FieldSep))
	}
	return records
}

// Field returns record[i], or the empty string when the record is too
// short. Scripts are written to emit a fixed field count, but the target
// application owns the data and this layer assumes nothing.
func Field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
