// ABOUTME: Tests for AppleScript quoting, tell-block construction, and
// ABOUTME: record-oriented output parsing.

package osa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", `"hello"`},
		{"empty", "", `""`},
		{"embedded quotes", `say "hi"`, `"say \"hi\""`},
		{"backslash", `C:\path`, `"C:\\path"`},
		{"newline", "line one\nline two", `"line one\nline two"`},
		{"tab and cr", "a\tb\rc", `"a\tb\rc"`},
		{"unicode", "café ☕", `"café ☕"`},
		{"injection attempt", `" & (do shell script "rm") & "`, `"\" & (do shell script \"rm\") & \""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestTell(t *testing.T) {
	got := Tell("Messages", "set x to 1", "return x")
	want := "tell application \"Messages\"\n\tset x to 1\n\treturn x\nend tell"
	assert.Equal(t, want, got)
}

func TestTellNoLines(t *testing.T) {
	assert.Equal(t, "tell application \"Notes\"\nend tell", Tell("Notes"))
}

func TestParseRecords(t *testing.T) {
	out := "a\tb\tc\nd\te\tf\n"
	got := ParseRecords(out)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e", "f"}}, got)
}

func TestParseRecordsSkipsBlankLines(t *testing.T) {
	out := "\none\ttwo\n\n   \nthree\tfour\n\n"
	got := ParseRecords(out)
	assert.Equal(t, [][]string{{"one", "two"}, {"three", "four"}}, got)
}

func TestParseRecordsEmpty(t *testing.T) {
	assert.Empty(t, ParseRecords(""))
	assert.Empty(t, ParseRecords("\n\n"))
}

func TestParseRecordsPreservesEmptyFields(t *testing.T) {
	got := ParseRecords("id1\t\tlast\n")
	assert.Equal(t, [][]string{{"id1", "", "last"}}, got)
}

func TestField(t *testing.T) {
	rec := []string{"a", "b"}
	assert.Equal(t, "a", Field(rec, 0))
	assert.Equal(t, "b", Field(rec, 1))
	assert.Equal(t, "", Field(rec, 2), "short records read as empty, never panic")
	assert.Equal(t, "", Field(rec, -1))
	assert.Equal(t, "", Field(nil, 0))
}
