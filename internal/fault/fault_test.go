// ABOUTME: Tests for the error taxonomy: kind matching, sub-cause
// ABOUTME: sentinels, message contents, and wrap-chain behavior.

package fault

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel *Fault
	}{
		{"permission", Permission("full disk access is not granted", "grant it"), ErrPermission},
		{"execution", ExecutionFailed("syntax error", nil), ErrExecution},
		{"timeout", Timeout(5 * time.Second), ErrTimeout},
		{"database missing", DatabaseNotFound("/tmp/nope.db"), ErrStorage},
		{"open failed", OpenFailed("/tmp/x.db", errors.New("locked")), ErrStorage},
		{"query failed", QueryFailed(errors.New("no such table")), ErrStorage},
		{"schema mismatch", SchemaMismatch("message", "date", []string{"guid"}), ErrStorage},
		{"malformed cursor", MalformedCursor(errors.New("bad base64")), ErrValidation},
		{"missing field", MissingField("recipient"), ErrValidation},
		{"bad field", BadField("limit", "must be positive"), ErrValidation},
		{"unknown field", UnknownField("zzz", []string{"id", "text"}), ErrValidation},
		{"not found", NotFound("note", "42"), ErrNotFound},
		{"unsupported", Unsupported("messages", "ListMessages", "no transcript access"), ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel), "expected %v to match %v", tt.err, tt.sentinel.Kind)
		})
	}
}

func TestKindSentinelsDoNotCrossMatch(t *testing.T) {
	err := DatabaseNotFound("/tmp/nope.db")
	assert.False(t, errors.Is(err, ErrPermission))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrUnsupported))
}

func TestStorageSubCauses(t *testing.T) {
	missing := DatabaseNotFound("/x")
	opened := OpenFailed("/x", errors.New("disk I/O error"))
	queried := QueryFailed(errors.New("no such table: chat"))

	// All storage-kind, but distinguishable by sub-cause.
	require.True(t, errors.Is(missing, ErrStorage))
	require.True(t, errors.Is(opened, ErrStorage))
	require.True(t, errors.Is(queried, ErrStorage))

	assert.True(t, errors.Is(missing, ErrDatabaseMissing))
	assert.False(t, errors.Is(missing, ErrOpenFailed))
	assert.True(t, errors.Is(opened, ErrOpenFailed))
	assert.False(t, errors.Is(opened, ErrDatabaseMissing))
	assert.True(t, errors.Is(queried, ErrQueryFailed))
}

func TestWrappedCauseStaysReachable(t *testing.T) {
	cause := errors.New("database is locked")
	err := QueryFailed(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestKindSurvivesOuterWrapping(t *testing.T) {
	inner := Unsupported("mail", "Send", "index is read-only")
	outer := fmt.Errorf("sending mail: %w", inner)

	assert.True(t, errors.Is(outer, ErrUnsupported))
	assert.Equal(t, KindUnsupported, KindOf(outer))

	var f *Fault
	require.True(t, errors.As(outer, &f))
	assert.Contains(t, f.Message, "mail.Send")
}

func TestSchemaMismatchNamesTableAndColumn(t *testing.T) {
	err := SchemaMismatch("message", "date", []string{"ROWID", "guid", "text"})
	assert.Contains(t, err.Error(), `table "message" has no column "date"`)
	assert.Contains(t, err.Error(), "ROWID, guid, text")

	tblErr := SchemaMismatch("message", "", []string{"chat", "handle"})
	assert.Contains(t, tblErr.Error(), `table "message" not present`)
	assert.Contains(t, tblErr.Error(), "chat, handle")
}

func TestUnknownFieldNamesAllowedSet(t *testing.T) {
	err := UnknownField("body", []string{"id", "title", "snippet"})
	assert.Contains(t, err.Error(), `unknown field "body"`)
	assert.Contains(t, err.Error(), "id, title, snippet")
}

func TestRemediationAppearsInMessage(t *testing.T) {
	err := Permission("Messages database is not readable",
		"Grant Full Disk Access in System Settings > Privacy & Security > Full Disk Access")
	assert.Contains(t, err.Error(), "Privacy & Security")
}

func TestExecutionFailedFallsBackToGenericMessage(t *testing.T) {
	err := ExecutionFailed("", nil)
	assert.Contains(t, err.Error(), "no diagnostic output")

	withStderr := ExecutionFailed("execution error: Messages got an error (-1743)\n", nil)
	assert.Contains(t, withStderr.Error(), "-1743")
	assert.NotContains(t, withStderr.Error(), "\n")
}

func TestTimeoutCarriesDuration(t *testing.T) {
	err := Timeout(30 * time.Second)
	assert.Contains(t, err.Error(), "30s")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "permission_denied", KindPermission.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "unsupported_by_backend", KindUnsupported.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestKindOfNonFault(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(0), KindOf(nil))
}
