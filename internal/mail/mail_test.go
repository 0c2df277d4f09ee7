// ABOUTME: Hybrid routing tests: default assignment wiring and the
// ABOUTME: deterministic unsupported errors for misrouted operations.

package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/fault"
)

func TestDefaultAssignmentCoversEveryOperation(t *testing.T) {
	a := DefaultAssignment()
	assert.Equal(t, backend.KindFile, a[OpListMessages])
	assert.Equal(t, backend.KindFile, a[OpSearch])
	assert.Equal(t, backend.KindAutomation, a[OpSend])
}

func TestReadsAssignedToAutomationFailUnsupported(t *testing.T) {
	h := New(Config{
		DBPath: "/nonexistent/Envelope Index",
		Engine: scriptFunc(func(context.Context, string) (string, error) { return "", nil }),
		Assignment: backend.Assignment{
			OpListMessages: backend.KindAutomation,
			OpSearch:       backend.KindAutomation,
			OpSend:         backend.KindAutomation,
		},
	})

	_, err := h.ListMessages(context.Background(), MessageQuery{Limit: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrUnsupported))
	assert.Contains(t, err.Error(), "envelope index")

	_, err = h.Search(context.Background(), "invoice", 10, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrUnsupported))
}

func TestSendAssignedToFileFailsUnsupported(t *testing.T) {
	h := New(Config{
		DBPath:     "/nonexistent/Envelope Index",
		Assignment: backend.Assignment{OpSend: backend.KindFile},
	})
	err := h.Send(context.Background(), Outgoing{To: "a@example.com", Subject: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrUnsupported))
	assert.Contains(t, err.Error(), "not an outbox")
}

func TestFrameworkAssignmentFailsUnsupported(t *testing.T) {
	h := New(Config{
		DBPath:     "/nonexistent/Envelope Index",
		Assignment: backend.Assignment{OpListMessages: backend.KindFramework},
	})
	_, err := h.ListMessages(context.Background(), MessageQuery{Limit: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrUnsupported))
	assert.Contains(t, err.Error(), "framework variant is not composed")
}

func TestSendWithoutEngineFailsUnsupported(t *testing.T) {
	h := New(Config{DBPath: "/nonexistent/Envelope Index"})
	err := h.Send(context.Background(), Outgoing{To: "a@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrUnsupported))
}
