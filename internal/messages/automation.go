// ABOUTME: Automation-backed messages variant: sending through the
// ABOUTME: Messages application via the shared script engine.

package messages

import (
	"context"
	"fmt"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/osa"
)

// Automation drives the Messages application. It implements only the
// write side of the service; history is not reachable through the
// scripting dictionary.
type Automation struct {
	engine Scripter
}

// Send delivers text to recipient over iMessage.
func (a *Automation) Send(ctx context.Context, recipient, text string) error {
	if recipient == "" {
		return fault.MissingField("recipient")
	}
	if text == "" {
		return fault.MissingField("text")
	}
	_, err := a.engine.Run(ctx, sendScript(recipient, text))
	return err
}

func sendScript(recipient, text string) string {
	return osa.Tell("Messages",
		"set targetService to 1st account whose service type = iMessage",
		fmt.Sprintf("set targetBuddy to participant %s of targetService", osa.Quote(recipient)),
		fmt.Sprintf("send %s to targetBuddy", osa.Quote(text)),
	)
}
