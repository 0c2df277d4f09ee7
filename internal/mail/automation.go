// ABOUTME: Automation-backed mail variant: composing and sending an
// ABOUTME: outgoing message through the Mail application.

package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/osa"
)

// Automation drives the Mail application. Only sending is implemented;
// reads come from the envelope index.
type Automation struct {
	engine Scripter
}

// Send composes and sends an outgoing message.
func (a *Automation) Send(ctx context.Context, out Outgoing) error {
	if out.To == "" {
		return fault.MissingField("to")
	}
	if !strings.Contains(out.To, "@") {
		return fault.BadField("to", "must be an email address")
	}
	if out.Subject == "" {
		return fault.MissingField("subject")
	}
	_, err := a.engine.Run(ctx, sendScript(out))
	return err
}

func sendScript(out Outgoing) string {
	return osa.Tell("Mail",
		fmt.Sprintf("set newMessage to make new outgoing message with properties {subject:%s, content:%s, visible:false}",
			osa.Quote(out.Subject), osa.Quote(out.Body)),
		"tell newMessage",
		fmt.Sprintf("\tmake new to recipient at end of to recipients with properties {address:%s}", osa.Quote(out.To)),
		"\tsend",
		"end tell",
	)
}
