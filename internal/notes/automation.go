// ABOUTME: Automation-backed notes variant: note creation through the
// ABOUTME: Notes application with markdown bodies rendered to HTML.

package notes

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/osa"
)

// Automation drives the Notes application. Only creation is implemented;
// reads come from the store.
type Automation struct {
	engine Scripter
}

// Create makes a new note. The body is markdown, rendered to the HTML
// the application expects; folder is optional and must already exist.
func (a *Automation) Create(ctx context.Context, title, markdownBody, folder string) error {
	if title == "" {
		return fault.MissingField("title")
	}
	html, err := renderBody(markdownBody)
	if err != nil {
		return fault.BadField("body", err.Error())
	}
	_, err = a.engine.Run(ctx, createScript(title, html, folder))
	return err
}

// renderBody converts markdown to the single-line HTML Notes accepts as
// a note body.
func renderBody(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func createScript(title, htmlBody, folder string) string {
	props := fmt.Sprintf("{name:%s, body:%s}", osa.Quote(title), osa.Quote(htmlBody))
	if folder == "" {
		return osa.Tell("Notes",
			fmt.Sprintf("make new note at default account with properties %s", props),
		)
	}
	return osa.Tell("Notes",
		fmt.Sprintf("make new note at folder %s of default account with properties %s", osa.Quote(folder), props),
	)
}
