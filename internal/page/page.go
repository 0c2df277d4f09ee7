// ABOUTME: Pagination primitives: opaque continuation cursors and the paged
// ABOUTME: result envelope shared by every list-shaped operation.

package page

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/2389/grimoire/internal/fault"
)

// Limit bounds applied by the tool surface. Callers asking for nothing get
// DefaultLimit; callers asking for more than MaxLimit get MaxLimit.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Clamp normalizes a caller-supplied limit into [1, MaxLimit].
func Clamp(requested int) int {
	switch {
	case requested <= 0:
		return DefaultLimit
	case requested > MaxLimit:
		return MaxLimit
	default:
		return requested
	}
}

// Cursor marks "resume after this item" in a stable listing order. LastID
// breaks ties between items sharing a timestamp; TS is whole seconds.
//
// The wire form is canonical JSON wrapped in unpadded URL-safe base64 —
// self-describing and independent of field order, so a cursor produced by
// one build decodes in another even if marshaling order changes.
type Cursor struct {
	LastID string `json:"id"`
	TS     int64  `json:"ts"`
}

// Encode returns the opaque wire form of the cursor.
func (c Cursor) Encode() string {
	raw, err := json.Marshal(c)
	if err != nil {
		// Two scalar fields cannot fail to marshal.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses an opaque cursor string. Anything not produced by Encode
// fails with the malformed-cursor validation kind — never a zero-valued
// cursor.
func Decode(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, fault.MalformedCursor(errors.New("empty cursor"))
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fault.MalformedCursor(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var c Cursor
	if err := dec.Decode(&c); err != nil {
		return Cursor{}, fault.MalformedCursor(err)
	}
	if dec.More() {
		return Cursor{}, fault.MalformedCursor(errors.New("trailing data after cursor"))
	}
	if c.LastID == "" {
		return Cursor{}, fault.MalformedCursor(errors.New("cursor missing id"))
	}
	return c, nil
}

// Page is the immutable envelope for one page of a list-shaped result.
// Invariants: HasMore == false implies NextCursor == ""; len(Items) never
// exceeds the limit the caller supplied.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// Build assembles a Page from items fetched with the limit+1 idiom: the
// query asks for one row beyond the limit, and an overflow row here means
// more results remain. cursorOf derives the resume point from the last
// returned item. A non-positive limit disables trimming.
func Build[T any](items []T, limit int, cursorOf func(T) Cursor) Page[T] {
	var p Page[T]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
		p.HasMore = true
	}
	if items == nil {
		items = []T{}
	}
	p.Items = items
	if p.HasMore {
		p.NextCursor = cursorOf(items[len(items)-1]).Encode()
	}
	return p
}
