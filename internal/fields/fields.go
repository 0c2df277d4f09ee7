// ABOUTME: Whitelist validation of client-requested output fields and
// ABOUTME: projection of records down to the chosen set.

package fields

import (
	"encoding/json"
	"fmt"

	"github.com/2389/grimoire/internal/fault"
)

// Set is one tool's projection vocabulary: the fields a caller may request
// and the ones returned when the caller requests nothing.
type Set struct {
	Allowed []string
	Default []string
}

// Resolve validates a requested field list against the allowed set. An
// empty request yields a copy of the default set. Duplicates collapse to
// the first occurrence, preserving request order. An unknown name fails
// with a validation fault naming the field and the full allowed set.
func (s Set) Resolve(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), s.Default...), nil
	}

	allowed := make(map[string]struct{}, len(s.Allowed))
	for _, f := range s.Allowed {
		allowed[f] = struct{}{}
	}

	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, f := range requested {
		if _, ok := allowed[f]; !ok {
			return nil, fault.UnknownField(f, s.Allowed)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// Project marshals a record and keeps only the chosen fields. Fields the
// record omits (empty with omitempty, or simply absent) stay absent in the
// projection rather than appearing as nulls.
func Project(record any, chosen []string) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshaling record for projection: %w", err)
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("projection requires an object-shaped record: %w", err)
	}

	out := make(map[string]any, len(chosen))
	for _, f := range chosen {
		if v, ok := full[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}
