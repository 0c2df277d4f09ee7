// ABOUTME: Closed set of backend variant kinds and the per-operation
// ABOUTME: assignments hybrid domain services route through.

package backend

import (
	"fmt"
	"sort"
)

// Kind names one backend variant class. The set is closed: every domain
// composes its service from variants of these kinds, and configuration
// values parse through this vocabulary.
type Kind string

const (
	// KindAutomation drives the target application through the scripting
	// interpreter. Needs only per-application automation permission.
	KindAutomation Kind = "automation"
	// KindFile reads the domain's private store directly. Needs Full Disk
	// Access.
	KindFile Kind = "file"
	// KindFramework calls a documented native API. Represented in the
	// model and configuration; no domain currently composes one (no
	// documented native API is callable from this process type), so
	// assigning it yields a deterministic unsupported error.
	KindFramework Kind = "framework"
)

func (k Kind) String() string { return string(k) }

// Valid reports whether k is a member of the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindAutomation, KindFile, KindFramework:
		return true
	}
	return false
}

// Parse converts a configuration string into a Kind.
func Parse(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown backend kind %q (valid: %s, %s, %s)",
			s, KindAutomation, KindFile, KindFramework)
	}
	return k, nil
}

// Assignment maps operation names to the variant kind that serves them.
// Each domain ships a documented default assignment; configuration may
// override individual operations. There is no runtime fallback between
// kinds — the assignment is the whole routing decision.
type Assignment map[string]Kind

// Merge layers overrides on top of defaults without mutating either.
// Override keys must name operations the domain defines, and values must
// be valid kinds; anything else is a configuration error.
func Merge(defaults Assignment, overrides map[string]string) (Assignment, error) {
	out := make(Assignment, len(defaults))
	for op, k := range defaults {
		out[op] = k
	}
	for op, raw := range overrides {
		if _, known := defaults[op]; !known {
			return nil, fmt.Errorf("unknown operation %q (operations: %s)", op, opList(defaults))
		}
		k, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("operation %q: %w", op, err)
		}
		out[op] = k
	}
	return out, nil
}

func opList(a Assignment) string {
	ops := make([]string, 0, len(a))
	for op := range a {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	s := ""
	for i, op := range ops {
		if i > 0 {
			s += ", "
		}
		s += op
	}
	return s
}
