// ABOUTME: Live schema validation against expected table/column shapes so
// ABOUTME: OS-update drift fails fast with a named mismatch.

package appledb

import (
	"context"

	"github.com/2389/grimoire/internal/fault"
)

// Expect names one table and the columns the caller's queries will touch.
// Expectations are embedded constants in the domain layers, validated here
// against the live file before any domain query runs.
type Expect struct {
	Table   string
	Columns []string
}

// Validate introspects the open database and verifies every expectation.
// The first mismatch fails with a schema fault naming exactly what is
// missing and what the file actually contains, so drift after an OS update
// is diagnosable instead of surfacing as a cryptic query error.
func (d *DB) Validate(ctx context.Context, expects []Expect) error {
	rows, err := d.Query(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') ORDER BY name`)
	if err != nil {
		return err
	}

	tables := make(map[string]bool, len(rows))
	tableNames := make([]string, 0, len(rows))
	for _, r := range rows {
		if name, ok := r.Text("name"); ok {
			tables[name] = true
			tableNames = append(tableNames, name)
		}
	}

	for _, e := range expects {
		if !tables[e.Table] {
			return fault.SchemaMismatch(e.Table, "", tableNames)
		}

		colRows, err := d.Query(ctx, `SELECT name FROM pragma_table_info(?)`, e.Table)
		if err != nil {
			return err
		}
		cols := make(map[string]bool, len(colRows))
		colNames := make([]string, 0, len(colRows))
		for _, r := range colRows {
			if name, ok := r.Text("name"); ok {
				cols[name] = true
				colNames = append(colNames, name)
			}
		}

		for _, want := range e.Columns {
			if !cols[want] {
				return fault.SchemaMismatch(e.Table, want, colNames)
			}
		}
	}
	return nil
}
