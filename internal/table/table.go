// Package table holds the in-memory tabular model shared by every pipeline step.
//
// A Table is an ordered list of Records plus an ordered column list. Records are
// maps from column name to a scalar value: string, int64, float64, bool,
// time.Time or nil. Functions in this package never mutate their inputs; when a
// transformation changes values it returns a new Table with copied Records.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrFieldNotFound is matched by every FieldNotFoundError.
var ErrFieldNotFound = errors.New("field not found")

// FieldNotFoundError reports a column that is missing from a Table or Record.
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found: %q", e.Field)
}

func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// Record is a single row keyed by column name.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered collection of Records.
type Table struct {
	Columns []string
	Rows    []Record
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require checks that every field is a column of the table and is present in
// every record.
func (t *Table) Require(fields ...string) error {
	for _, f := range fields {
		if !t.HasColumn(f) {
			return &FieldNotFoundError{Field: f}
		}
	}
	for _, r := range t.Rows {
		for _, f := range fields {
			if _, ok := r[f]; !ok {
				return &FieldNotFoundError{Field: f}
			}
		}
	}
	return nil
}

// Append adds records to the table. Records are not copied.
func (t *Table) Append(rows ...Record) {
	t.Rows = append(t.Rows, rows...)
}

// WithColumn returns a copy of the table whose column list includes name.
// Rows are shared with the receiver.
func (t *Table) WithColumn(name string) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...), Rows: t.Rows}
	if !out.HasColumn(name) {
		out.Columns = append(out.Columns, name)
	}
	return out
}

// Clone returns a copy of the table with every record copied.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([]Record, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// AllNull reports whether the table has no rows or every value is nil.
func (t *Table) AllNull() bool {
	for _, r := range t.Rows {
		for _, c := range t.Columns {
			if r[c] != nil {
				return false
			}
		}
	}
	return true
}

// Concat stacks tables vertically. The result's columns are the union of the
// inputs' columns in first-seen order; records missing a column get nil.
func Concat(tables ...*Table) *Table {
	out := New()
	seen := make(map[string]bool)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, r := range t.Rows {
			rec := make(Record, len(out.Columns))
			for _, c := range out.Columns {
				rec[c] = r[c]
			}
			out.Rows = append(out.Rows, rec)
		}
	}
	return out
}

// String renders a value the way it should appear in text comparisons.
// nil renders as the empty string.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

// Key is the canonical grouping key of a value. It carries the dynamic type,
// so int64(1), "1" and 1.0 are different keys, and nil never collides with
// the empty string. Times keep their full precision.
func Key(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00nil"
	case time.Time:
		return "time.Time:" + x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%T:%s", v, String(v))
	}
}

// IsBlank reports whether v is nil or a string that is empty after trimming.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}
