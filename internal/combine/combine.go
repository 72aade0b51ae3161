// Package combine merges per-channel exports into one deduplicated dataset.
package combine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"tgpipe/internal/config"
	"tgpipe/internal/table"
)

// NoMedia is the value the scraper writes when a message has no attachment.
const NoMedia = "no media"

var ErrNoData = errors.New("no non-empty input tables")

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// Result is the combined dataset and the counts reported after a run.
type Result struct {
	Table      *table.Table
	Inputs     int
	Skipped    int
	RowsBefore int
	Duplicates int
	Comments   int64
}

// Total is the number of rows plus the number of comments.
func (r *Result) Total() int64 {
	return int64(r.Table.Len()) + r.Comments
}

// Combine stacks the inputs, normalises identifiers, drops duplicates on keys
// and recomputes comment counts, media flags and dates. The result is sorted
// by date, newest first. Empty and all-null inputs are skipped.
func Combine(inputs []*table.Table, cols config.Columns, keys []string, logger *slog.Logger) (*Result, error) {
	res := &Result{Inputs: len(inputs)}

	var kept []*table.Table
	for _, t := range inputs {
		if t.Len() == 0 || t.AllNull() {
			res.Skipped++
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return nil, ErrNoData
	}

	combined := table.Concat(kept...)
	if err := combined.Require(cols.Group, cols.MessageID); err != nil {
		return nil, err
	}

	for _, r := range combined.Rows {
		if v := r[cols.MessageID]; v != nil {
			r[cols.MessageID] = table.String(v)
		}
		if v := r[cols.Group]; v != nil {
			r[cols.Group] = GroupHandle(table.String(v))
		}
	}
	res.RowsBefore = combined.Len()

	deduped, removed, err := table.Dedup(combined, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to remove duplicates: %w", err)
	}
	res.Duplicates = removed

	out := deduped.WithColumn(cols.Comments)
	hasList := out.HasColumn(cols.CommentsList)
	if !hasList && logger != nil {
		logger.Warn("Comments list column missing, keeping existing comment counts", "column", cols.CommentsList)
	}

	for i, r := range out.Rows {
		if hasList {
			n, err := CountComments(r[cols.CommentsList])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			r[cols.Comments] = n
		} else {
			r[cols.Comments] = toInt(r[cols.Comments])
		}
		res.Comments += r[cols.Comments].(int64)

		if out.HasColumn(cols.Media) {
			r[cols.Media] = MediaFlag(r[cols.Media])
		}
		if out.HasColumn(cols.Date) {
			d, err := ParseDate(r[cols.Date])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			r[cols.Date] = d
		}
	}

	if out.HasColumn(cols.Date) {
		SortByDateDesc(out, cols.Date)
	}

	res.Table = out
	return res, nil
}

// GroupHandle prefixes a channel name with @ unless it already has one.
func GroupHandle(name string) string {
	if strings.HasPrefix(name, "@") {
		return name
	}
	return "@" + name
}

// CountComments counts the entries of a JSON comments list whose Type is
// "comment". nil and blank values count as zero.
func CountComments(v any) (int64, error) {
	if table.IsBlank(v) {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("comments list is %T, not a JSON string", v)
	}

	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return 0, fmt.Errorf("failed to decode comments list: %w", err)
	}

	var n int64
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if ok && obj["Type"] == "comment" {
			n++
		}
	}
	return n, nil
}

// MediaFlag reports whether a media value denotes an attachment.
func MediaFlag(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.EqualFold(s, NoMedia) {
			return false
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return true
	default:
		return true
	}
}

// ParseDate converts a date value to a UTC timestamp. nil stays nil.
func ParseDate(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("unrecognised date %q", s)
	default:
		return nil, fmt.Errorf("unsupported date value %T", v)
	}
}

// SortByDateDesc orders rows newest first, keeping input order for equal
// dates. Rows without a date go last.
func SortByDateDesc(t *table.Table, dateCol string) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, aok := t.Rows[i][dateCol].(time.Time)
		b, bok := t.Rows[j][dateCol].(time.Time)
		switch {
		case aok && bok:
			return a.After(b)
		default:
			return aok && !bok
		}
	})
}

// NormalizeCommentsList rewrites every JSON comments list in compact form,
// failing on values that are not valid JSON.
func NormalizeCommentsList(t *table.Table, col string) (*table.Table, error) {
	if !t.HasColumn(col) {
		return t, nil
	}
	out := t.Clone()
	for i, r := range out.Rows {
		if table.IsBlank(r[col]) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(table.String(r[col]))); err != nil {
			return nil, fmt.Errorf("row %d: failed to decode %s: %w", i, col, err)
		}
		r[col] = buf.String()
	}
	return out, nil
}

func toInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
