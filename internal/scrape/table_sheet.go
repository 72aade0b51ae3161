package scrape

import (
	"context"
	"fmt"
	"sort"

	"tgpipe/internal/table"
)

// TableSheet keeps rows in memory so a run can be saved as a local file.
type TableSheet struct {
	rows map[int][]any
}

func NewTableSheet() *TableSheet {
	return &TableSheet{rows: make(map[int][]any)}
}

func (s *TableSheet) Reset(ctx context.Context) error {
	s.rows = make(map[int][]any)
	return nil
}

func (s *TableSheet) WriteRow(ctx context.Context, row int, values []any) error {
	if row < 1 {
		return fmt.Errorf("row numbers start at 1, got %d", row)
	}
	s.rows[row] = append([]any(nil), values...)
	return nil
}

// Row returns the values written to row, or nil.
func (s *TableSheet) Row(row int) []any {
	return s.rows[row]
}

// Len is the number of rows written, header included.
func (s *TableSheet) Len() int {
	return len(s.rows)
}

// Table converts the sheet to a Table using row 1 as the column names.
func (s *TableSheet) Table() (*table.Table, error) {
	header, ok := s.rows[1]
	if !ok {
		return nil, fmt.Errorf("sheet has no header row")
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = table.String(h)
	}

	nums := make([]int, 0, len(s.rows))
	for n := range s.rows {
		if n > 1 {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)

	out := table.New(cols...)
	for _, n := range nums {
		values := s.rows[n]
		rec := make(table.Record, len(cols))
		for i, c := range cols {
			var v any
			if i < len(values) {
				v = values[i]
			}
			if x, ok := v.(int); ok {
				v = int64(x)
			}
			rec[c] = v
		}
		out.Append(rec)
	}
	return out, nil
}
