// Package sampler draws a bounded, category-proportional sample from a table,
// preferring rows whose text field is not blank.
package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"tgpipe/internal/table"
)

var (
	ErrEmptyInput      = errors.New("empty input table")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Quota is the number of rows a category of categorySize rows contributes to a
// sample of targetSize drawn from totalRows: max(1, ceil(share * targetSize)).
// The ceiling is computed in integers so shares like 0.9 don't round up.
func Quota(categorySize, totalRows, targetSize int) int {
	if totalRows <= 0 || categorySize <= 0 {
		return 1
	}
	num := int64(categorySize) * int64(targetSize)
	q := int((num + int64(totalRows) - 1) / int64(totalRows))
	return max(1, q)
}

type category struct {
	key  string
	rows []table.Record
}

// Sample draws from t a sample whose per-category counts follow Quota.
//
// Within each category rows with non-blank text are used first: if there are
// enough of them the quota is drawn from them without replacement. Otherwise
// all of them are taken and the rest of the quota is drawn with replacement
// from the blank-text rows, or from the non-blank rows when the category has no
// blank rows. A category with no non-blank rows is drawn with replacement from
// all its rows. A draw with replacement whose size reaches the pool takes every
// pool row once first, so a targetSize of at least the row count returns every
// input row. Categories are emitted in first-seen order.
//
// The total may exceed targetSize because every category gets at least one row.
// The result holds copies of the drawn records; t is not modified.
func Sample(t *table.Table, textField, categoryField string, targetSize int, rng *rand.Rand) (*table.Table, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidArgument, targetSize)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is nil", ErrInvalidArgument)
	}
	if t.Len() == 0 {
		return nil, ErrEmptyInput
	}
	if err := t.Require(categoryField, textField); err != nil {
		return nil, err
	}

	out := table.New(t.Columns...)
	total := t.Len()

	for _, cat := range groupByCategory(t, categoryField) {
		quota := Quota(len(cat.rows), total, targetSize)

		var nonEmpty, empty []table.Record
		for _, r := range cat.rows {
			if table.IsBlank(r[textField]) {
				empty = append(empty, r)
			} else {
				nonEmpty = append(nonEmpty, r)
			}
		}

		var drawn []table.Record
		switch {
		case len(nonEmpty) >= quota:
			drawn = withoutReplacement(nonEmpty, quota, rng)
		case len(nonEmpty) > 0:
			pool := empty
			if len(pool) == 0 {
				pool = nonEmpty
			}
			drawn = append(drawn, nonEmpty...)
			drawn = append(drawn, fill(pool, quota-len(nonEmpty), rng)...)
		default:
			drawn = fill(cat.rows, quota, rng)
		}

		for _, r := range drawn {
			out.Rows = append(out.Rows, r.Clone())
		}
	}

	return out, nil
}

func groupByCategory(t *table.Table, field string) []*category {
	var order []*category
	index := make(map[string]*category)
	for _, r := range t.Rows {
		key := table.Key(r[field])
		c, ok := index[key]
		if !ok {
			c = &category{key: key}
			index[key] = c
			order = append(order, c)
		}
		c.rows = append(c.rows, r)
	}
	return order
}

func withoutReplacement(pool []table.Record, n int, rng *rand.Rand) []table.Record {
	idxs := make([]int, n)
	sampleuv.WithoutReplacement(idxs, len(pool), rng)
	out := make([]table.Record, n)
	for i, idx := range idxs {
		out[i] = pool[idx]
	}
	return out
}

// fill draws n rows from pool with replacement. When n covers the pool, every
// pool row is taken once and only the excess is drawn with replacement.
func fill(pool []table.Record, n int, rng *rand.Rand) []table.Record {
	if n < len(pool) {
		return withReplacement(pool, n, rng)
	}
	out := make([]table.Record, 0, n)
	out = append(out, pool...)
	return append(out, withReplacement(pool, n-len(pool), rng)...)
}

func withReplacement(pool []table.Record, n int, rng *rand.Rand) []table.Record {
	out := make([]table.Record, n)
	for i := range out {
		out[i] = pool[rng.IntN(len(pool))]
	}
	return out
}
