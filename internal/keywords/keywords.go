// Package keywords tags rows with the keywords their content mentions.
package keywords

import (
	"errors"
	"strings"

	"tgpipe/internal/table"
)

// CountColumn holds the number of distinct keywords found in a row.
const CountColumn = "Keyword_Count"

var ErrNoKeywords = errors.New("no keywords given")

// Result is the filtered table plus per-keyword hit counts over all input rows.
type Result struct {
	Table    *table.Table
	Keywords []string
	Hits     map[string]int
	Scanned  int
}

// Filter adds a 0/1 column per keyword and a Keyword_Count column, then keeps
// the rows where at least one keyword occurs. Matching is a case-sensitive
// substring test on the content rendered as text. Repeated keywords are
// counted once.
func Filter(t *table.Table, contentCol string, keywords []string) (*Result, error) {
	kws := unique(keywords)
	if len(kws) == 0 {
		return nil, ErrNoKeywords
	}
	if err := t.Require(contentCol); err != nil {
		return nil, err
	}

	tagged := t
	for _, kw := range kws {
		tagged = tagged.WithColumn(kw)
	}
	tagged = tagged.WithColumn(CountColumn)

	res := &Result{
		Table:    table.New(tagged.Columns...),
		Keywords: kws,
		Hits:     make(map[string]int, len(kws)),
		Scanned:  t.Len(),
	}

	for _, r := range t.Rows {
		content := table.String(r[contentCol])
		rec := r.Clone()
		var count int64
		for _, kw := range kws {
			var hit int64
			if strings.Contains(content, kw) {
				hit = 1
				res.Hits[kw]++
			}
			rec[kw] = hit
			count += hit
		}
		rec[CountColumn] = count
		if count > 0 {
			res.Table.Rows = append(res.Table.Rows, rec)
		}
	}

	return res, nil
}

func unique(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	var out []string
	for _, kw := range keywords {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
