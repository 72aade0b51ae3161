// Package summary pivots per group and month counts into the contents,
// comments and total tables exported for spreadsheets.
package summary

import (
	"errors"
	"sort"
	"time"

	"tgpipe/internal/table"
)

// LabelLayout formats month column labels.
const LabelLayout = "2006-01"

var ErrNoObservations = errors.New("no group/month observations")

// Observation is the aggregate of one group in one month.
type Observation struct {
	Group    string
	Month    time.Time
	Contents int64
	Comments int64
}

// Tables holds the three pivots. Each has the group column first followed by
// one column per month label.
type Tables struct {
	Contents *table.Table
	Comments *table.Table
	Total    *table.Table
	Months   []string
}

// MonthStart truncates t to the first instant of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Label renders a month as YYYY-MM.
func Label(month time.Time) string {
	return month.UTC().Format(LabelLayout)
}

// MonthRange returns every month from the month of from to the month of to,
// inclusive. It is empty when to precedes from.
func MonthRange(from, to time.Time) []time.Time {
	start, end := MonthStart(from), MonthStart(to)
	var out []time.Time
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		out = append(out, m)
	}
	return out
}

// Build pivots observations into group rows and month columns. Months between
// the first and last observed month are included and filled with zero, and
// so is every group/month pair that was not observed. Groups are sorted.
func Build(groupColumn string, obs []Observation) (*Tables, error) {
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}

	first, last := MonthStart(obs[0].Month), MonthStart(obs[0].Month)
	type cell struct{ contents, comments int64 }
	cells := make(map[string]map[string]cell)

	for _, o := range obs {
		m := MonthStart(o.Month)
		if m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
		byMonth, ok := cells[o.Group]
		if !ok {
			byMonth = make(map[string]cell)
			cells[o.Group] = byMonth
		}
		c := byMonth[Label(m)]
		c.contents += o.Contents
		c.comments += o.Comments
		byMonth[Label(m)] = c
	}

	var months []string
	for _, m := range MonthRange(first, last) {
		months = append(months, Label(m))
	}

	groups := make([]string, 0, len(cells))
	for g := range cells {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	columns := append([]string{groupColumn}, months...)
	out := &Tables{
		Contents: table.New(columns...),
		Comments: table.New(columns...),
		Total:    table.New(columns...),
		Months:   months,
	}

	for _, g := range groups {
		contents := table.Record{groupColumn: g}
		comments := table.Record{groupColumn: g}
		total := table.Record{groupColumn: g}
		for _, label := range months {
			c := cells[g][label]
			contents[label] = c.contents
			comments[label] = c.comments
			total[label] = c.contents + c.comments
		}
		out.Contents.Append(contents)
		out.Comments.Append(comments)
		out.Total.Append(total)
	}

	return out, nil
}
