// Package links finds t.me links in message content and counts how often each
// channel is referenced.
package links

import (
	"regexp"
	"sort"

	"tgpipe/internal/table"
)

// Output columns.
const (
	LinkColumn      = "Telegram Link"
	FrequencyColumn = "Frequency"
)

var (
	linkPattern = regexp.MustCompile(`https?://t\.me/[^\s]+`)
	basePattern = regexp.MustCompile(`^https?://t\.me/[\p{L}\p{N}_+]+`)
)

// Count is a normalised link and the number of times it occurs.
type Count struct {
	Link      string
	Frequency int
}

// Extract returns every t.me link in text, up to the next whitespace.
func Extract(text string) []string {
	return linkPattern.FindAllString(text, -1)
}

// Normalize cuts a link down to its channel part, dropping message ids, query
// strings and trailing punctuation. ok is false when no channel part matches.
func Normalize(link string) (base string, ok bool) {
	base = basePattern.FindString(link)
	return base, base != ""
}

// Tally extracts and normalises the links in column col of every row and
// counts them. The result is ordered by frequency, most frequent first; ties
// keep the order in which links were first seen.
func Tally(t *table.Table, col string) ([]Count, error) {
	if err := t.Require(col); err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var counts []Count
	for _, r := range t.Rows {
		for _, link := range Extract(table.String(r[col])) {
			base, ok := Normalize(link)
			if !ok {
				continue
			}
			i, seen := index[base]
			if !seen {
				i = len(counts)
				index[base] = i
				counts = append(counts, Count{Link: base})
			}
			counts[i].Frequency++
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Frequency > counts[j].Frequency
	})
	return counts, nil
}

// ToTable renders counts with the Telegram Link and Frequency columns.
func ToTable(counts []Count) *table.Table {
	out := table.New(LinkColumn, FrequencyColumn)
	for _, c := range counts {
		out.Append(table.Record{LinkColumn: c.Link, FrequencyColumn: int64(c.Frequency)})
	}
	return out
}
