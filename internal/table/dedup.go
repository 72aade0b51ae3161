package table

import "strings"

// Dedup removes records that share the same values for keys, keeping the first
// occurrence in input order. It returns the deduplicated table and the number
// of records removed.
func Dedup(t *Table, keys []string) (*Table, int, error) {
	if err := t.Require(keys...); err != nil {
		return nil, 0, err
	}

	out := New(t.Columns...)
	seen := make(map[string]struct{}, len(t.Rows))
	removed := 0

	var b strings.Builder
	for _, r := range t.Rows {
		b.Reset()
		for i, k := range keys {
			if i > 0 {
				b.WriteByte('\x1f')
			}
			b.WriteString(Key(r[k]))
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, r)
	}

	return out, removed, nil
}
