package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tgpipe/internal/table"
)

func TestRunQuery(t *testing.T) {
	st := newFakeStore()
	tb := table.New("Group", "n")
	tb.Append(table.Record{"Group": "@a", "n": int64(2)})
	st.tables["data.parquet"] = tb

	testCases := []struct {
		name     string
		format   string
		contains string
		wantErr  bool
	}{
		{name: "json", format: "json", contains: `"Group": "@a"`},
		{name: "table", format: "table", contains: "@a"},
		{name: "unknown format", format: "xml", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runQuery(context.Background(), st, "data.parquet", "SELECT 1", tc.format, &out)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("runQuery failed: %v", err)
			}
			if !strings.Contains(out.String(), tc.contains) {
				t.Errorf("Expected %q in output:\n%s", tc.contains, out.String())
			}
		})
	}
}

func TestRenderEmptyJSON(t *testing.T) {
	var out bytes.Buffer
	if err := render(&out, table.New("a"), "json"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("Expected an empty array, got %q", out.String())
	}
}

func TestRunSchema(t *testing.T) {
	c, cleanup := SetupTestConfig(t)
	defer cleanup()

	st := newFakeStore()
	st.tables[c.Path("a.csv")] = table.New("Group", "Content")

	var out bytes.Buffer
	if err := runSchema(context.Background(), st, []string{"a.csv"}, &out); err != nil {
		t.Fatalf("runSchema failed: %v", err)
	}

	var got []SchemaOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if len(got) != 1 || got[0].ColumnCount != 2 || got[0].File != c.Path("a.csv") {
		t.Errorf("unexpected schema %+v", got)
	}
	if diff := cmp.Diff("Content", got[0].Columns[1].Name); diff != "" {
		t.Errorf("unexpected column (-want +got):\n%s", diff)
	}

	if err := runSchema(context.Background(), st, []string{"missing.csv"}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for a missing file")
	}
}
