package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"tgpipe/internal/config"
	"tgpipe/internal/store"
	"tgpipe/internal/summary"
	"tgpipe/internal/table"
)

// fakeStore keeps files in memory, keyed by path.
type fakeStore struct {
	tables   map[string]*table.Table
	files    []store.File
	obs      []summary.Observation
	obsErr   error
	written  map[string]*table.Table
	order    []string
	queries  []string
	writeErr error
	closed   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:  make(map[string]*table.Table),
		written: make(map[string]*table.Table),
	}
}

func (f *fakeStore) ReadTable(ctx context.Context, path string) (*table.Table, error) {
	t, ok := f.tables[path]
	if !ok {
		return nil, fmt.Errorf("no such file %s", path)
	}
	return t, nil
}

func (f *fakeStore) ReadDir(ctx context.Context, dir, ext string, onFile func(done, total int)) ([]store.File, error) {
	for i := range f.files {
		if onFile != nil {
			onFile(i+1, len(f.files))
		}
	}
	return f.files, nil
}

func (f *fakeStore) WriteTable(ctx context.Context, t *table.Table, path string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written[path] = t
	f.order = append(f.order, path)
	return nil
}

func (f *fakeStore) WriteSplit(ctx context.Context, t *table.Table, dir, base, ext string, maxRows int) ([]string, error) {
	names := store.SplitNames(base, ext, store.Parts(t.Len(), maxRows))
	var paths []string
	for i, name := range names {
		lo := i * maxRows
		hi := min(lo+maxRows, t.Len())
		path := filepath.Join(dir, name)
		if err := f.WriteTable(ctx, &table.Table{Columns: t.Columns, Rows: t.Rows[lo:hi]}, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (f *fakeStore) GroupMonthCounts(ctx context.Context, path, groupCol, dateCol, commentsCol string) ([]summary.Observation, error) {
	if _, ok := f.tables[path]; !ok {
		return nil, fmt.Errorf("no such file %s", path)
	}
	return f.obs, f.obsErr
}

func (f *fakeStore) Describe(ctx context.Context, path string) ([]store.ColumnInfo, error) {
	t, ok := f.tables[path]
	if !ok {
		return nil, fmt.Errorf("no such file %s", path)
	}
	cols := make([]store.ColumnInfo, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = store.ColumnInfo{Name: c, Type: "VARCHAR", Nullable: true}
	}
	return cols, nil
}

func (f *fakeStore) Query(ctx context.Context, path, sqlQuery string) (*table.Table, error) {
	f.queries = append(f.queries, sqlQuery)
	return f.ReadTable(ctx, path)
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

var errWrite = errors.New("disk full")

// SetupTestConfig installs a default configuration rooted at a scratch
// directory and restores the package state afterwards.
func SetupTestConfig(t *testing.T) (*config.Config, func()) {
	t.Helper()

	prevCfg, prevLogger := cfg, logger
	c := config.Default()
	c.DataDir = t.TempDir()
	cfg = c
	logger = nil

	cleanup := func() {
		cfg, logger = prevCfg, prevLogger
	}
	return c, cleanup
}

func messages(rows ...table.Record) *table.Table {
	t := table.New("Group", "Message ID", "Content", "Date", "Comments", "Comments List", "Media")
	for _, r := range rows {
		rec := table.Record{}
		for _, c := range t.Columns {
			rec[c] = r[c]
		}
		t.Append(rec)
	}
	return t
}
