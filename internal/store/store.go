// Package store reads and writes tabular files through an in-memory DuckDB
// database. Every pipeline step loads its input and persists its output here.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"tgpipe/internal/summary"
	"tgpipe/internal/table"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

type Store struct {
	conn     *sql.DB
	logger   *slog.Logger
	hasExcel bool
}

// Open starts an in-memory DuckDB database.
func Open(logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open DuckDB database", "error", err)
		}
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return &Store{conn: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// loadExcel makes read_xlsx and the xlsx COPY format available.
func (s *Store) loadExcel(ctx context.Context) error {
	if s.hasExcel {
		return nil
	}
	if _, err := s.conn.ExecContext(ctx, "LOAD excel;"); err != nil {
		if _, err = s.conn.ExecContext(ctx, "INSTALL excel; LOAD excel;"); err != nil {
			if s.logger != nil {
				s.logger.Error("Excel extension not available", "error", err)
			}
			return fmt.Errorf("failed to load excel extension: %w", err)
		}
	}
	s.hasExcel = true
	return nil
}

// source returns the table function expression that reads path.
func (s *Store) source(ctx context.Context, path string) (string, error) {
	lit := quoteLiteral(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return fmt.Sprintf("read_parquet(%s)", lit), nil
	case ".csv":
		return fmt.Sprintf("read_csv_auto(%s, header=true)", lit), nil
	case ".json", ".jsonl", ".ndjson":
		return fmt.Sprintf("read_json_auto(%s)", lit), nil
	case ".xlsx":
		if err := s.loadExcel(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("read_xlsx(%s, header=true)", lit), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// copyOptions returns the COPY ... TO options for the extension of path.
func (s *Store) copyOptions(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "FORMAT parquet", nil
	case ".csv":
		return "FORMAT csv, HEADER true", nil
	case ".json", ".jsonl", ".ndjson":
		return "FORMAT json", nil
	case ".xlsx":
		if err := s.loadExcel(ctx); err != nil {
			return "", err
		}
		return "FORMAT xlsx, HEADER true", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadTable loads a whole file into a Table. The format follows the extension.
func (s *Store) ReadTable(ctx context.Context, path string) (*table.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	src, err := s.source(ctx, path)
	if err != nil {
		return nil, err
	}

	t, err := s.query(ctx, "SELECT * FROM "+src)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to read table", "error", err, "path", path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if s.logger != nil {
		s.logger.Info("Read table", "path", path, "rows", t.Len(), "columns", len(t.Columns))
	}
	return t, nil
}

// File is one input file loaded by ReadDir.
type File struct {
	Name  string
	Table *table.Table
}

// ListFiles returns the names of the files in dir with extension ext, sorted.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadDir loads every file in dir with extension ext in name order.
// onFile, if set, is called after each file is read.
func (s *Store) ReadDir(ctx context.Context, dir, ext string, onFile func(done, total int)) ([]File, error) {
	names, err := ListFiles(dir, ext)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := s.ReadTable(ctx, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: name, Table: t})
		if onFile != nil {
			onFile(i+1, len(names))
		}
	}
	return files, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*table.Table, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTable(rows)
}

func scanTable(rows *sql.Rows) (*table.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := table.New(cols...)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		rec := make(table.Record, len(cols))
		for i, c := range cols {
			rec[c] = normalize(vals[i])
		}
		out.Rows = append(out.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize maps driver values onto the scalar set a Record holds. Nested
// values become compact JSON strings.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, time.Time:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Decimal:
		return x.Float64()
	case []byte:
		return string(x)
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// columnType picks the DuckDB type able to hold every value of a column.
func columnType(t *table.Table, col string) string {
	kind := ""
	for _, r := range t.Rows {
		var k string
		switch r[col].(type) {
		case nil:
			continue
		case bool:
			k = "BOOLEAN"
		case int, int64:
			k = "BIGINT"
		case float64:
			k = "DOUBLE"
		case time.Time:
			k = "TIMESTAMP"
		default:
			return "VARCHAR"
		}
		switch {
		case kind == "" || kind == k:
			kind = k
		case (kind == "BIGINT" && k == "DOUBLE") || (kind == "DOUBLE" && k == "BIGINT"):
			kind = "DOUBLE"
		default:
			return "VARCHAR"
		}
	}
	if kind == "" {
		return "VARCHAR"
	}
	return kind
}

func convert(v any, typ string) driver.Value {
	if v == nil {
		return nil
	}
	switch typ {
	case "BIGINT":
		if i, ok := v.(int); ok {
			return int64(i)
		}
		return v
	case "DOUBLE":
		switch x := v.(type) {
		case int:
			return float64(x)
		case int64:
			return float64(x)
		}
		return v
	case "TIMESTAMP":
		return v.(time.Time).UTC()
	case "VARCHAR":
		return table.String(v)
	default:
		return v
	}
}

// WriteTable persists t to path in the format given by its extension. An
// existing file is replaced.
func (s *Store) WriteTable(ctx context.Context, t *table.Table, path string) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("failed to write %s: table has no columns", path)
	}
	opts, err := s.copyOptions(ctx, path)
	if err != nil {
		return err
	}

	conn, err := s.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	name := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	types := make([]string, len(t.Columns))
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		types[i] = columnType(t, c)
		defs[i] = quoteIdent(c) + " " + types[i]
	}

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+name)
	}()

	err = conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", name)
		if err != nil {
			return err
		}
		row := make([]driver.Value, len(t.Columns))
		for _, r := range t.Rows {
			for i, c := range t.Columns {
				row[i] = convert(r[c], types[i])
			}
			if err := appender.AppendRow(row...); err != nil {
				_ = appender.Close()
				return err
			}
		}
		return appender.Close()
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to stage rows", "error", err, "path", path, "rows", t.Len())
		}
		return fmt.Errorf("failed to stage rows: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	// The xlsx writer refuses to overwrite.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("COPY %s TO %s (%s)", name, quoteLiteral(path), opts)); err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to write table", "error", err, "path", path)
		}
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if s.logger != nil {
		s.logger.Info("Wrote table", "path", path, "rows", t.Len())
	}
	return nil
}

// SplitNames returns the file names WriteSplit uses for parts files:
// base_unique.ext for a single file, base_part_1.ext ... otherwise.
func SplitNames(base, ext string, parts int) []string {
	if parts <= 1 {
		return []string{base + "_unique" + ext}
	}
	names := make([]string, parts)
	for i := range names {
		names[i] = fmt.Sprintf("%s_part_%d%s", base, i+1, ext)
	}
	return names
}

// Parts is the number of files needed for rows under a per-file ceiling.
// It is at least one.
func Parts(rows, maxRows int) int {
	if rows <= 0 || maxRows <= 0 {
		return 1
	}
	return (rows + maxRows - 1) / maxRows
}

// WriteSplit writes t into dir as consecutive chunks of at most maxRows rows
// and returns the written paths.
func (s *Store) WriteSplit(ctx context.Context, t *table.Table, dir, base, ext string, maxRows int) ([]string, error) {
	if maxRows <= 0 {
		return nil, fmt.Errorf("max rows per file must be positive, got %d", maxRows)
	}

	names := SplitNames(base, ext, Parts(t.Len(), maxRows))
	paths := make([]string, 0, len(names))
	for i, name := range names {
		lo := i * maxRows
		hi := min(lo+maxRows, t.Len())
		chunk := &table.Table{Columns: t.Columns, Rows: t.Rows[lo:hi]}

		path := filepath.Join(dir, name)
		if err := s.WriteTable(ctx, chunk, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// GroupMonthCounts aggregates a file per group and calendar month: the number
// of rows and the sum of the comments column. Rows without a group or date
// are ignored.
func (s *Store) GroupMonthCounts(ctx context.Context, path, groupCol, dateCol, commentsCol string) ([]summary.Observation, error) {
	src, err := s.source(ctx, path)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT
			CAST(%[1]s AS VARCHAR) AS grp,
			date_trunc('month', CAST(%[2]s AS TIMESTAMP)) AS month,
			COUNT(*) AS contents,
			CAST(COALESCE(SUM(CAST(%[3]s AS BIGINT)), 0) AS BIGINT) AS comments
		FROM %[4]s
		WHERE %[1]s IS NOT NULL AND %[2]s IS NOT NULL
		GROUP BY grp, month
		ORDER BY grp, month
	`, quoteIdent(groupCol), quoteIdent(dateCol), quoteIdent(commentsCol), src)

	rows, err := s.conn.QueryContext(ctx, q)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Group/month aggregation failed", "error", err, "path", path)
		}
		return nil, fmt.Errorf("failed to aggregate %s: %w", path, err)
	}
	defer rows.Close()

	var obs []summary.Observation
	for rows.Next() {
		var o summary.Observation
		if err := rows.Scan(&o.Group, &o.Month, &o.Contents, &o.Comments); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return obs, nil
}

// ColumnInfo describes one column of a file.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Describe returns the columns DuckDB infers for path.
func (s *Store) Describe(ctx context.Context, path string) ([]ColumnInfo, error) {
	src, err := s.source(ctx, path)
	if err != nil {
		return nil, err
	}
	t, err := s.query(ctx, "DESCRIBE SELECT * FROM "+src)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", path, err)
	}

	cols := make([]ColumnInfo, 0, t.Len())
	for _, r := range t.Rows {
		cols = append(cols, ColumnInfo{
			Name:     table.String(r["column_name"]),
			Type:     table.String(r["column_type"]),
			Nullable: table.String(r["null"]) == "YES",
		})
	}
	return cols, nil
}

// Query runs sql with the file at path exposed as the view "data".
func (s *Store) Query(ctx context.Context, path, sqlQuery string) (*table.Table, error) {
	src, err := s.source(ctx, path)
	if err != nil {
		return nil, err
	}

	conn, err := s.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "CREATE OR REPLACE TEMP VIEW data AS SELECT * FROM "+src); err != nil {
		return nil, fmt.Errorf("failed to create view: %w", err)
	}

	rows, err := conn.QueryContext(ctx, sqlQuery)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Query failed", "error", err, "path", path, "query", sqlQuery)
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanTable(rows)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
