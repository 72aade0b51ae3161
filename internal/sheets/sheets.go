// Package sheets writes scrape rows into a Google spreadsheet, one range
// update per row.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Sheet is the first tab of a spreadsheet.
type Sheet struct {
	srv    *gsheets.Service
	id     string
	tab    string
	logger *slog.Logger
}

// Open connects to the spreadsheet with the given id, or creates one named
// title when id is empty. Writes go to its first tab.
func Open(ctx context.Context, id, title string, logger *slog.Logger, opts ...option.ClientOption) (*Sheet, error) {
	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	if id == "" {
		created, err := srv.Spreadsheets.Create(&gsheets.Spreadsheet{
			Properties: &gsheets.SpreadsheetProperties{Title: title},
		}).Context(ctx).Do()
		if err != nil {
			if logger != nil {
				logger.Error("Failed to create spreadsheet", "error", err, "title", title)
			}
			return nil, fmt.Errorf("failed to create spreadsheet %q: %w", title, err)
		}
		id = created.SpreadsheetId
		if logger != nil {
			logger.Info("Created spreadsheet", "id", id, "title", title)
		}
	}

	ss, err := srv.Spreadsheets.Get(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", id, err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", id)
	}

	return &Sheet{
		srv:    srv,
		id:     id,
		tab:    ss.Sheets[0].Properties.Title,
		logger: logger,
	}, nil
}

// OpenWithCredentials opens a spreadsheet using a service account or OAuth
// credentials file.
func OpenWithCredentials(ctx context.Context, credentialsFile, id, title string, logger *slog.Logger) (*Sheet, error) {
	return Open(ctx, id, title, logger,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
}

func (s *Sheet) URL() string {
	return "https://docs.google.com/spreadsheets/d/" + s.id
}

// Reset clears every value on the tab.
func (s *Sheet) Reset(ctx context.Context) error {
	_, err := s.srv.Spreadsheets.Values.Clear(s.id, quoteTab(s.tab), &gsheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.tab, err)
	}
	return nil
}

// WriteRow replaces row with values, starting at column A.
func (s *Sheet) WriteRow(ctx context.Context, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	rng := RowRange(s.tab, row, len(values))
	_, err := s.srv.Spreadsheets.Values.Update(s.id, rng, &gsheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to update sheet row", "error", err, "range", rng)
		}
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// RowRange is the A1 range covering width cells of row on tab.
func RowRange(tab string, row, width int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteTab(tab), row, ColumnName(width), row)
}

// ColumnName converts a 1-based column number to its letters: 1 is A, 27 is AA.
func ColumnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
