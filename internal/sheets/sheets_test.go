package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

type call struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type fakeSheetsAPI struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets":
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "new-id"})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/"),
			"sheets":        []any{map[string]any{"properties": map[string]any{"title": "Sheet 1"}}},
		})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}
}

func openFake(t *testing.T, id string) (*Sheet, *fakeSheetsAPI) {
	t.Helper()

	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	s, err := Open(context.Background(), id, "Telegram Scrape", nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, api
}

func TestOpenExisting(t *testing.T) {
	s, api := openFake(t, "abc")

	if s.id != "abc" || s.tab != "Sheet 1" {
		t.Errorf("unexpected sheet id=%q tab=%q", s.id, s.tab)
	}
	if len(api.calls) != 1 || api.calls[0].Method != http.MethodGet {
		t.Errorf("Expected a single GET, got %+v", api.calls)
	}
	if s.URL() != "https://docs.google.com/spreadsheets/d/abc" {
		t.Errorf("unexpected url %s", s.URL())
	}
}

func TestOpenCreates(t *testing.T) {
	s, api := openFake(t, "")

	if s.id != "new-id" {
		t.Errorf("Expected created spreadsheet id, got %q", s.id)
	}
	if api.calls[0].Method != http.MethodPost || !strings.Contains(api.calls[0].Body, "Telegram Scrape") {
		t.Errorf("Expected create request with title, got %+v", api.calls[0])
	}
}

func TestResetAndWriteRow(t *testing.T) {
	s, api := openFake(t, "abc")
	ctx := context.Background()

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := s.WriteRow(ctx, 2, []any{"#ID00001", "@chan", 7}); err != nil {
		t.Fatalf("WriteRow failed: %v", err)
	}

	clear := api.calls[1]
	if clear.Method != http.MethodPost || clear.Path != "/v4/spreadsheets/abc/values/'Sheet 1':clear" {
		t.Errorf("unexpected clear call %+v", clear)
	}

	update := api.calls[2]
	if update.Method != http.MethodPut || update.Path != "/v4/spreadsheets/abc/values/'Sheet 1'!A2:C2" {
		t.Errorf("unexpected update call %+v", update)
	}
	if !strings.Contains(update.Query, "valueInputOption=RAW") {
		t.Errorf("Expected RAW input option, got %q", update.Query)
	}

	var sent struct {
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal([]byte(update.Body), &sent); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	want := [][]any{{"#ID00001", "@chan", float64(7)}}
	if diff := cmp.Diff(want, sent.Values); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestColumnName(t *testing.T) {
	testCases := []struct {
		n        int
		expected string
	}{
		{n: 1, expected: "A"},
		{n: 12, expected: "L"},
		{n: 26, expected: "Z"},
		{n: 27, expected: "AA"},
		{n: 52, expected: "AZ"},
		{n: 703, expected: "AAA"},
	}

	for _, tc := range testCases {
		if got := ColumnName(tc.n); got != tc.expected {
			t.Errorf("ColumnName(%d) = %q, want %q", tc.n, got, tc.expected)
		}
	}
}

func TestRowRange(t *testing.T) {
	if got := RowRange("Bob's", 5, 12); got != "'Bob''s'!A5:L5" {
		t.Errorf("unexpected range %q", got)
	}
}
