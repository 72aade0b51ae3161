package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tgpipe.yaml")
	content := `
data_dir: /data/conspira
columns:
  content: Text
keywords:
  keywords: [Trump, Biden, Kamala]
  max_rows_per_file: 500
scrape:
  channel: "@somechannel"
  delay: 2s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/data/conspira" {
		t.Errorf("Expected data dir from file, got %q", cfg.DataDir)
	}
	if cfg.Columns.Content != "Text" {
		t.Errorf("Expected content column Text, got %q", cfg.Columns.Content)
	}
	if cfg.Columns.Group != "Group" {
		t.Errorf("Expected untouched group column default, got %q", cfg.Columns.Group)
	}
	if diff := cmp.Diff([]string{"Trump", "Biden", "Kamala"}, cfg.Keywords.Keywords); diff != "" {
		t.Errorf("unexpected keywords (-want +got):\n%s", diff)
	}
	if cfg.Keywords.MaxRowsPerFile != 500 {
		t.Errorf("Expected 500 rows per file, got %d", cfg.Keywords.MaxRowsPerFile)
	}
	if cfg.Scrape.Delay != 2*time.Second {
		t.Errorf("Expected 2s delay, got %s", cfg.Scrape.Delay)
	}
}

func TestMergeOverridesOnlySetFields(t *testing.T) {
	cfg := Default()
	cfg.Keywords.Keywords = []string{"a"}

	err := cfg.Merge(Config{
		DataDir:  "/tmp/x",
		Sample:   Sample{Size: 50},
		Keywords: Keywords{Keywords: []string{"b", "c"}},
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if cfg.DataDir != "/tmp/x" {
		t.Errorf("Expected data dir override, got %q", cfg.DataDir)
	}
	if cfg.Sample.Size != 50 {
		t.Errorf("Expected sample size 50, got %d", cfg.Sample.Size)
	}
	if cfg.Sample.MinLength != 20 {
		t.Errorf("Expected default min length to survive, got %d", cfg.Sample.MinLength)
	}
	if diff := cmp.Diff([]string{"b", "c"}, cfg.Keywords.Keywords); diff != "" {
		t.Errorf("unexpected keywords (-want +got):\n%s", diff)
	}
}

func TestPath(t *testing.T) {
	cfg := &Config{DataDir: "/data"}

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "relative", input: "out.xlsx", expected: filepath.Join("/data", "out.xlsx")},
		{name: "absolute", input: "/elsewhere/out.xlsx", expected: "/elsewhere/out.xlsx"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfg.Path(tc.input); got != tc.expected {
				t.Errorf("Path(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	validScrape := Scrape{
		Channel: "@chan",
		Since:   "2019-01-01",
		Until:   "2023-01-01",
		Output:  "out.xlsx",
		Telegram: Telegram{
			AppID:   1234,
			AppHash: "abcd",
			Phone:   "+100",
		},
	}

	testCases := []struct {
		name    string
		check   func() error
		wantErr bool
	}{
		{name: "default columns", check: Default().Columns.Validate, wantErr: false},
		{name: "blank column", check: Columns{Group: " "}.Validate, wantErr: true},
		{name: "default combine", check: Default().Combine.Validate, wantErr: false},
		{name: "combine without keys", check: Combine{Extension: ".parquet", Output: "x"}.Validate, wantErr: true},
		{name: "combine bad extension", check: Combine{Extension: "parquet", Output: "x", DuplicateKeys: []string{"a"}}.Validate, wantErr: true},
		{name: "default summary", check: Default().Summary.Validate, wantErr: false},
		{name: "default sample", check: Default().Sample.Validate, wantErr: false},
		{name: "zero sample size", check: Sample{Input: "a", Output: "b"}.Validate, wantErr: true},
		{name: "default keywords have no keywords", check: Default().Keywords.Validate, wantErr: true},
		{name: "keywords ok", check: Keywords{Input: "a", OutputBase: "b", Extension: ".xlsx", Keywords: []string{"x"}, MaxRowsPerFile: 1}.Validate, wantErr: false},
		{name: "empty keyword", check: Keywords{Input: "a", OutputBase: "b", Extension: ".xlsx", Keywords: []string{""}, MaxRowsPerFile: 1}.Validate, wantErr: true},
		{name: "default links", check: Default().Links.Validate, wantErr: false},
		{name: "scrape ok", check: validScrape.Validate, wantErr: false},
		{name: "scrape reversed window", check: func() error {
			s := validScrape
			s.Since, s.Until = s.Until, s.Since
			return s.Validate()
		}, wantErr: true},
		{name: "scrape bad date", check: func() error {
			s := validScrape
			s.Since = "01/01/2019"
			return s.Validate()
		}, wantErr: true},
		{name: "scrape without sink", check: func() error {
			s := validScrape
			s.Output = ""
			return s.Validate()
		}, wantErr: true},
		{name: "scrape without credentials", check: func() error {
			s := validScrape
			s.Telegram.AppHash = ""
			return s.Validate()
		}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.check()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	s := Scrape{Since: "2020-02-29", Until: "2020-03-01"}
	since, until, err := s.Window()
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if !since.Equal(time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected since %s", since)
	}
	if until.Sub(since) != 24*time.Hour {
		t.Errorf("Expected a one day window, got %s", until.Sub(since))
	}
}
