// Package config holds the explicit configuration for every pipeline step.
//
// A Config starts from Default, is overlaid with an optional YAML file and then
// with command-line overrides. Each step validates its own section before it
// runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout of scrape window bounds.
const DateLayout = "2006-01-02"

// Columns names the dataset columns the steps read and write.
type Columns struct {
	Group        string `yaml:"group"`
	MessageID    string `yaml:"message_id"`
	Content      string `yaml:"content"`
	Date         string `yaml:"date"`
	Comments     string `yaml:"comments"`
	CommentsList string `yaml:"comments_list"`
	Media        string `yaml:"media"`
}

// Combine configures the combine step.
type Combine struct {
	Extension     string   `yaml:"extension"`
	Output        string   `yaml:"output"`
	DuplicateKeys []string `yaml:"duplicate_keys"`
}

// Summary configures the group/month summary step.
type Summary struct {
	Input      string `yaml:"input"`
	OutputBase string `yaml:"output_base"`
}

// Sample configures proportional sampling.
type Sample struct {
	Input     string `yaml:"input"`
	Output    string `yaml:"output"`
	Size      int    `yaml:"size"`
	MinLength int    `yaml:"min_length"`
	// Seed of the random source; 0 picks a fresh seed per run.
	Seed uint64 `yaml:"seed"`
}

// Keywords configures keyword tagging.
type Keywords struct {
	Input          string   `yaml:"input"`
	OutputBase     string   `yaml:"output_base"`
	Extension      string   `yaml:"extension"`
	Keywords       []string `yaml:"keywords"`
	MaxRowsPerFile int      `yaml:"max_rows_per_file"`
}

// Links configures link extraction.
type Links struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Top    int    `yaml:"top"`
}

// Telegram holds MTProto credentials.
type Telegram struct {
	AppID       int    `yaml:"app_id"`
	AppHash     string `yaml:"app_hash"`
	Phone       string `yaml:"phone"`
	Password    string `yaml:"password"`
	SessionFile string `yaml:"session_file"`
	// LogLevel of the MTProto client log, written next to the pipeline log.
	LogLevel string `yaml:"log_level"`
}

// Scrape configures the channel scraper.
type Scrape struct {
	Channel string `yaml:"channel"`
	// Since and Until bound the window, both exclusive, as YYYY-MM-DD in UTC.
	Since  string        `yaml:"since"`
	Until  string        `yaml:"until"`
	Search string        `yaml:"search"`
	Delay  time.Duration `yaml:"delay"`

	// Output is a local tabular file. When empty the Google sheet is used.
	Output           string `yaml:"output"`
	SpreadsheetID    string `yaml:"spreadsheet_id"`
	SpreadsheetTitle string `yaml:"spreadsheet_title"`
	CredentialsFile  string `yaml:"credentials_file"`

	Telegram Telegram `yaml:"telegram"`
}

// Config is the full pipeline configuration.
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	Columns  Columns  `yaml:"columns"`
	Combine  Combine  `yaml:"combine"`
	Summary  Summary  `yaml:"summary"`
	Sample   Sample   `yaml:"sample"`
	Keywords Keywords `yaml:"keywords"`
	Links    Links    `yaml:"links"`
	Scrape   Scrape   `yaml:"scrape"`
}

// Default returns the configuration matching the scraper's output layout.
func Default() *Config {
	return &Config{
		DataDir: ".",
		Columns: Columns{
			Group:        "Group",
			MessageID:    "Message ID",
			Content:      "Content",
			Date:         "Date",
			Comments:     "Comments",
			CommentsList: "Comments List",
			Media:        "Media",
		},
		Combine: Combine{
			Extension:     ".parquet",
			Output:        "unified_data_telegram.parquet",
			DuplicateKeys: []string{"Group", "Message ID"},
		},
		Summary: Summary{
			Input:      "unified_data_telegram.parquet",
			OutputBase: "resume",
		},
		Sample: Sample{
			Input:     "unified_data_telegram.parquet",
			Output:    "sampled_data.xlsx",
			Size:      10000,
			MinLength: 20,
		},
		Keywords: Keywords{
			Input:          "unified_data_telegram.parquet",
			OutputBase:     "filtered_keywords",
			Extension:      ".xlsx",
			MaxRowsPerFile: 1000000,
		},
		Links: Links{
			Input:  "unified_data_telegram.parquet",
			Output: "telegram_links.xlsx",
			Top:    15,
		},
		Scrape: Scrape{
			Since:            "2019-01-01",
			Until:            "2023-01-01",
			Delay:            time.Second,
			SpreadsheetTitle: "Telegram Scrape",
			Telegram: Telegram{
				SessionFile: "telegram.session",
				LogLevel:    "warn",
			},
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Merge overlays the non-zero fields of override onto c.
func (c *Config) Merge(override Config) error {
	if err := mergo.Merge(c, override, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// Path resolves name against the data directory unless it is absolute.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func (c Columns) Validate() error {
	fields := map[string]string{
		"group":         c.Group,
		"message_id":    c.MessageID,
		"content":       c.Content,
		"date":          c.Date,
		"comments":      c.Comments,
		"comments_list": c.CommentsList,
		"media":         c.Media,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("column name %s cannot be empty", name)
		}
	}
	return nil
}

func (c Combine) Validate() error {
	if !strings.HasPrefix(c.Extension, ".") {
		return fmt.Errorf("combine extension must start with a dot, got %q", c.Extension)
	}
	if c.Output == "" {
		return errors.New("combine output file is required")
	}
	if len(c.DuplicateKeys) == 0 {
		return errors.New("at least one duplicate key column is required")
	}
	return nil
}

func (s Summary) Validate() error {
	if s.Input == "" {
		return errors.New("summary input file is required")
	}
	if s.OutputBase == "" {
		return errors.New("summary output base name is required")
	}
	return nil
}

func (s Sample) Validate() error {
	if s.Input == "" || s.Output == "" {
		return errors.New("sample input and output files are required")
	}
	if s.Size <= 0 {
		return fmt.Errorf("sample size must be positive, got %d", s.Size)
	}
	if s.MinLength < 0 {
		return fmt.Errorf("minimum text length cannot be negative, got %d", s.MinLength)
	}
	return nil
}

func (k Keywords) Validate() error {
	if k.Input == "" || k.OutputBase == "" {
		return errors.New("keywords input file and output base name are required")
	}
	if len(k.Keywords) == 0 {
		return errors.New("at least one keyword is required")
	}
	for _, kw := range k.Keywords {
		if kw == "" {
			return errors.New("keywords cannot be empty strings")
		}
	}
	if k.MaxRowsPerFile <= 0 {
		return fmt.Errorf("max rows per file must be positive, got %d", k.MaxRowsPerFile)
	}
	if !strings.HasPrefix(k.Extension, ".") {
		return fmt.Errorf("keywords extension must start with a dot, got %q", k.Extension)
	}
	return nil
}

func (l Links) Validate() error {
	if l.Input == "" || l.Output == "" {
		return errors.New("links input and output files are required")
	}
	if l.Top < 0 {
		return fmt.Errorf("top cannot be negative, got %d", l.Top)
	}
	return nil
}

// Window parses the scrape window bounds as UTC midnights.
func (s Scrape) Window() (since, until time.Time, err error) {
	since, err = time.ParseInLocation(DateLayout, s.Since, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid since date %q: %w", s.Since, err)
	}
	until, err = time.ParseInLocation(DateLayout, s.Until, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid until date %q: %w", s.Until, err)
	}
	return since, until, nil
}

func (s Scrape) Validate() error {
	if strings.TrimSpace(s.Channel) == "" {
		return errors.New("scrape channel is required")
	}
	since, until, err := s.Window()
	if err != nil {
		return err
	}
	if !since.Before(until) {
		return fmt.Errorf("since (%s) must be before until (%s)", s.Since, s.Until)
	}
	if s.Delay < 0 {
		return fmt.Errorf("delay cannot be negative, got %s", s.Delay)
	}
	if s.Output == "" && s.CredentialsFile == "" {
		return errors.New("either an output file or a Google credentials file is required")
	}
	return s.Telegram.Validate()
}

func (t Telegram) Validate() error {
	if t.AppID <= 0 || t.AppHash == "" {
		return errors.New("telegram app_id and app_hash are required")
	}
	if t.Phone == "" {
		return errors.New("telegram phone is required")
	}
	return nil
}
