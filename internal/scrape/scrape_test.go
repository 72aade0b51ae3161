package scrape

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type sliceIterator struct {
	msgs  []Message
	pos   int
	calls int
	err   error
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	it.calls++
	if it.pos >= len(it.msgs) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Value() Message { return it.msgs[it.pos-1] }
func (it *sliceIterator) Err() error     { return it.err }

type fakeFeed struct {
	history     *sliceIterator
	replies     map[int][]Message
	failReplies map[int]bool
	searched    string
}

func (f *fakeFeed) History(ctx context.Context, channel, search string) (Iterator, error) {
	f.searched = search
	return f.history, nil
}

func (f *fakeFeed) Replies(ctx context.Context, channel string, msgID int) ([]Message, error) {
	if f.failReplies[msgID] {
		return nil, errors.New("replies disabled")
	}
	return f.replies[msgID], nil
}

type failingSheet struct {
	*TableSheet
	failAt int
}

func (s *failingSheet) WriteRow(ctx context.Context, row int, values []any) error {
	if row == s.failAt {
		return errors.New("quota exceeded")
	}
	return s.TableSheet.WriteRow(ctx, row, values)
}

func day(d int) time.Time {
	return time.Date(2022, 1, d, 12, 0, 0, 0, time.UTC)
}

func newFeed() *fakeFeed {
	return &fakeFeed{
		history: &sliceIterator{msgs: []Message{
			{ID: 50, Date: day(20), Text: "too new"},
			{ID: 40, Date: time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC), Text: "on the upper bound"},
			{ID: 30, Date: day(8), Text: "third", SenderID: -1000000000123, Views: 10, Forwards: 2, HasMedia: true,
				Reactions: []Reaction{{Emoji: "👍", Count: 3}, {Emoji: "🔥", Count: 1}}},
			{ID: 20, Date: day(5), Text: "second", PostAuthor: "Editor"},
			{ID: 10, Date: time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), Text: "on the lower bound"},
			{ID: 5, Date: day(1), Text: "too old"},
		}},
		replies: map[int][]Message{
			30: {{ID: 301, Date: day(9), Text: "first reply, with comma"}, {ID: 302, Date: day(9), Text: "second reply"}},
		},
		failReplies: map[int]bool{20: true},
	}
}

var job = Job{
	Channel: "@somechannel",
	Since:   time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC),
	Until:   time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC),
	Search:  "term",
}

func TestRun(t *testing.T) {
	feed := newFeed()
	sheet := NewTableSheet()
	var out bytes.Buffer

	res, err := New(feed, sheet, WithDelay(0), WithOutput(&out)).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Scraped != 2 || res.Skipped != 2 || res.ReplyFailures != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if feed.searched != "term" {
		t.Errorf("Expected search term to reach the feed, got %q", feed.searched)
	}
	if feed.history.calls != 5 {
		t.Errorf("Expected iteration to stop at the lower bound after 5 calls, got %d", feed.history.calls)
	}
	if sheet.Len() != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", sheet.Len())
	}

	wantHeader := []any{"Scraping ID", "Group", "Author ID", "Content", "Date", "Message ID", "Author", "Views", "Reactions", "Shares", "Media", "Comments"}
	if diff := cmp.Diff(wantHeader, sheet.Row(1)); diff != "" {
		t.Errorf("unexpected header (-want +got):\n%s", diff)
	}

	wantFirst := []any{
		"#ID00001", "@somechannel", int64(-1000000000123), "third", "2022-01-08 12:00:00", 30, "", 10,
		"👍 3 🔥 1 ", 2, "https://t.me/somechannel/30", "first reply, with comma;\nsecond reply",
	}
	if diff := cmp.Diff(wantFirst, sheet.Row(2)); diff != "" {
		t.Errorf("unexpected first row (-want +got):\n%s", diff)
	}

	wantSecond := []any{
		"#ID00002", "@somechannel", int64(0), "second", "2022-01-05 12:00:00", 20, "Editor", 0,
		"", 0, NoMedia, UnavailablePlaceholder,
	}
	if diff := cmp.Diff(wantSecond, sheet.Row(3)); diff != "" {
		t.Errorf("unexpected second row (-want +got):\n%s", diff)
	}

	printed := out.String()
	for _, line := range []string{"Item 00001 completed!", "Id: 00030.", "Item 00002 completed!", "#Concluded! #00002 posts were scraped!"} {
		if !strings.Contains(printed, line) {
			t.Errorf("Expected output to contain %q, got:\n%s", line, printed)
		}
	}
}

func TestRunReplaysIntoTable(t *testing.T) {
	sheet := NewTableSheet()
	if _, err := New(newFeed(), sheet, WithDelay(0), WithOutput(&bytes.Buffer{})).Run(context.Background(), job); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	tbl, err := sheet.Table()
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if diff := cmp.Diff(Header, tbl.Columns); diff != "" {
		t.Errorf("unexpected columns (-want +got):\n%s", diff)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", tbl.Len())
	}
	if tbl.Rows[0]["Message ID"] != int64(30) || tbl.Rows[1]["Message ID"] != int64(20) {
		t.Errorf("Expected message ids 30 and 20, got %v and %v", tbl.Rows[0]["Message ID"], tbl.Rows[1]["Message ID"])
	}
}

func TestRunClearsPreviousRows(t *testing.T) {
	sheet := NewTableSheet()
	_ = sheet.WriteRow(context.Background(), 10, []any{"stale"})

	if _, err := New(newFeed(), sheet, WithDelay(0), WithOutput(&bytes.Buffer{})).Run(context.Background(), job); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sheet.Row(10) != nil {
		t.Error("Expected stale rows to be cleared")
	}
}

func TestRunSheetFailure(t *testing.T) {
	sheet := &failingSheet{TableSheet: NewTableSheet(), failAt: 3}

	res, err := New(newFeed(), sheet, WithDelay(0), WithOutput(&bytes.Buffer{})).Run(context.Background(), job)
	if err == nil {
		t.Fatal("Expected error when the sheet rejects a row")
	}
	if res.Scraped != 1 {
		t.Errorf("Expected 1 row before the failure, got %d", res.Scraped)
	}
}

func TestRunHistoryError(t *testing.T) {
	feed := newFeed()
	feed.history.msgs = nil
	feed.history.err = errors.New("flood wait")

	_, err := New(feed, NewTableSheet(), WithDelay(0), WithOutput(&bytes.Buffer{})).Run(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "flood wait") {
		t.Errorf("Expected history error, got %v", err)
	}
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newFeed(), NewTableSheet(), WithDelay(time.Hour), WithOutput(&bytes.Buffer{})).Run(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDigest(t *testing.T) {
	testCases := []struct {
		name     string
		replies  []Message
		err      error
		expected string
	}{
		{name: "no replies", replies: nil, expected: ""},
		{name: "keeps commas", replies: []Message{{Text: "a, b"}, {Text: "c"}}, expected: "a, b;\nc"},
		{name: "failure", err: errors.New("boom"), expected: UnavailablePlaceholder},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Digest(tc.replies, tc.err).String(); got != tc.expected {
				t.Errorf("Digest() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestChannelName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "@chan", expected: "chan"},
		{input: "chan", expected: "chan"},
		{input: "https://t.me/chan/", expected: "chan"},
		{input: " t.me/chan ", expected: "chan"},
	}

	for _, tc := range testCases {
		if got := ChannelName(tc.input); got != tc.expected {
			t.Errorf("ChannelName(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestTableSheetRejectsRowZero(t *testing.T) {
	if err := NewTableSheet().WriteRow(context.Background(), 0, nil); err == nil {
		t.Error("Expected error for row 0")
	}
	if _, err := NewTableSheet().Table(); err == nil {
		t.Error("Expected error for a sheet without header")
	}
}
