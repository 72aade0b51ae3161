// Package scrape copies a channel's message history into a spreadsheet, one
// row per message with a digest of its replies.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DateLayout formats message dates in the sheet.
	DateLayout = "2006-01-02 15:04:05"

	// UnavailablePlaceholder replaces the reply digest when replies could not
	// be fetched.
	UnavailablePlaceholder = "possible adjustment"

	// NoMedia marks a message without an attachment.
	NoMedia = "no media"

	replySeparator = ";\n"
)

// Header is the first sheet row.
var Header = []string{
	"Scraping ID", "Group", "Author ID", "Content", "Date", "Message ID",
	"Author", "Views", "Reactions", "Shares", "Media", "Comments",
}

type Reaction struct {
	Emoji string
	Count int
}

// Message is the part of a channel post the sheet records.
type Message struct {
	ID         int
	Date       time.Time
	SenderID   int64
	Text       string
	PostAuthor string
	Views      int
	Forwards   int
	HasMedia   bool
	Reactions  []Reaction
}

// Iterator walks a message history, newest first.
type Iterator interface {
	Next(ctx context.Context) bool
	Value() Message
	Err() error
}

// Feed is the remote message source.
type Feed interface {
	// History iterates the channel's messages, newest first. A non-empty
	// search restricts it to messages matching the term.
	History(ctx context.Context, channel, search string) (Iterator, error)
	// Replies returns the replies to one message.
	Replies(ctx context.Context, channel string, msgID int) ([]Message, error)
}

// Sheet receives rows. Rows are numbered from 1; row 1 holds the header.
type Sheet interface {
	Reset(ctx context.Context) error
	WriteRow(ctx context.Context, row int, values []any) error
}

// Job selects what to scrape. Only messages strictly between Since and Until
// are recorded.
type Job struct {
	Channel string
	Since   time.Time
	Until   time.Time
	Search  string
}

// Result summarises a run.
type Result struct {
	Scraped int
	// Skipped counts messages newer than the window.
	Skipped int
	// ReplyFailures counts messages whose replies could not be fetched.
	ReplyFailures int
}

// ReplyDigest is the joined text of a message's replies, or the marker that
// they could not be fetched.
type ReplyDigest struct {
	Text      string
	Available bool
}

func (d ReplyDigest) String() string {
	if !d.Available {
		return UnavailablePlaceholder
	}
	return d.Text
}

// Digest joins reply texts with ";\n", or returns an unavailable digest if err
// is set. Commas inside a reply are kept as written, so a reply containing ", "
// differs from sheets that split on every comma-space.
func Digest(replies []Message, err error) ReplyDigest {
	if err != nil {
		return ReplyDigest{}
	}
	texts := make([]string, len(replies))
	for i, r := range replies {
		texts[i] = r.Text
	}
	return ReplyDigest{Text: strings.Join(texts, replySeparator), Available: true}
}

// ChannelName strips the @ prefix or t.me URL from a channel reference.
func ChannelName(channel string) string {
	name := strings.TrimSpace(channel)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		name = strings.TrimPrefix(name, prefix)
	}
	name = strings.TrimPrefix(name, "@")
	return strings.Trim(name, "/")
}

// ScrapingID labels the index-th scraped message.
func ScrapingID(index int) string {
	return fmt.Sprintf("#ID%05d", index)
}

// MediaURL links to the message when it has an attachment.
func MediaURL(channel string, msg Message) string {
	if !msg.HasMedia {
		return NoMedia
	}
	return fmt.Sprintf("https://t.me/%s/%d", ChannelName(channel), msg.ID)
}

// ReactionString renders reactions as "<emoji> <count> " pairs. It is empty
// when there are none.
func ReactionString(reactions []Reaction) string {
	var b strings.Builder
	for _, r := range reactions {
		fmt.Fprintf(&b, "%s %d ", r.Emoji, r.Count)
	}
	return b.String()
}

// Row builds the sheet row for the index-th message, in Header order.
func Row(index int, channel string, msg Message, replies ReplyDigest) []any {
	return []any{
		ScrapingID(index),
		channel,
		msg.SenderID,
		msg.Text,
		msg.Date.UTC().Format(DateLayout),
		msg.ID,
		msg.PostAuthor,
		msg.Views,
		ReactionString(msg.Reactions),
		msg.Forwards,
		MediaURL(channel, msg),
		replies.String(),
	}
}

type Scraper struct {
	feed    Feed
	sheet   Sheet
	limiter *rate.Limiter
	logger  *slog.Logger
	out     io.Writer
}

type Option func(*Scraper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) { s.logger = logger }
}

// WithDelay spaces consecutive messages at least d apart. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithOutput sets where progress lines go. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Scraper) { s.out = w }
}

func New(feed Feed, sheet Sheet, opts ...Option) *Scraper {
	s := &Scraper{
		feed:    feed,
		sheet:   sheet,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run clears the sheet, writes the header and then one row per message in
// the window. The history is newest first, so iteration stops at the first
// message at or before Since.
func (s *Scraper) Run(ctx context.Context, job Job) (*Result, error) {
	res := &Result{}

	if err := s.sheet.Reset(ctx); err != nil {
		return res, fmt.Errorf("failed to clear sheet: %w", err)
	}
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := s.sheet.WriteRow(ctx, 1, header); err != nil {
		return res, fmt.Errorf("failed to write header: %w", err)
	}

	it, err := s.feed.History(ctx, job.Channel, job.Search)
	if err != nil {
		return res, fmt.Errorf("failed to open history of %s: %w", job.Channel, err)
	}

	index := 1
	for it.Next(ctx) {
		msg := it.Value()
		if !msg.Date.Before(job.Until) {
			res.Skipped++
			continue
		}
		if !msg.Date.After(job.Since) {
			break
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return res, err
			}
		}

		replies, err := s.feed.Replies(ctx, job.Channel, msg.ID)
		if err != nil {
			res.ReplyFailures++
			if s.logger != nil {
				s.logger.Warn("Failed to fetch replies", "error", err, "channel", job.Channel, "message_id", msg.ID)
			}
		}
		digest := Digest(replies, err)

		if err := s.sheet.WriteRow(ctx, index+1, Row(index, job.Channel, msg, digest)); err != nil {
			if s.logger != nil {
				s.logger.Error("Failed to write row", "error", err, "row", index+1, "message_id", msg.ID)
			}
			return res, fmt.Errorf("failed to write row %d: %w", index+1, err)
		}

		fmt.Fprintf(s.out, "Item %05d completed!\n", index)
		fmt.Fprintf(s.out, "Id: %05d.\n\n", msg.ID)

		res.Scraped++
		index++
	}
	if err := it.Err(); err != nil {
		if s.logger != nil {
			s.logger.Error("Message history failed", "error", err, "channel", job.Channel, "scraped", res.Scraped)
		}
		return res, fmt.Errorf("failed to iterate history of %s: %w", job.Channel, err)
	}

	fmt.Fprintf(s.out, "----------------------------------------\n#Concluded! #%05d posts were scraped!\n----------------------------------------\n", res.Scraped)

	if s.logger != nil {
		s.logger.Info("Scrape finished", "channel", job.Channel, "scraped", res.Scraped, "skipped", res.Skipped, "reply_failures", res.ReplyFailures)
	}
	return res, nil
}
