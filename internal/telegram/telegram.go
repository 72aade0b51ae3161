// Package telegram implements the scrape feed on top of the MTProto API.
package telegram

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/query/messages"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tgpipe/internal/config"
	"tgpipe/internal/scrape"
)

const batchSize = 100

// channelIDOffset turns a channel id into the marked id clients display.
const channelIDOffset = 1000000000000

// Run connects, signs in if the session is not authorised yet and calls fn
// with a feed bound to the connection. The login code is read from in.
func Run(ctx context.Context, cfg config.Telegram, logger *zap.Logger, in io.Reader, out io.Writer, fn func(ctx context.Context, feed scrape.Feed) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		Logger:         logger,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(
			auth.Constant(cfg.Phone, cfg.Password, codePrompt(in, out)),
			auth.SendCodeOptions{},
		)
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
		return fn(ctx, NewFeed(client.API()))
	})
}

func codePrompt(in io.Reader, out io.Writer) auth.CodeAuthenticator {
	reader := bufio.NewReader(in)
	return auth.CodeAuthenticatorFunc(func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		fmt.Fprint(out, "Enter the login code Telegram sent you: ")
		code, err := reader.ReadString('\n')
		if err != nil && code == "" {
			return "", fmt.Errorf("failed to read login code: %w", err)
		}
		return strings.TrimSpace(code), nil
	})
}

// Feed reads channel histories and replies.
type Feed struct {
	api      *tg.Client
	peers    *peers.Manager
	resolved map[string]tg.InputPeerClass
}

func NewFeed(api *tg.Client) *Feed {
	return &Feed{
		api:      api,
		peers:    peers.Options{}.Build(api),
		resolved: make(map[string]tg.InputPeerClass),
	}
}

func (f *Feed) resolve(ctx context.Context, channel string) (tg.InputPeerClass, error) {
	name := scrape.ChannelName(channel)
	if p, ok := f.resolved[name]; ok {
		return p, nil
	}
	p, err := f.peers.ResolveDomain(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", channel, err)
	}
	f.resolved[name] = p.InputPeer()
	return f.resolved[name], nil
}

func (f *Feed) History(ctx context.Context, channel, search string) (scrape.Iterator, error) {
	p, err := f.resolve(ctx, channel)
	if err != nil {
		return nil, err
	}

	qb := messages.NewQueryBuilder(f.api)
	if search != "" {
		return &iterator{it: qb.Search(p).Q(search).BatchSize(batchSize).Iter()}, nil
	}
	return &iterator{it: qb.GetHistory(p).BatchSize(batchSize).Iter()}, nil
}

func (f *Feed) Replies(ctx context.Context, channel string, msgID int) ([]scrape.Message, error) {
	p, err := f.resolve(ctx, channel)
	if err != nil {
		return nil, err
	}

	it := &iterator{it: messages.NewQueryBuilder(f.api).GetReplies(p).MsgID(msgID).BatchSize(batchSize).Iter()}
	var replies []scrape.Message
	for it.Next(ctx) {
		replies = append(replies, it.Value())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return replies, nil
}

// iterator adapts a query iterator, skipping service messages.
type iterator struct {
	it  *messages.Iterator
	cur scrape.Message
}

func (i *iterator) Next(ctx context.Context) bool {
	for i.it.Next(ctx) {
		msg, ok := i.it.Value().Msg.(*tg.Message)
		if !ok {
			continue
		}
		i.cur = convertMessage(msg)
		return true
	}
	return false
}

func (i *iterator) Value() scrape.Message { return i.cur }
func (i *iterator) Err() error            { return i.it.Err() }

func convertMessage(msg *tg.Message) scrape.Message {
	out := scrape.Message{
		ID:       msg.ID,
		Date:     time.Unix(int64(msg.Date), 0).UTC(),
		Text:     msg.Message,
		HasMedia: msg.Media != nil,
	}

	if from, ok := msg.GetFromID(); ok {
		out.SenderID = markedID(from)
	} else {
		out.SenderID = markedID(msg.PeerID)
	}
	if author, ok := msg.GetPostAuthor(); ok {
		out.PostAuthor = author
	}
	if views, ok := msg.GetViews(); ok {
		out.Views = views
	}
	if forwards, ok := msg.GetForwards(); ok {
		out.Forwards = forwards
	}
	if reactions, ok := msg.GetReactions(); ok {
		out.Reactions = convertReactions(reactions)
	}
	return out
}

func convertReactions(r tg.MessageReactions) []scrape.Reaction {
	var out []scrape.Reaction
	for _, rc := range r.Results {
		var emoji string
		switch x := rc.Reaction.(type) {
		case *tg.ReactionEmoji:
			emoji = x.Emoticon
		case *tg.ReactionCustomEmoji:
			emoji = fmt.Sprintf("custom:%d", x.DocumentID)
		default:
			continue
		}
		out = append(out, scrape.Reaction{Emoji: emoji, Count: rc.Count})
	}
	return out
}

// markedID is the signed id clients show: users as is, chats negated and
// channels with the -100 prefix.
func markedID(p tg.PeerClass) int64 {
	switch x := p.(type) {
	case *tg.PeerUser:
		return x.UserID
	case *tg.PeerChat:
		return -x.ChatID
	case *tg.PeerChannel:
		return -(channelIDOffset + x.ChannelID)
	default:
		return 0
	}
}
