// Package bot routes inbound Telegram updates to the campaign engines and
// owns all recipient-facing command handling.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	"adventbot/internal/broadcast"
	"adventbot/internal/catalog"
	"adventbot/internal/clock"
	"adventbot/internal/config"
	"adventbot/internal/ranking"
	"adventbot/internal/render"
	"adventbot/internal/rotation"
	"adventbot/internal/store"
	"adventbot/internal/transport"
	"adventbot/internal/votes"
	logx "adventbot/pkg/logx"
)

type Config struct {
	AdminUserID int64
	OpenWindow  config.OpenWindowConfig
}

type Bot struct {
	cfg     Config
	adapter transport.Adapter
	store   store.Store
	cat     *catalog.Service
	rot     *rotation.Engine
	ledger  *votes.Ledger
	rank    *ranking.Reporter
	bcast   *broadcast.Scheduler
	clock   clock.Clock
	log     logx.Logger

	mu            sync.Mutex
	awaitingAudio bool
}

func New(
	cfg Config,
	adapter transport.Adapter,
	st store.Store,
	cat *catalog.Service,
	rot *rotation.Engine,
	ledger *votes.Ledger,
	rank *ranking.Reporter,
	bcast *broadcast.Scheduler,
	clk clock.Clock,
	log logx.Logger,
) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{
		cfg:     cfg,
		adapter: adapter,
		store:   st,
		cat:     cat,
		rot:     rot,
		ledger:  ledger,
		rank:    rank,
		bcast:   bcast,
		clock:   clk,
		log:     log,
	}
}

// Run consumes updates until ctx is done.
func (b *Bot) Run(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up := <-updates:
			b.handle(ctx, up)
		}
	}
}

func (b *Bot) handle(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message != nil {
			b.handleMessage(ctx, up.Message)
		}
	case transport.UpdateCallback:
		if up.Callback != nil {
			b.handleCallback(ctx, up.Callback)
		}
	}
}

func (b *Bot) isAdmin(userID int64) bool { return userID == b.cfg.AdminUserID }

// command extracts the leading /command word, dropping a @botname suffix.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word := text
	if i := strings.IndexAny(word, " \t\n"); i >= 0 {
		word = word[:i]
	}
	if i := strings.Index(word, "@"); i >= 0 {
		word = word[:i]
	}
	return strings.ToLower(word)
}

func (b *Bot) handleMessage(ctx context.Context, m *transport.Message) {
	if m.Audio != nil {
		b.handleAudio(ctx, m)
		return
	}

	text := strings.TrimSpace(m.Text)
	switch cmd := command(text); cmd {
	case "/start", "/help":
		b.reply(ctx, m.ChatID, transport.Content{Text: welcomeText, MainKeyboard: true})
	case "/today":
		b.handleToday(ctx, m)
	case "/subscribe":
		b.handleSubscribe(ctx, m)
	case "/unsubscribe":
		b.handleUnsubscribe(ctx, m)
	case "/top5":
		b.handleTop5(ctx, m)
	case "/stats":
		b.handleStats(ctx, m)
	case "/setaudio":
		b.handleSetAudio(ctx, m)
	case "/sendtop5":
		b.handleSendTop5(ctx, m)
	case "/reload":
		b.handleReload(ctx, m)
	default:
		if text == transport.MainKeyboardLabel {
			b.handleToday(ctx, m)
			return
		}
		b.reply(ctx, m.ChatID, transport.Content{Text: hintText})
	}
}

func (b *Bot) handleToday(ctx context.Context, m *transport.Message) {
	now := b.clock.Now()

	if b.cfg.OpenWindow.Enabled && !b.windowOpen(now.Hour(), now.Minute()) {
		b.reply(ctx, m.ChatID, transport.Content{
			Text: windowClosedText(b.cfg.OpenWindow.From, b.cfg.OpenWindow.To, now.Format("15:04")),
		})
		return
	}

	track, err := b.rot.SelectFor(ctx, m.ChatID, b.cat.Snapshot(), clock.Date(now))
	if err != nil {
		if errors.Is(err, rotation.ErrNoTracks) || errors.Is(err, rotation.ErrTrackGone) {
			b.reply(ctx, m.ChatID, transport.Content{Text: emptyCatalogText})
			return
		}
		b.log.Error("rotation failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		return
	}

	b.log.Info("track opened",
		logx.Int64("chat_id", m.ChatID),
		logx.String("track_id", track.ID),
		logx.String("date", clock.Date(now)),
	)
	b.reply(ctx, m.ChatID, render.Track(track))
}

// windowOpen checks the daily open window: From inclusive, To exclusive.
func (b *Bot) windowOpen(hour, minute int) bool {
	fromH, fromM, err := config.ParseHHMM(b.cfg.OpenWindow.From)
	if err != nil {
		return true
	}
	toH, toM, err := config.ParseHHMM(b.cfg.OpenWindow.To)
	if err != nil {
		return true
	}
	cur := hour*60 + minute
	return cur >= fromH*60+fromM && cur < toH*60+toM
}

func (b *Bot) handleSubscribe(ctx context.Context, m *transport.Message) {
	added, err := b.store.AddSubscriber(ctx, m.ChatID)
	if err != nil {
		b.log.Error("subscribe failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		return
	}
	text := subscribedText
	if !added {
		text = alreadySubscribedText
	}
	b.reply(ctx, m.ChatID, transport.Content{Text: text})
}

func (b *Bot) handleUnsubscribe(ctx context.Context, m *transport.Message) {
	removed, err := b.store.RemoveSubscriber(ctx, m.ChatID)
	if err != nil {
		b.log.Error("unsubscribe failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		return
	}
	text := unsubscribedText
	if !removed {
		text = notSubscribedText
	}
	b.reply(ctx, m.ChatID, transport.Content{Text: text})
}

func (b *Bot) handleTop5(ctx context.Context, m *transport.Message) {
	text, err := b.rank.RenderTop(ctx, broadcast.TopN)
	if err != nil {
		b.log.Error("top5 failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		return
	}
	b.reply(ctx, m.ChatID, transport.Content{Text: text})
}

func (b *Bot) handleStats(ctx context.Context, m *transport.Message) {
	if !b.isAdmin(m.FromID) {
		b.reply(ctx, m.ChatID, transport.Content{Text: "You are not allowed to view stats."})
		return
	}
	text, err := b.rank.RenderStats(ctx)
	if err != nil {
		b.log.Error("stats failed", logx.Err(err))
		return
	}
	b.reply(ctx, m.ChatID, transport.Content{Text: text})
}

func (b *Bot) handleSetAudio(ctx context.Context, m *transport.Message) {
	if !b.isAdmin(m.FromID) {
		b.reply(ctx, m.ChatID, transport.Content{Text: notAllowedText("/setaudio")})
		return
	}
	b.mu.Lock()
	b.awaitingAudio = true
	b.mu.Unlock()
	b.reply(ctx, m.ChatID, transport.Content{Text: setAudioPromptText})
}

func (b *Bot) handleAudio(ctx context.Context, m *transport.Message) {
	if !b.isAdmin(m.FromID) {
		return
	}

	b.mu.Lock()
	awaiting := b.awaitingAudio
	b.mu.Unlock()
	captionMode := strings.HasPrefix(strings.TrimSpace(m.Caption), "/setaudio")

	if !awaiting && !captionMode {
		b.reply(ctx, m.ChatID, transport.Content{Text: setAudioHintText})
		return
	}

	b.mu.Lock()
	b.awaitingAudio = false
	b.mu.Unlock()

	a := m.Audio
	b.log.Info("admin uploaded audio", logx.String("file_id", a.FileID), logx.String("unique_id", a.UniqueID))
	b.reply(ctx, m.ChatID, transport.Content{
		Text: audioSavedText(a.FileID, a.UniqueID, a.Title, a.Performer, a.Duration),
	})
}

func (b *Bot) handleSendTop5(ctx context.Context, m *transport.Message) {
	if !b.isAdmin(m.FromID) {
		b.reply(ctx, m.ChatID, transport.Content{Text: notAllowedText("/sendtop5")})
		return
	}
	stats, err := b.bcast.RunTop(ctx, true)
	if err != nil {
		b.log.Error("forced ranking broadcast failed", logx.Err(err))
		return
	}
	b.reply(ctx, m.ChatID, transport.Content{
		Text: sendTopDoneText(stats.Delivered, stats.Failed, stats.Unsubscribed),
	})
}

func (b *Bot) handleReload(ctx context.Context, m *transport.Message) {
	if !b.isAdmin(m.FromID) {
		b.reply(ctx, m.ChatID, transport.Content{Text: notAllowedText("/reload")})
		return
	}
	n, err := b.cat.Reload()
	if err != nil {
		b.reply(ctx, m.ChatID, transport.Content{Text: "Reload failed: " + err.Error()})
		return
	}
	b.reply(ctx, m.ChatID, transport.Content{Text: reloadedText(n)})
}

func (b *Bot) handleCallback(ctx context.Context, cb *transport.Callback) {
	if !strings.HasPrefix(cb.Data, transport.VoteCallbackPrefix) {
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	trackID := strings.TrimPrefix(cb.Data, transport.VoteCallbackPrefix)

	res, err := b.ledger.Record(ctx, trackID, cb.FromID)
	if err != nil {
		b.log.Error("vote failed", logx.String("track_id", trackID), logx.Int64("voter_id", cb.FromID), logx.Err(err))
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	answer := voteThanksText
	if res == votes.AlreadyVoted {
		answer = voteAlreadyText
	}
	if err := b.adapter.AnswerCallback(ctx, cb.ID, answer); err != nil {
		b.log.Warn("callback answer failed", logx.Err(err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, c transport.Content) {
	if err := b.adapter.Send(ctx, chatID, c); err != nil {
		b.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
