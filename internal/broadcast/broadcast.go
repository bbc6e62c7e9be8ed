// Package broadcast drives the scheduled slot pushes and the final-day
// ranking push, delivering to each subscriber exactly once per
// (recipient, date, slot) via the broadcast log.
package broadcast

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"adventbot/internal/catalog"
	"adventbot/internal/clock"
	"adventbot/internal/ranking"
	"adventbot/internal/render"
	"adventbot/internal/store"
	"adventbot/internal/transport"
	logx "adventbot/pkg/logx"
)

// TopSlot is the slot tag used in the broadcast log for the final-day
// ranking push.
const TopSlot = "TOP5"

// TopN is the ranking size of the final-day push.
const TopN = 5

type Config struct {
	// Campaign window, inclusive, as YYYY-MM-DD in the campaign time zone.
	Start string
	End   string
	// RatePerSec paces outbound sends. <= 0 disables pacing.
	RatePerSec int
}

// Stats summarizes one trigger run.
type Stats struct {
	Delivered    int // recipients fully delivered and logged this run
	Skipped      int // recipients already logged for this (date, slot)
	Failed       int // recipients with a transient failure, retried next trigger
	Unsubscribed int // recipients removed after a permanent failure
}

// Scheduler executes the per-trigger delivery algorithm. It holds no state
// of its own; all idempotence lives in the broadcast log.
type Scheduler struct {
	cfg     Config
	store   store.Store
	cat     *catalog.Service
	rank    *ranking.Reporter
	deliver transport.Deliverer
	clock   clock.Clock
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, st store.Store, cat *catalog.Service, rank *ranking.Reporter, deliver transport.Deliverer, clk clock.Clock, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Scheduler{
		cfg:     cfg,
		store:   st,
		cat:     cat,
		rank:    rank,
		deliver: deliver,
		clock:   clk,
		limiter: lim,
		log:     log,
	}
}

func (s *Scheduler) inWindow(date string) bool {
	return date >= s.cfg.Start && date <= s.cfg.End
}

// RunSlot pushes the tracks scheduled for (today, slot) to every subscriber
// not yet logged for that slot today.
func (s *Scheduler) RunSlot(ctx context.Context, slot string) (Stats, error) {
	date := clock.Date(s.clock.Now())
	log := s.log.With(logx.String("slot", slot), logx.String("date", date))

	if !s.inWindow(date) {
		log.Debug("outside campaign window, nothing to do")
		return Stats{}, nil
	}

	tracks := s.cat.Snapshot().ForSlot(date, slot)
	if len(tracks) == 0 {
		log.Info("no tracks scheduled for slot")
		return Stats{}, nil
	}

	contents := make([]transport.Content, len(tracks))
	for i, t := range tracks {
		contents[i] = render.Track(t)
	}

	subs, err := s.store.Subscribers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load subscribers: %w", err)
	}
	if len(subs) == 0 {
		log.Info("no subscribers")
		return Stats{}, nil
	}

	var stats Stats
	for _, chatID := range subs {
		if err := s.deliverOnce(ctx, chatID, date, slot, contents, &stats); err != nil {
			return stats, err
		}
	}

	log.Info("slot broadcast done",
		logx.Int("delivered", stats.Delivered),
		logx.Int("skipped", stats.Skipped),
		logx.Int("failed", stats.Failed),
		logx.Int("unsubscribed", stats.Unsubscribed),
	)
	return stats, nil
}

// RunTop ranks and pushes the top tracks. Outside force mode it only fires
// on the campaign's final day and goes through the idempotent-skip log;
// force mode (admin testing) bypasses the date gate and never writes the
// log, so it can be repeated.
func (s *Scheduler) RunTop(ctx context.Context, force bool) (Stats, error) {
	date := clock.Date(s.clock.Now())
	log := s.log.With(logx.String("slot", TopSlot), logx.String("date", date), logx.Bool("force", force))

	if !force && date != s.cfg.End {
		log.Debug("not the final campaign day, nothing to do")
		return Stats{}, nil
	}

	text, err := s.rank.RenderTop(ctx, TopN)
	if err != nil {
		return Stats{}, fmt.Errorf("render ranking: %w", err)
	}
	contents := []transport.Content{{Text: text}}

	subs, err := s.store.Subscribers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load subscribers: %w", err)
	}
	if len(subs) == 0 {
		log.Info("no subscribers")
		return Stats{}, nil
	}

	var stats Stats
	for _, chatID := range subs {
		if force {
			if _, err := s.sendAll(ctx, chatID, contents, &stats); err != nil {
				return stats, err
			}
			continue
		}
		if err := s.deliverOnce(ctx, chatID, date, TopSlot, contents, &stats); err != nil {
			return stats, err
		}
	}

	log.Info("ranking broadcast done",
		logx.Int("delivered", stats.Delivered),
		logx.Int("skipped", stats.Skipped),
		logx.Int("failed", stats.Failed),
		logx.Int("unsubscribed", stats.Unsubscribed),
	)
	return stats, nil
}

// deliverOnce delivers contents to one recipient unless the broadcast log
// already shows (date, slot) sent. The log entry is written only after all
// contents went through, so a mid-way failure is retried by a later
// trigger (at-least-once).
func (s *Scheduler) deliverOnce(ctx context.Context, chatID int64, date, slot string, contents []transport.Content, stats *Stats) error {
	entry, _, err := s.store.BroadcastLog(ctx, chatID)
	if err != nil {
		// Degraded state: treat as not sent rather than abort the loop.
		s.log.Error("broadcast log unreadable, assuming not sent", logx.Int64("chat_id", chatID), logx.Err(err))
		entry = store.BroadcastEntry{}
	}
	if entry.LastDate != date {
		entry = store.BroadcastEntry{LastDate: date}
	}
	if entry.HasSlot(slot) {
		stats.Skipped++
		return nil
	}

	ok, err := s.sendAll(ctx, chatID, contents, stats)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	entry.SentSlots = append(entry.SentSlots, slot)
	if err := s.store.PutBroadcastLog(ctx, chatID, entry); err != nil {
		s.log.Error("broadcast log write failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
	return nil
}

// sendAll sends every content item to one recipient in order and reports
// whether all of them went through. Transient failures stop this recipient
// but not the trigger; permanent failures unsubscribe the recipient. Only
// context errors abort the whole run.
func (s *Scheduler) sendAll(ctx context.Context, chatID int64, contents []transport.Content, stats *Stats) (bool, error) {
	for _, c := range contents {
		if err := s.limiter.Wait(ctx); err != nil {
			return false, err
		}
		err := s.deliver.Send(ctx, chatID, c)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if transport.IsPermanent(err) {
			s.log.Warn("recipient unreachable, unsubscribing", logx.Int64("chat_id", chatID), logx.Err(err))
			if _, rerr := s.store.RemoveSubscriber(ctx, chatID); rerr != nil {
				s.log.Error("unsubscribe failed", logx.Int64("chat_id", chatID), logx.Err(rerr))
			}
			stats.Unsubscribed++
			return false, nil
		}
		s.log.Warn("delivery failed, will retry on next trigger", logx.Int64("chat_id", chatID), logx.Err(err))
		stats.Failed++
		return false, nil
	}
	stats.Delivered++
	return true, nil
}
