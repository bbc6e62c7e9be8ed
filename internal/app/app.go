// Package app wires the campaign components together and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"sort"

	"adventbot/internal/bot"
	"adventbot/internal/broadcast"
	"adventbot/internal/catalog"
	"adventbot/internal/clock"
	"adventbot/internal/config"
	"adventbot/internal/ranking"
	"adventbot/internal/rotation"
	"adventbot/internal/schedule"
	"adventbot/internal/store"
	"adventbot/internal/transport"
	"adventbot/internal/transport/telegram"
	"adventbot/internal/votes"
	logx "adventbot/pkg/logx"
)

type App struct {
	cfg    *config.Config
	logSvc *logx.Service
	log    logx.Logger

	store   store.Store
	cat     *catalog.Service
	adapter *telegram.Adapter
	bot     *bot.Bot
	sched   *schedule.Service
	bcast   *broadcast.Scheduler

	sup     *supervisor
	updates chan transport.Update
}

// New builds the whole application from a config file. Any error here is a
// startup configuration error and fatal.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	loc, err := cfg.Location()
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	clk := clock.System{Loc: loc}

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = st.Close()
		logSvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	cat := catalog.NewService(cfg.TracksFile, log.With(logx.String("comp", "catalog")))
	rot := rotation.NewEngine(st, rotation.RandPicker{}, log.With(logx.String("comp", "rotation")))
	ledger := votes.NewLedger(st, log.With(logx.String("comp", "votes")))
	rank := ranking.NewReporter(cat, ledger)

	bcast := broadcast.New(
		broadcast.Config{
			Start:      cfg.Campaign.Start,
			End:        cfg.Campaign.End,
			RatePerSec: cfg.Broadcast.RatePerSec,
		},
		st, cat, rank, adapter, clk,
		log.With(logx.String("comp", "broadcast")),
	)

	b := bot.New(
		bot.Config{
			AdminUserID: cfg.Telegram.AdminUserID,
			OpenWindow:  cfg.OpenWindow,
		},
		adapter, st, cat, rot, ledger, rank, bcast, clk,
		log.With(logx.String("comp", "bot")),
	)

	sched := schedule.New(loc, log.With(logx.String("comp", "schedule")))

	return &App{
		cfg:     cfg,
		logSvc:  logSvc,
		log:     log,
		store:   st,
		cat:     cat,
		adapter: adapter,
		bot:     b,
		sched:   sched,
		bcast:   bcast,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = newSupervisor(ctx, a.log.With(logx.String("comp", "supervisor")))

	// Missing or broken tracks file is degraded state, not a startup error.
	if _, err := a.cat.Reload(); err != nil {
		a.log.Warn("starting with previous/empty catalog", logx.Err(err))
	}

	a.updates = make(chan transport.Update, 128)
	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("start telegram adapter: %w", err)
	}

	a.sup.Go("bot.router", func(ctx context.Context) error {
		return a.bot.Run(ctx, a.updates)
	})
	a.sup.Go("catalog.watch", a.cat.Watch)

	a.sched.Start(a.sup.Context())
	if err := a.registerJobs(); err != nil {
		return err
	}

	a.log.Info("started",
		logx.String("campaign_start", a.cfg.Campaign.Start),
		logx.String("campaign_end", a.cfg.Campaign.End),
		logx.String("tz", a.cfg.Campaign.Timezone),
	)
	return nil
}

func (a *App) registerJobs() error {
	tags := make([]string, 0, len(a.cfg.Campaign.Slots))
	for tag := range a.cfg.Campaign.Slots {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		tag := tag
		err := a.sched.AddDaily("broadcast.slot"+tag, a.cfg.Campaign.Slots[tag], func(ctx context.Context) error {
			_, err := a.bcast.RunSlot(ctx, tag)
			return err
		})
		if err != nil {
			return err
		}
	}

	return a.sched.AddDaily("broadcast.top5", a.cfg.Campaign.Top5At, func(ctx context.Context) error {
		_, err := a.bcast.RunTop(ctx, false)
		return err
	})
}

func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop(ctx)
	_ = a.adapter.Stop(ctx)

	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}

	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.log.Info("stopped")
	_ = a.logSvc.Close()
	return err
}
