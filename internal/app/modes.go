package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysim/internal/analytics"
	"github.com/alanyoungcy/polysim/internal/blob/s3"
	"github.com/alanyoungcy/polysim/internal/book"
	"github.com/alanyoungcy/polysim/internal/domain"
	"github.com/alanyoungcy/polysim/internal/feed"
	"github.com/alanyoungcy/polysim/internal/sim"
	"github.com/alanyoungcy/polysim/internal/source"
)

// runHistorical replays an event log through the pipeline and reports.
func (a *App) runHistorical(ctx context.Context, runID string) error {
	src, err := source.OpenHistorical(a.cfg.Simulator.EventLogPath, a.logger)
	if err != nil {
		return err
	}

	loop, executor, engine, err := a.buildPipeline(runID, src)
	if err != nil {
		return err
	}

	record := a.createRunRecord(ctx, runID)

	runErr := loop.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	stats := src.Stats()
	return a.finalize(ctx, record, loop, executor, engine, stats, runErr)
}

// runPaper trades live data: both venue feeds behind the timestamp merger,
// snapshots published after every fill.
func (a *App) runPaper(ctx context.Context, runID string) error {
	feeds, mergeFeeds, err := a.buildFeeds()
	if err != nil {
		return err
	}

	merge := source.NewMerge(mergeFeeds, a.cfg.Simulator.MaxSkew.Duration, a.logger)
	loop, executor, engine, err := a.buildPipeline(runID, merge)
	if err != nil {
		return err
	}
	loop.DrainTimeout = a.cfg.Simulator.DrainTimeout.Duration
	if a.deps.Bus != nil {
		loop.OnSnapshot = func(snap domain.PerformanceSnapshot) {
			pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := a.deps.Bus.PublishSnapshot(pubCtx, &snap); err != nil {
				a.logger.Warn("snapshot publish failed", slog.String("error", err.Error()))
			}
		}
	}

	record := a.createRunRecord(ctx, runID)

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range feeds {
		f := f
		g.Go(func() error {
			err := f.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	runErr := loop.Run(gctx)
	if err := g.Wait(); err != nil {
		a.logger.Error("feed failed", slog.String("error", err.Error()))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	stats := merge.Stats()
	return a.finalize(ctx, record, loop, executor, engine, stats, runErr)
}

// runCollect records normalized live events to the event-log format.
func (a *App) runCollect(ctx context.Context, runID string) error {
	feeds, _, err := a.buildFeeds()
	if err != nil {
		return err
	}
	recorder := source.NewRecorder(a.logger)

	collectCtx := ctx
	if d := a.cfg.Simulator.CollectDuration.Duration; d > 0 {
		var cancel context.CancelFunc
		collectCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(collectCtx)
	for _, f := range feeds {
		f := f
		g.Go(func() error {
			err := f.Run(gctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			for event := range f.Events() {
				if err := recorder.Record(event); err != nil {
					a.logger.Warn("record failed", slog.String("error", err.Error()))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	path := a.cfg.Simulator.EventLogPath
	if err := recorder.WriteFile(path); err != nil {
		return err
	}
	a.logger.Info("collection finished",
		slog.String("path", path),
		slog.Int("events", recorder.Count()))

	if a.deps.Archiver != nil {
		key := s3blob.EventLogKey(runID, time.Now())
		if err := a.archiveFile(ctx, key, path); err != nil {
			a.logger.Warn("event log archive failed", slog.String("error", err.Error()))
		} else {
			a.logger.Info("event log archived", slog.String("key", key))
		}
	}
	return nil
}

// buildPipeline assembles the single-loop run core over a source.
func (a *App) buildPipeline(runID string, src source.EventSource) (*sim.Loop, *sim.Executor, *analytics.Engine, error) {
	runner, err := a.buildRunner(a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := runner.Init(context.Background()); err != nil {
		return nil, nil, nil, err
	}

	ledger := sim.NewLedger(a.cfg.Simulator.InitialBalance, a.cfg.Simulator.FeeRate)
	executor := sim.NewExecutor(ledger, a.logger)
	tracker := book.NewTracker(a.logger)
	engine := analytics.NewEngine(runID, analytics.Config{
		InitialBalance: a.cfg.Simulator.InitialBalance,
		Annualization:  a.cfg.Analytics.Annualization,
	}, a.logger)

	loop := sim.NewLoop(src, tracker, runner, executor, ledger, engine, a.logger)
	return loop, executor, engine, nil
}

// buildFeeds constructs the enabled venue feeds.
func (a *App) buildFeeds() ([]feed.MarketFeed, []source.Feed, error) {
	var (
		feeds      []feed.MarketFeed
		mergeFeeds []source.Feed
	)
	queue := a.cfg.Simulator.QueueSize

	if len(a.cfg.Polymarket.AssetIDs) > 0 {
		f := feed.NewPolymarketFeed(a.cfg.Polymarket.WsHost, a.cfg.Polymarket.AssetIDs, queue, a.logger)
		feeds = append(feeds, f)
		mergeFeeds = append(mergeFeeds, source.Feed{Name: "polymarket", Events: f.Events()})
	}
	if len(a.cfg.Kalshi.MarketTickers) > 0 {
		f := feed.NewKalshiFeed(a.cfg.Kalshi.WsHost, a.cfg.Kalshi.MarketTickers,
			a.cfg.Kalshi.ApiKeyID, a.deps.KalshiKey, queue, a.logger)
		feeds = append(feeds, f)
		mergeFeeds = append(mergeFeeds, source.Feed{Name: "kalshi", Events: f.Events()})
	}
	if len(feeds) == 0 {
		return nil, nil, fmt.Errorf("app: no venue feeds configured")
	}
	return feeds, mergeFeeds, nil
}

// createRunRecord persists the initial run row when a store is wired.
func (a *App) createRunRecord(ctx context.Context, runID string) *domain.RunRecord {
	record := &domain.RunRecord{
		ID:         runID,
		Mode:       a.cfg.Mode,
		Status:     domain.RunStatusRunning,
		Strategies: a.cfg.Strategy.Active,
		StartedAt:  time.Now().UTC(),
	}
	if a.deps.RunStore != nil {
		if err := a.deps.RunStore.CreateRun(ctx, record); err != nil {
			a.logger.Warn("create run record failed", slog.String("error", err.Error()))
		}
	}
	return record
}

// finalize renders the report, persists results, and notifies.
func (a *App) finalize(
	ctx context.Context,
	record *domain.RunRecord,
	loop *sim.Loop,
	executor *sim.Executor,
	engine *analytics.Engine,
	stats source.Stats,
	runErr error,
) error {
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	final := engine.Final()
	report := analytics.RenderReport(record.ID, final)
	fmt.Print(report)

	now := time.Now().UTC()
	record.Status = domain.RunStatusFinished
	if runErr != nil {
		record.Status = domain.RunStatusCancelled
	}
	record.EventCount = loop.Events()
	record.MalformedCt = stats.Malformed
	record.LateCt = stats.Late
	record.FinishedAt = &now
	if len(final) > 0 {
		record.Final = &final[0]
	}

	if a.deps.RunStore != nil {
		if err := a.deps.RunStore.FinishRun(finalCtx, record); err != nil {
			a.logger.Warn("finish run record failed", slog.String("error", err.Error()))
		}
	}
	if a.deps.FillStore != nil {
		if err := a.deps.FillStore.SaveFills(finalCtx, record.ID, executor.Fills()); err != nil {
			a.logger.Warn("save fills failed", slog.String("error", err.Error()))
		}
	}
	if a.deps.Bus != nil {
		if err := a.deps.Bus.AppendResult(finalCtx, record); err != nil {
			a.logger.Warn("append result failed", slog.String("error", err.Error()))
		}
	}
	if a.deps.Archiver != nil {
		if key, err := a.deps.Archiver.ArchiveReport(finalCtx, record.ID, report); err != nil {
			a.logger.Warn("report archive failed", slog.String("error", err.Error()))
		} else {
			a.logger.Info("report archived", slog.String("key", key))
		}
	}

	title := fmt.Sprintf("polysim run %s %s", record.ID, record.Status)
	message := summarize(final, loop.Events())
	_ = a.deps.Notifier.Notify(finalCtx, title, message)

	return runErr
}

// archiveFile uploads a file, switching to multipart for large logs.
func (a *App) archiveFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	upCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	if info.Size() >= 8*1024*1024 {
		_, err = a.deps.Archiver.PutLarge(upCtx, key, f, "application/json")
	} else {
		_, err = a.deps.Archiver.Put(upCtx, key, f, "application/json")
	}
	return err
}

func summarize(snaps []domain.PerformanceSnapshot, events int64) string {
	var pnl float64
	trades := 0
	for _, s := range snaps {
		pnl += s.TotalPnL
		trades += s.TotalTrades
	}
	return fmt.Sprintf("events: %d, closed trades: %d, total P&L: $%.2f", events, trades, pnl)
}
