// Package app wires configuration, infrastructure, and the run pipeline
// into the three operating modes: historical, paper, collect.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polysim/internal/config"
	"github.com/alanyoungcy/polysim/internal/strategy"
)

// App is the composed application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *Dependencies
}

// New wires an App from validated config.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, err := Wire(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, logger: logger, deps: deps}, nil
}

// Close releases wired infrastructure.
func (a *App) Close() {
	a.deps.Close()
}

// Run executes the configured mode until completion or cancellation.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	a.logger.Info("starting run",
		slog.String("run_id", runID),
		slog.String("mode", a.cfg.Mode))

	switch a.cfg.Mode {
	case config.ModeHistorical:
		return a.runHistorical(ctx, runID)
	case config.ModePaper:
		return a.runPaper(ctx, runID)
	case config.ModeCollect:
		return a.runCollect(ctx, runID)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// buildRunner registers the configured strategies in dispatch order.
func (a *App) buildRunner(logger *slog.Logger) (*strategy.Runner, error) {
	runner := strategy.NewRunner(logger)
	for _, name := range a.cfg.Strategy.Active {
		switch name {
		case "copy_trading":
			runner.Register(strategy.NewCopyTrading(strategy.CopyTradingConfig{
				MinTradeSize: a.cfg.Strategy.CopyTrading.MinTradeSize,
				CopyRatio:    a.cfg.Strategy.CopyTrading.CopyRatio,
				MaxOrderSize: a.cfg.Strategy.CopyTrading.MaxOrderSize,
			}))
		case "market_making":
			runner.Register(strategy.NewMarketMaking(strategy.MarketMakingConfig{
				MinSpread:    a.cfg.Strategy.MarketMaking.MinSpread,
				QuoteSize:    a.cfg.Strategy.MarketMaking.QuoteSize,
				MaxInventory: a.cfg.Strategy.MarketMaking.MaxInventory,
				Improvement:  a.cfg.Strategy.MarketMaking.Improvement,
			}))
		case "alt_data":
			runner.Register(strategy.NewAltData(strategy.AltDataConfig{
				Window:              a.cfg.Strategy.AltData.Window,
				DriftThreshold:      a.cfg.Strategy.AltData.DriftThreshold,
				ConfidenceThreshold: a.cfg.Strategy.AltData.ConfidenceThreshold,
				OrderSize:           a.cfg.Strategy.AltData.OrderSize,
			}))
		default:
			return nil, fmt.Errorf("app: unknown strategy %q (have: %s)",
				name, strings.Join([]string{"copy_trading", "market_making", "alt_data"}, ", "))
		}
	}
	return runner, nil
}
