package analytics

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// RenderReport formats final snapshots as the plain-text run report printed
// at the end of a simulation.
func RenderReport(runID string, snaps []domain.PerformanceSnapshot) string {
	var b strings.Builder
	rule := strings.Repeat("=", 50)

	fmt.Fprintf(&b, "%s\nPERFORMANCE REPORT  (run %s)\n%s\n", rule, runID, rule)
	for _, snap := range snaps {
		name := snap.StrategyID
		if name == "" {
			name = "aggregate"
		}
		fmt.Fprintf(&b, "\nStrategy: %s\n", name)
		fmt.Fprintf(&b, "  Total Trades:    %d (%d W / %d L)\n",
			snap.TotalTrades, snap.WinningTrades, snap.LosingTrades)
		fmt.Fprintf(&b, "  Win Rate:        %.2f%%\n", snap.WinRate*100)
		fmt.Fprintf(&b, "  Realized P&L:    $%.2f\n", snap.RealizedPnL)
		fmt.Fprintf(&b, "  Unrealized P&L:  $%.2f\n", snap.UnrealizedPnL)
		fmt.Fprintf(&b, "  Total P&L:       $%.2f\n", snap.TotalPnL)
		fmt.Fprintf(&b, "  Total Return:    %.2f%%\n", snap.TotalReturn*100)
		fmt.Fprintf(&b, "  Sharpe Ratio:    %s\n", fmtPtr(snap.SharpeRatio))
		fmt.Fprintf(&b, "  Max Drawdown:    %.2f%%\n", snap.MaxDrawdown*100)
		fmt.Fprintf(&b, "  Profit Factor:   %s\n", fmtPtr(snap.ProfitFactor))
		fmt.Fprintf(&b, "  Final Equity:    $%.2f\n", snap.Equity)
	}
	b.WriteString(rule + "\n")
	return b.String()
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
