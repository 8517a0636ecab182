package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/your-org/flow-signal-bot/internal/signal"
)

// Summary is the end-of-run performance breakdown over all closed signals.
type Summary struct {
	Total        int
	Wins         int
	Losses       int
	Neutral      int
	WinRate      float64 // percent, wins over wins+losses
	TotalROI     decimal.Decimal
	AverageWin   decimal.Decimal
	AverageLoss  decimal.Decimal
	ProfitFactor float64
	MaxDrawdown  decimal.Decimal
}

// Summarize analyzes the closed signals of a run. An empty run yields an
// error rather than a zero report.
func Summarize(closed []signal.MarketSignal) (Summary, error) {
	if len(closed) == 0 {
		return Summary{}, fmt.Errorf("no closed signals to analyze")
	}

	var s Summary
	var totalProfit, totalLoss decimal.Decimal
	equity := decimal.Zero
	peak := decimal.Zero

	for _, sig := range closed {
		roi := decimal.NewFromFloat(sig.ROI)
		s.Total++
		s.TotalROI = s.TotalROI.Add(roi)
		switch {
		case roi.IsPositive():
			s.Wins++
			totalProfit = totalProfit.Add(roi)
		case roi.IsNegative():
			s.Losses++
			totalLoss = totalLoss.Add(roi)
		default:
			s.Neutral++
		}

		equity = equity.Add(roi)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(s.MaxDrawdown) {
			s.MaxDrawdown = dd
		}
	}

	if s.Wins+s.Losses > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Wins+s.Losses) * 100
	}
	if s.Wins > 0 {
		s.AverageWin = totalProfit.Div(decimal.NewFromInt(int64(s.Wins)))
	}
	if s.Losses > 0 {
		s.AverageLoss = totalLoss.Div(decimal.NewFromInt(int64(s.Losses)))
	}
	if totalLoss.IsNegative() {
		s.ProfitFactor = totalProfit.Div(totalLoss.Abs()).InexactFloat64()
	}
	return s, nil
}

// String renders the summary as one human-readable line.
func (s Summary) String() string {
	return fmt.Sprintf("signals=%d wins=%d losses=%d neutral=%d winRate=%.1f%% roi=%s profitFactor=%.2f maxDD=%s",
		s.Total, s.Wins, s.Losses, s.Neutral, s.WinRate, s.TotalROI, s.ProfitFactor, s.MaxDrawdown)
}
