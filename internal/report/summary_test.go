package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/signal"
)

func closedSignal(roi float64) signal.MarketSignal {
	return signal.MarketSignal{
		Symbol:      "BTCUSDT",
		Direction:   market.TrendUp,
		EntryPrice:  100,
		ExitPrice:   100 + roi,
		ClosedAt:    time.Now(),
		ROI:         roi,
		CloseReason: signal.CloseReversal,
	}
}

func TestSummarizeEmptyIsAnError(t *testing.T) {
	_, err := Summarize(nil)
	assert.Error(t, err)
}

func TestSummarizeBucketsAndRatios(t *testing.T) {
	closed := []signal.MarketSignal{
		closedSignal(10),
		closedSignal(20),
		closedSignal(-5),
		closedSignal(0),
	}
	s, err := Summarize(closed)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.Neutral)
	assert.InDelta(t, 66.7, s.WinRate, 0.1)
	assert.InDelta(t, 25.0, s.TotalROI.InexactFloat64(), 1e-9)
	assert.InDelta(t, 15.0, s.AverageWin.InexactFloat64(), 1e-9)
	assert.InDelta(t, -5.0, s.AverageLoss.InexactFloat64(), 1e-9)
	assert.InDelta(t, 6.0, s.ProfitFactor, 1e-9)
}

func TestSummarizeMaxDrawdown(t *testing.T) {
	// Equity: 10, 2, -3, 7. Peak 10, trough -3, drawdown 13.
	closed := []signal.MarketSignal{
		closedSignal(10),
		closedSignal(-8),
		closedSignal(-5),
		closedSignal(10),
	}
	s, err := Summarize(closed)
	require.NoError(t, err)
	assert.InDelta(t, 13.0, s.MaxDrawdown.InexactFloat64(), 1e-9)
}

func TestSummarizeAllLosses(t *testing.T) {
	s, err := Summarize([]signal.MarketSignal{closedSignal(-1), closedSignal(-2)})
	require.NoError(t, err)
	assert.Zero(t, s.Wins)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.ProfitFactor)
	assert.True(t, s.AverageWin.IsZero())
}

func TestSummaryString(t *testing.T) {
	s, err := Summarize([]signal.MarketSignal{closedSignal(5)})
	require.NoError(t, err)
	str := s.String()
	assert.Contains(t, str, "signals=1")
	assert.Contains(t, str, "wins=1")
}
