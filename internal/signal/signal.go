// Package signal maintains the per-symbol market signal state machine and the
// running statistics of closed signals.
package signal

import (
	"fmt"
	"time"

	"github.com/your-org/flow-signal-bot/internal/market"
)

// CloseReason describes why a signal was closed.
type CloseReason string

const (
	// CloseReversal closes on an opposite confirmed direction.
	CloseReversal CloseReason = "reversal"
	// CloseTakeProfit closes on the take-profit distance being reached.
	CloseTakeProfit CloseReason = "take_profit"
	// CloseStopLoss closes on the stop-loss distance being reached.
	CloseStopLoss CloseReason = "stop_loss"
	// CloseEndOfData closes all signals when a replay feed is exhausted.
	CloseEndOfData CloseReason = "end_of_data"
)

// MarketSignal is one open trading hypothesis for a symbol: a direction and an
// entry price, pending closure. At most one signal per symbol is active at any
// time.
type MarketSignal struct {
	Symbol      string
	Direction   market.Trend
	EntryPrice  float64
	ExitPrice   float64
	OpenedAt    time.Time
	ClosedAt    time.Time
	Active      bool
	ROI         float64 // zero while active
	CloseReason CloseReason
}

// close finalizes the signal. It is a no-op on an already-closed signal and
// reports whether the transition happened.
func (s *MarketSignal) close(exitPrice float64, at time.Time, reason CloseReason) bool {
	if !s.Active {
		return false
	}
	s.Active = false
	s.ExitPrice = exitPrice
	s.ClosedAt = at
	s.CloseReason = reason
	if s.Direction == market.TrendUp {
		s.ROI = exitPrice - s.EntryPrice
	} else {
		s.ROI = s.EntryPrice - exitPrice
	}
	return true
}

// String returns a one-line description for dumps and logs.
func (s *MarketSignal) String() string {
	state := "open"
	if !s.Active {
		state = fmt.Sprintf("closed(%s) roi=%.4f", s.CloseReason, s.ROI)
	}
	return fmt.Sprintf("MarketSignal{%s %s entry=%.4f %s}", s.Symbol, s.Direction, s.EntryPrice, state)
}
