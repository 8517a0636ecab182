package report

import (
	"strconv"
	"time"

	"github.com/your-org/flow-signal-bot/internal/market"
	"github.com/your-org/flow-signal-bot/internal/signal"
)

// Record kinds, first field of every emitted line.
const (
	kindEntity      = "entity"
	kindInformation = "information"
	kindSignalOpen  = "signal_open"
	kindSignalClose = "signal_close"
	kindStats       = "stats"
)

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// EntityRecord formats one market entity dump line.
func EntityRecord(e *market.MarketEntity) []string {
	return []string{
		kindEntity,
		fmtTime(e.CreatedAt),
		e.Symbol,
		fmtFloat(e.Price),
		strconv.Itoa(len(e.Trades)),
		fmtFloat(e.ActiveBuyVolume()),
		fmtFloat(e.ActiveSellVolume()),
		fmtFloat(e.PassiveBuyVolume(0)),
		fmtFloat(e.PassiveSellVolume(0)),
	}
}

// InformationRecord formats one market information dump line.
func InformationRecord(mi *market.MarketInformation) []string {
	return []string{
		kindInformation,
		fmtTime(mi.CreatedAt),
		mi.Symbol,
		mi.VolumeVerdict.String(),
		mi.PriceVerdict.String(),
		mi.PreferredDirection.String(),
		fmtFloat(mi.ActiveBuyVolume),
		fmtFloat(mi.ActiveSellVolume),
		fmtFloat(mi.PassiveBuyVolume),
		fmtFloat(mi.PassiveSellVolume),
	}
}

// SignalOpenRecord formats a signal creation line.
func SignalOpenRecord(s *signal.MarketSignal) []string {
	return []string{
		kindSignalOpen,
		fmtTime(s.OpenedAt),
		s.Symbol,
		s.Direction.String(),
		fmtFloat(s.EntryPrice),
	}
}

// SignalCloseRecord formats a signal closure line.
func SignalCloseRecord(s *signal.MarketSignal) []string {
	return []string{
		kindSignalClose,
		fmtTime(s.ClosedAt),
		s.Symbol,
		s.Direction.String(),
		fmtFloat(s.EntryPrice),
		fmtFloat(s.ExitPrice),
		fmtFloat(s.ROI),
		string(s.CloseReason),
	}
}

// StatsRecord formats one per-symbol stats report line.
func StatsRecord(at time.Time, ss *signal.SymbolStats) []string {
	return []string{
		kindStats,
		fmtTime(at),
		ss.Symbol,
		strconv.Itoa(ss.Total),
		strconv.Itoa(ss.Profit),
		strconv.Itoa(ss.Loss),
		strconv.Itoa(ss.Neutral),
		fmtFloat(ss.CumulativeROI),
	}
}
