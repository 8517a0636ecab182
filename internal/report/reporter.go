package report

import (
	"context"
	"sort"
	"time"

	"github.com/your-org/flow-signal-bot/internal/signal"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// StatsStore upserts per-symbol stats snapshots. The database writer
// satisfies it.
type StatsStore interface {
	SaveSymbolStats(ctx context.Context, at time.Time, ss *signal.SymbolStats) error
}

// Reporter periodically writes per-symbol stats lines to the sink and upserts
// them into the store.
type Reporter struct {
	stats    *signal.Stats
	sink     Sink       // may be nil
	store    StatsStore // may be nil
	interval time.Duration
}

// NewReporter creates a stats reporter.
func NewReporter(stats *signal.Stats, sink Sink, store StatsStore, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{stats: stats, sink: sink, store: store, interval: interval}
}

// Run emits stats until the context is cancelled, then emits one final report.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Report(time.Now().UTC())
			return
		case <-ticker.C:
			r.Report(time.Now().UTC())
		}
	}
}

// Report writes one stats line per symbol, in stable symbol order.
func (r *Reporter) Report(at time.Time) {
	snapshot := r.stats.Snapshot()
	symbols := make([]string, 0, len(snapshot))
	for sym := range snapshot {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		ss := snapshot[sym]
		logger.Infof("Stats %s: total=%d profit=%d loss=%d neutral=%d roi=%.4f",
			ss.Symbol, ss.Total, ss.Profit, ss.Loss, ss.Neutral, ss.CumulativeROI)
		if r.sink != nil {
			if err := r.sink.Write(StatsRecord(at, &ss)); err != nil {
				logger.Warnf("Failed to write stats record for %s: %v", sym, err)
			}
		}
		if r.store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.store.SaveSymbolStats(ctx, at, &ss); err != nil {
				logger.Warnf("Failed to persist stats for %s: %v", sym, err)
			}
			cancel()
		}
	}
	if r.sink != nil {
		r.sink.Flush()
	}
}
