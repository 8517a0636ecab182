package report

import (
	"sync"

	"github.com/your-org/flow-signal-bot/internal/metrics"
	"github.com/your-org/flow-signal-bot/internal/signal"
	"github.com/your-org/flow-signal-bot/pkg/logger"
)

// SignalRecorder listens to signal lifecycle events, dumps them to the sink
// and retains closed signals for the end-of-run summary.
type SignalRecorder struct {
	sink Sink // may be nil

	mu     sync.Mutex
	closed []signal.MarketSignal
}

// NewSignalRecorder creates a recorder writing to the given sink.
func NewSignalRecorder(sink Sink) *SignalRecorder {
	return &SignalRecorder{sink: sink}
}

// OnSignalOpened implements signal.Listener.
func (r *SignalRecorder) OnSignalOpened(s *signal.MarketSignal) {
	metrics.SignalsOpened.WithLabelValues(s.Symbol, s.Direction.String()).Inc()
	r.write(SignalOpenRecord(s))
}

// OnSignalClosed implements signal.Listener.
func (r *SignalRecorder) OnSignalClosed(s *signal.MarketSignal) {
	metrics.SignalsClosed.WithLabelValues(s.Symbol, string(s.CloseReason)).Inc()
	r.write(SignalCloseRecord(s))

	r.mu.Lock()
	r.closed = append(r.closed, *s)
	r.mu.Unlock()
}

// ClosedSignals returns a copy of all closed signals recorded so far.
func (r *SignalRecorder) ClosedSignals() []signal.MarketSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signal.MarketSignal(nil), r.closed...)
}

func (r *SignalRecorder) write(record []string) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Write(record); err != nil {
		logger.Warnf("Failed to dump signal record: %v", err)
	}
}
