package signal

import "sync"

// SymbolStats holds the running counters for one symbol. Updated exactly once
// per signal, at close time.
type SymbolStats struct {
	Symbol        string  `json:"symbol"`
	Total         int     `json:"total"`
	Profit        int     `json:"profit"`
	Loss          int     `json:"loss"`
	Neutral       int     `json:"neutral"`
	CumulativeROI float64 `json:"cumulative_roi"`
}

// Stats aggregates per-symbol counters for the whole run.
type Stats struct {
	mu        sync.Mutex
	perSymbol map[string]*SymbolStats
}

// NewStats creates an empty Stats aggregate.
func NewStats() *Stats {
	return &Stats{perSymbol: make(map[string]*SymbolStats)}
}

// RecordClose buckets a closed signal by the sign of its ROI.
func (st *Stats) RecordClose(s *MarketSignal) {
	st.mu.Lock()
	defer st.mu.Unlock()
	ss, ok := st.perSymbol[s.Symbol]
	if !ok {
		ss = &SymbolStats{Symbol: s.Symbol}
		st.perSymbol[s.Symbol] = ss
	}
	ss.Total++
	switch {
	case s.ROI > 0:
		ss.Profit++
	case s.ROI < 0:
		ss.Loss++
	default:
		ss.Neutral++
	}
	ss.CumulativeROI += s.ROI
}

// Snapshot returns a copy of the per-symbol counters.
func (st *Stats) Snapshot() map[string]SymbolStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]SymbolStats, len(st.perSymbol))
	for sym, ss := range st.perSymbol {
		out[sym] = *ss
	}
	return out
}

// TotalROI sums cumulative ROI across all symbols.
func (st *Stats) TotalROI() float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	var total float64
	for _, ss := range st.perSymbol {
		total += ss.CumulativeROI
	}
	return total
}
