package market

// Direction is the verdict of a volume or price-change classifier.
type Direction int

const (
	// DirectionUnknown indicates insufficient or inconclusive data.
	DirectionUnknown Direction = iota
	// DirectionBuy indicates buy-side dominance.
	DirectionBuy
	// DirectionSell indicates sell-side dominance.
	DirectionSell
	// DirectionNeutral indicates a balanced market.
	DirectionNeutral
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	case DirectionNeutral:
		return "NEUTRAL"
	default:
		return "UNKNOWN"
	}
}

// Thresholds holds the percentage limits used by the classifiers. All
// comparisons use >= for the qualifying direction.
type Thresholds struct {
	BuyVolumesPct      float64
	SellVolumesPct     float64
	UpPriceChangePct   float64
	DownPriceChangePct float64
}

// EntityWindow is a bounded, time-ordered buffer of MarketEntity for one
// symbol, newest first. It is not thread-safe by itself; the owning pipeline
// stage serializes access through a per-symbol lock.
type EntityWindow struct {
	symbol   string
	capacity int
	entities []MarketEntity // index 0 is the newest
	dirty    bool
}

// NewEntityWindow creates a window with the given capacity.
func NewEntityWindow(symbol string, capacity int) *EntityWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &EntityWindow{
		symbol:   symbol,
		capacity: capacity,
		entities: make([]MarketEntity, 0, capacity),
	}
}

// Symbol returns the symbol this window aggregates.
func (w *EntityWindow) Symbol() string { return w.symbol }

// Capacity returns the configured window size.
func (w *EntityWindow) Capacity() int { return w.capacity }

// Len returns the number of entities currently buffered.
func (w *EntityWindow) Len() int { return len(w.entities) }

// Push prepends the newest entity and evicts the oldest entry beyond the
// capacity, keeping len <= capacity at all times. It marks the window dirty.
func (w *EntityWindow) Push(e MarketEntity) {
	w.entities = append(w.entities, MarketEntity{})
	copy(w.entities[1:], w.entities)
	w.entities[0] = e
	if len(w.entities) > w.capacity {
		w.entities = w.entities[:w.capacity]
	}
	w.dirty = true
}

// IsReady reports whether the window holds a full capacity of entities.
func (w *EntityWindow) IsReady() bool { return len(w.entities) >= w.capacity }

// Dirty reports whether new data arrived since the last evaluation.
func (w *EntityWindow) Dirty() bool { return w.dirty }

// MarkEvaluated clears the dirty flag. Called by the consumer after it has
// snapshotted and evaluated the window contents.
func (w *EntityWindow) MarkEvaluated() { w.dirty = false }

// Snapshot returns a copy of the window contents, newest first. The copy lets
// the consumer evaluate outside the symbol lock while the producer keeps
// pushing.
func (w *EntityWindow) Snapshot() []MarketEntity {
	return append([]MarketEntity(nil), w.entities...)
}

// TotalActiveBuyVolume sums buy-side trade quantity across the window.
func (w *EntityWindow) TotalActiveBuyVolume() float64 {
	return totalActiveBuy(w.entities)
}

// TotalActiveSellVolume sums sell-side trade quantity across the window.
func (w *EntityWindow) TotalActiveSellVolume() float64 {
	return totalActiveSell(w.entities)
}

// TotalPassiveBuyVolume sums top-depth bid quantity across the window.
// depth <= 0 uses all available levels, clipped to the actual book size.
func (w *EntityWindow) TotalPassiveBuyVolume(depth int) float64 {
	var total float64
	for i := range w.entities {
		total += w.entities[i].PassiveBuyVolume(depth)
	}
	return total
}

// TotalPassiveSellVolume sums top-depth ask quantity across the window.
func (w *EntityWindow) TotalPassiveSellVolume(depth int) float64 {
	var total float64
	for i := range w.entities {
		total += w.entities[i].PassiveSellVolume(depth)
	}
	return total
}

// VolumeDirection classifies the whole window by active volume split.
func (w *EntityWindow) VolumeDirection(th Thresholds) Direction {
	return volumeDirection(w.entities, th)
}

// SubwindowVolumeDirections splits the window into count contiguous chunks,
// newest first, and classifies each independently. Index 0 is the most recent
// chunk.
func (w *EntityWindow) SubwindowVolumeDirections(count int, th Thresholds) []Direction {
	chunks := chunk(w.entities, count)
	out := make([]Direction, len(chunks))
	for i, c := range chunks {
		out[i] = volumeDirection(c, th)
	}
	return out
}

// PriceChangeDirection classifies the whole window by relative price change in
// chronological order (oldest to newest).
func (w *EntityWindow) PriceChangeDirection(th Thresholds) Direction {
	return priceChangeDirection(w.entities, th)
}

// SubwindowPriceChangeDirections applies PriceChangeDirection to each of count
// contiguous chunks. Index 0 is the most recent chunk.
func (w *EntityWindow) SubwindowPriceChangeDirections(count int, th Thresholds) []Direction {
	chunks := chunk(w.entities, count)
	out := make([]Direction, len(chunks))
	for i, c := range chunks {
		out[i] = priceChangeDirection(c, th)
	}
	return out
}

func totalActiveBuy(entities []MarketEntity) float64 {
	var total float64
	for i := range entities {
		total += entities[i].ActiveBuyVolume()
	}
	return total
}

func totalActiveSell(entities []MarketEntity) float64 {
	var total float64
	for i := range entities {
		total += entities[i].ActiveSellVolume()
	}
	return total
}

// volumeDirection maps the buy/sell split of active volume to a verdict.
// Zero total volume is Neutral by convention.
func volumeDirection(entities []MarketEntity, th Thresholds) Direction {
	buy := totalActiveBuy(entities)
	sell := totalActiveSell(entities)
	total := buy + sell
	if total == 0 {
		return DirectionNeutral
	}
	buyPct := buy / total * 100
	sellPct := sell / total * 100
	switch {
	case buyPct == sellPct:
		return DirectionNeutral
	case buyPct > sellPct && buyPct >= th.BuyVolumesPct:
		return DirectionBuy
	case sellPct > buyPct && sellPct >= th.SellVolumesPct:
		return DirectionSell
	default:
		return DirectionUnknown
	}
}

// priceChangeDirection compares the relative change between the oldest and the
// newest entity price against the up/down limits. Entities are stored newest
// first, so "first" chronologically is the last element.
func priceChangeDirection(entities []MarketEntity, th Thresholds) Direction {
	if len(entities) == 0 {
		return DirectionUnknown
	}
	first := entities[len(entities)-1].Price
	last := entities[0].Price
	if first == 0 {
		return DirectionUnknown
	}
	changePct := (last - first) / abs(first) * 100
	switch {
	case changePct == 0:
		return DirectionNeutral
	case changePct > 0 && changePct >= th.UpPriceChangePct:
		return DirectionBuy
	case changePct < 0 && -changePct >= th.DownPriceChangePct:
		return DirectionSell
	default:
		return DirectionUnknown
	}
}

// chunk splits entities into count contiguous pieces preserving newest-first
// order. Chunk size is len/count with a minimum of 1; a short tail goes to the
// last chunk.
func chunk(entities []MarketEntity, count int) [][]MarketEntity {
	if count <= 0 || len(entities) == 0 {
		return nil
	}
	size := len(entities) / count
	if size < 1 {
		size = 1
	}
	var out [][]MarketEntity
	for start := 0; start < len(entities) && len(out) < count; start += size {
		end := start + size
		if end > len(entities) || len(out) == count-1 {
			end = len(entities)
		}
		out = append(out, entities[start:end])
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
