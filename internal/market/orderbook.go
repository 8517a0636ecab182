package market

import "time"

// PriceLevel is one resting orderbook level.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// BookSnapshot holds one symbol's orderbook. Bids are ordered best-to-worst
// (descending price), asks ascending. It is mutated in place only by applying
// feed snapshots and incremental updates; access is serialized by the owning
// pipeline stage.
type BookSnapshot struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
	Time   time.Time
}

// ApplySnapshot replaces the book contents with a full snapshot.
func (b *BookSnapshot) ApplySnapshot(bids, asks []PriceLevel, at time.Time) {
	b.Bids = append(b.Bids[:0], bids...)
	b.Asks = append(b.Asks[:0], asks...)
	b.Time = at
}

// ApplyUpdate applies an incremental update by replacing levels index-by-index
// up to the currently stored depth. Levels beyond the stored depth are dropped,
// not appended: the book never grows past the depth of the last snapshot. This
// clipping is a known source of drift against the exchange's real book and is
// deliberate; the next full snapshot resynchronizes.
func (b *BookSnapshot) ApplyUpdate(bids, asks []PriceLevel, at time.Time) {
	for i, l := range bids {
		if i >= len(b.Bids) {
			break
		}
		b.Bids[i] = l
	}
	for i, l := range asks {
		if i >= len(b.Asks) {
			break
		}
		b.Asks[i] = l
	}
	b.Time = at
}

// Clone returns a deep copy of the book.
func (b *BookSnapshot) Clone() BookSnapshot {
	return BookSnapshot{
		Symbol: b.Symbol,
		Bids:   append([]PriceLevel(nil), b.Bids...),
		Asks:   append([]PriceLevel(nil), b.Asks...),
		Time:   b.Time,
	}
}

// Depth returns the number of stored bid and ask levels.
func (b *BookSnapshot) Depth() (bids, asks int) {
	return len(b.Bids), len(b.Asks)
}

// BestBid returns the highest bid price, zero when the book is empty.
func (b *BookSnapshot) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask price, zero when the book is empty.
func (b *BookSnapshot) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}
