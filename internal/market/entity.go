// Package market provides the core market-entity aggregation types: trades,
// orderbook snapshots, the rolling entity window and its directional
// classifiers.
package market

import "time"

// Side is the taker side of an executed trade.
type Side int

const (
	// SideBuy marks a buyer-initiated trade.
	SideBuy Side = iota
	// SideSell marks a seller-initiated trade.
	SideSell
)

// String returns the string representation of Side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Trade is a single executed trade as received from the feed. Immutable.
type Trade struct {
	ID       int64
	Symbol   string
	Side     Side
	Price    float64
	Quantity float64
	Time     time.Time
}

// MarketEntity is an immutable snapshot combining the active (executed trade)
// volume and the passive (resting orderbook) volume for one symbol at one
// point in time. It is owned exclusively by the EntityWindow that stores it.
type MarketEntity struct {
	Symbol    string
	CreatedAt time.Time
	Price     float64 // price of the most recent trade in the snapshot
	Trades    []Trade
	Book      BookSnapshot
}

// NewMarketEntity builds an entity from the given buffered trades and the
// latest book state. The book is cloned so the entity stays immutable while
// the producer keeps mutating the live book. Price comes from the most recent
// trade; zero if the batch is empty.
func NewMarketEntity(symbol string, trades []Trade, book *BookSnapshot, at time.Time) MarketEntity {
	e := MarketEntity{
		Symbol:    symbol,
		CreatedAt: at,
		Trades:    append([]Trade(nil), trades...),
	}
	if book != nil {
		e.Book = book.Clone()
	}
	if n := len(e.Trades); n > 0 {
		e.Price = e.Trades[n-1].Price
	}
	return e
}

// ActiveBuyVolume sums the quantity of buy-side trades in the entity.
func (e *MarketEntity) ActiveBuyVolume() float64 {
	var total float64
	for _, t := range e.Trades {
		if t.Side == SideBuy {
			total += t.Quantity
		}
	}
	return total
}

// ActiveSellVolume sums the quantity of sell-side trades in the entity.
func (e *MarketEntity) ActiveSellVolume() float64 {
	var total float64
	for _, t := range e.Trades {
		if t.Side == SideSell {
			total += t.Quantity
		}
	}
	return total
}

// PassiveBuyVolume sums the top-depth bid quantities of the entity's book.
// depth <= 0 sums all available levels.
func (e *MarketEntity) PassiveBuyVolume(depth int) float64 {
	return sumLevels(e.Book.Bids, depth)
}

// PassiveSellVolume sums the top-depth ask quantities of the entity's book.
// depth <= 0 sums all available levels.
func (e *MarketEntity) PassiveSellVolume(depth int) float64 {
	return sumLevels(e.Book.Asks, depth)
}

func sumLevels(levels []PriceLevel, depth int) float64 {
	if depth <= 0 || depth > len(levels) {
		depth = len(levels)
	}
	var total float64
	for _, l := range levels[:depth] {
		total += l.Quantity
	}
	return total
}
