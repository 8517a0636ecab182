package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMarketEntityClonesBook(t *testing.T) {
	book := BookSnapshot{Symbol: "BTCUSDT"}
	book.ApplySnapshot([]PriceLevel{{100, 2}}, []PriceLevel{{101, 3}}, time.Now())

	e := NewMarketEntity("BTCUSDT", []Trade{{Side: SideBuy, Price: 100.5, Quantity: 1}}, &book, time.Now())

	// Mutating the live book must not leak into the entity.
	book.Bids[0].Quantity = 42
	assert.Equal(t, 2.0, e.Book.Bids[0].Quantity)
	assert.Equal(t, 100.5, e.Price, "price comes from the most recent trade")
}

func TestNewMarketEntityEmptyTrades(t *testing.T) {
	e := NewMarketEntity("BTCUSDT", nil, nil, time.Now())
	assert.Zero(t, e.Price)
	assert.Zero(t, e.ActiveBuyVolume())
	assert.Zero(t, e.ActiveSellVolume())
}

func TestActiveVolumes(t *testing.T) {
	trades := []Trade{
		{Side: SideBuy, Price: 100, Quantity: 2},
		{Side: SideSell, Price: 100, Quantity: 1.5},
		{Side: SideBuy, Price: 101, Quantity: 0.5},
	}
	e := NewMarketEntity("BTCUSDT", trades, nil, time.Now())
	assert.InDelta(t, 2.5, e.ActiveBuyVolume(), 1e-9)
	assert.InDelta(t, 1.5, e.ActiveSellVolume(), 1e-9)
}

func TestPassiveVolumesDepth(t *testing.T) {
	book := BookSnapshot{}
	book.ApplySnapshot(
		[]PriceLevel{{100, 1}, {99, 2}, {98, 3}},
		[]PriceLevel{{101, 4}, {102, 5}},
		time.Now(),
	)
	e := NewMarketEntity("BTCUSDT", nil, &book, time.Now())

	assert.InDelta(t, 3.0, e.PassiveBuyVolume(2), 1e-9)
	assert.InDelta(t, 6.0, e.PassiveBuyVolume(0), 1e-9, "depth <= 0 sums all levels")
	assert.InDelta(t, 9.0, e.PassiveSellVolume(10), 1e-9, "depth beyond book is clipped")
}
