package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/flow-signal-bot/internal/market"
)

func trade(id int64) market.Trade {
	return market.Trade{ID: id, Symbol: "BTCUSDT", Side: market.SideBuy, Price: 100, Quantity: 1}
}

func TestTradeBufferDrainInArrivalOrder(t *testing.T) {
	b := newTradeBuffer(4)
	for i := int64(1); i <= 3; i++ {
		b.Add(trade(i))
	}
	require.Equal(t, 3, b.Len())

	out := b.Drain()
	require.Len(t, out, 3)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[2].ID)
	assert.Equal(t, 0, b.Len(), "drain empties the buffer")
	assert.Nil(t, b.Drain())
}

func TestTradeBufferOverwritesOldest(t *testing.T) {
	b := newTradeBuffer(3)
	for i := int64(1); i <= 5; i++ {
		b.Add(trade(i))
	}
	require.Equal(t, 3, b.Len())

	out := b.Drain()
	require.Len(t, out, 3)
	assert.Equal(t, int64(3), out[0].ID, "oldest surviving trade first")
	assert.Equal(t, int64(5), out[2].ID)
}

func TestTradeBufferReusableAfterDrain(t *testing.T) {
	b := newTradeBuffer(2)
	b.Add(trade(1))
	b.Drain()
	b.Add(trade(2))
	b.Add(trade(3))
	out := b.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
}
