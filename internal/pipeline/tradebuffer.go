package pipeline

import "github.com/your-org/flow-signal-bot/internal/market"

// tradeBuffer holds raw trades for one symbol in a fixed-size circular buffer.
// When full, the oldest trade is overwritten, which caps producer-side memory
// when the consumer falls behind or a symbol goes quiet.
type tradeBuffer struct {
	trades []market.Trade
	size   int
	head   int // next slot to write
	count  int
}

func newTradeBuffer(size int) *tradeBuffer {
	if size <= 0 {
		size = 1
	}
	return &tradeBuffer{
		trades: make([]market.Trade, size),
		size:   size,
	}
}

// Add appends a trade, overwriting the oldest when full.
func (b *tradeBuffer) Add(t market.Trade) {
	b.trades[b.head] = t
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
}

// Len returns the number of buffered trades.
func (b *tradeBuffer) Len() int { return b.count }

// Drain returns the buffered trades in arrival order and empties the buffer.
func (b *tradeBuffer) Drain() []market.Trade {
	if b.count == 0 {
		return nil
	}
	out := make([]market.Trade, b.count)
	if b.count < b.size {
		copy(out, b.trades[:b.head])
	} else {
		n := copy(out, b.trades[b.head:])
		copy(out[n:], b.trades[:b.head])
	}
	b.head = 0
	b.count = 0
	return out
}
