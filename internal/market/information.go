package market

import "time"

// Trend is the preferred market direction derived from cross-confirming the
// window verdicts.
type Trend int

const (
	// TrendUnknown indicates no confirmed direction.
	TrendUnknown Trend = iota
	// TrendUp indicates a confirmed uptrend.
	TrendUp
	// TrendDown indicates a confirmed downtrend.
	TrendDown
)

// String returns the string representation of Trend.
func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "UPTREND"
	case TrendDown:
		return "DOWNTREND"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the reverse trend; Unknown has no opposite.
func (t Trend) Opposite() Trend {
	switch t {
	case TrendUp:
		return TrendDown
	case TrendDown:
		return TrendUp
	default:
		return TrendUnknown
	}
}

// MarketInformation is the derived, immutable verdict of one ready window
// evaluation. Created once per evaluation, consumed once by the signal engine.
type MarketInformation struct {
	Symbol             string
	CreatedAt          time.Time
	Price              float64 // newest entity price at evaluation time
	VolumeVerdict      Direction
	PriceVerdict       Direction
	SubVolumeVerdicts  []Direction
	SubPriceVerdicts   []Direction
	ActiveBuyVolume    float64
	ActiveSellVolume   float64
	PassiveBuyVolume   float64
	PassiveSellVolume  float64
	PreferredDirection Trend
}

// BuildMarketInformation evaluates a window snapshot (entities newest first)
// into one MarketInformation. depth caps the passive volume summation;
// subCount is the number of sub-window chunks.
func BuildMarketInformation(symbol string, entities []MarketEntity, subCount, depth int, th Thresholds, at time.Time) MarketInformation {
	mi := MarketInformation{
		Symbol:            symbol,
		CreatedAt:         at,
		VolumeVerdict:     volumeDirection(entities, th),
		PriceVerdict:      priceChangeDirection(entities, th),
		ActiveBuyVolume:   totalActiveBuy(entities),
		ActiveSellVolume:  totalActiveSell(entities),
	}
	if len(entities) > 0 {
		mi.Price = entities[0].Price
	}
	for i := range entities {
		mi.PassiveBuyVolume += entities[i].PassiveBuyVolume(depth)
		mi.PassiveSellVolume += entities[i].PassiveSellVolume(depth)
	}

	chunks := chunk(entities, subCount)
	mi.SubVolumeVerdicts = make([]Direction, len(chunks))
	mi.SubPriceVerdicts = make([]Direction, len(chunks))
	for i, c := range chunks {
		mi.SubVolumeVerdicts[i] = volumeDirection(c, th)
		mi.SubPriceVerdicts[i] = priceChangeDirection(c, th)
	}

	mi.PreferredDirection = mi.confirm()
	return mi
}

// confirm applies the conservative AND-chain: the whole-window volume verdict
// and the most recent sub-window verdict must agree on a side, the dominant
// active volume must exceed the opposite active volume, and the dominant
// active+passive volume must exceed the opposite passive volume. Any failed
// link yields Unknown; missed signals are preferred over false positives.
func (mi *MarketInformation) confirm() Trend {
	if len(mi.SubVolumeVerdicts) == 0 {
		return TrendUnknown
	}
	whole, recent := mi.VolumeVerdict, mi.SubVolumeVerdicts[0]
	if whole != recent {
		return TrendUnknown
	}
	switch whole {
	case DirectionBuy:
		if mi.ActiveBuyVolume > mi.ActiveSellVolume &&
			mi.ActiveBuyVolume+mi.PassiveBuyVolume > mi.PassiveSellVolume {
			return TrendUp
		}
	case DirectionSell:
		if mi.ActiveSellVolume > mi.ActiveBuyVolume &&
			mi.ActiveSellVolume+mi.PassiveSellVolume > mi.PassiveBuyVolume {
			return TrendDown
		}
	}
	return TrendUnknown
}
