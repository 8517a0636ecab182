package exchange

import (
	"context"
	"time"
)

// GatewayPriceSource adapts an OrderGateway to the single-method price lookup
// the signal engine consumes.
type GatewayPriceSource struct {
	gateway OrderGateway
	timeout time.Duration
}

// NewGatewayPriceSource wraps a gateway with a per-call timeout.
func NewGatewayPriceSource(gateway OrderGateway, timeout time.Duration) *GatewayPriceSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GatewayPriceSource{gateway: gateway, timeout: timeout}
}

// Price fetches the current price for a symbol.
func (p *GatewayPriceSource) Price(symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.gateway.GetPrice(ctx, symbol)
}
