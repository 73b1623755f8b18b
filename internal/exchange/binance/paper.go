package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"futures-adapter/internal/core"
	"futures-adapter/internal/exchange"
)

// PaperVenue is an offline stand-in for the live client. Precision comes
// from configured trading rules, leverage brackets from the embedded
// snapshot, and candles from injected fixtures. Orders are accepted
// locally and never leave the process.
type PaperVenue struct {
	rules core.Rules

	mu       sync.Mutex
	seq      int64
	orders   []core.Order
	leverage map[string]int
	candles  map[string][]core.Candle
}

func NewPaperVenue(rules core.Rules) *PaperVenue {
	return &PaperVenue{
		rules:    rules,
		leverage: make(map[string]int),
		candles:  make(map[string][]core.Candle),
	}
}

func (p *PaperVenue) Name() string { return "binance-futures-paper" }

func (p *PaperVenue) CreateOrder(_ context.Context, req exchange.OrderRequest) (core.Order, error) {
	order := core.Order{
		ClientID:  req.ClientID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Qty:       req.Qty,
		Status:    core.OrderNew,
		CreatedAt: time.Now(),
	}
	if req.Type == core.StopLossLimit {
		var err error
		order, err = core.NormalizeStopOrder(order, p.rules)
		if err != nil {
			return core.Order{}, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	order.ID = fmt.Sprintf("paper-%d", p.seq)
	p.orders = append(p.orders, order)
	return order, nil
}

func (p *PaperVenue) SetLeverage(_ context.Context, symbol string, leverage int) error {
	p.mu.Lock()
	p.leverage[symbol] = leverage
	p.mu.Unlock()
	return nil
}

func (p *PaperVenue) Leverage(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leverage[symbol]
}

func (p *PaperVenue) LoadLeverageBrackets(_ context.Context) (map[string][]exchange.RawBracket, error) {
	return SnapshotBrackets()
}

func (p *PaperVenue) PriceToPrecision(_ context.Context, _ string, price decimal.Decimal) (decimal.Decimal, error) {
	return core.RoundDown(price, p.rules.PriceTick), nil
}

func (p *PaperVenue) AmountToPrecision(_ context.Context, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	return core.RoundDown(amount, p.rules.QtyStep), nil
}

// SetCandles installs the candle history served for symbol. Fixtures must
// be sorted by open time, oldest first.
func (p *PaperVenue) SetCandles(symbol string, candles []core.Candle) {
	p.mu.Lock()
	p.candles[symbol] = candles
	p.mu.Unlock()
}

func (p *PaperVenue) FetchCandles(_ context.Context, symbol, _ string, since time.Time, limit int) ([]core.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []core.Candle
	for _, c := range p.candles[symbol] {
		if c.OpenTime.Before(since) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Orders returns a copy of every order accepted so far.
func (p *PaperVenue) Orders() []core.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.Order, len(p.orders))
	copy(out, p.orders)
	return out
}
