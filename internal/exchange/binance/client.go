package binance

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-adapter/internal/core"
	"futures-adapter/internal/exchange"
)

// Options configures the live futures venue client.
type Options struct {
	APIKey      string
	APISecret   string
	BaseURL     string
	HTTPTimeout time.Duration
	Logger      *zap.Logger
	Audit       exchange.AuditSink
}

// Client talks to the Binance USDT-margined futures REST API. It returns
// raw venue errors untranslated; classification happens above it.
type Client struct {
	api   *futures.Client
	log   *zap.Logger
	audit exchange.AuditSink

	rulesMu sync.RWMutex
	rules   map[string]core.Rules
}

func NewClient(opts Options) *Client {
	api := futures.NewClient(opts.APIKey, opts.APISecret)
	if opts.BaseURL != "" {
		api.BaseURL = opts.BaseURL
	}
	if opts.HTTPTimeout > 0 {
		api.HTTPClient = &http.Client{Timeout: opts.HTTPTimeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		api:   api,
		log:   log,
		audit: opts.Audit,
		rules: make(map[string]core.Rules),
	}
}

func (c *Client) Name() string { return "binance-futures" }

// wireOrderType maps the portable order type onto the futures wire value.
// Futures has no STOP_LOSS_LIMIT; the stop-limit type is called STOP.
func wireOrderType(t core.OrderType) futures.OrderType {
	switch t {
	case core.StopLossLimit:
		return futures.OrderType("STOP")
	case core.Market:
		return futures.OrderTypeMarket
	default:
		return futures.OrderTypeLimit
	}
}

func (c *Client) CreateOrder(ctx context.Context, req exchange.OrderRequest) (core.Order, error) {
	svc := c.api.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(wireOrderType(req.Type)).
		Quantity(req.Qty.String())
	if !req.Price.IsZero() {
		svc = svc.Price(req.Price.String())
	}
	if !req.StopPrice.IsZero() {
		svc = svc.StopPrice(req.StopPrice.String())
	}
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}
	if v, ok := req.Params["timeInForce"]; ok {
		svc = svc.TimeInForce(futures.TimeInForceType(v))
	}
	if v, ok := req.Params["workingType"]; ok {
		svc = svc.WorkingType(futures.WorkingType(v))
	}
	if req.Params["reduceOnly"] == "true" {
		svc = svc.ReduceOnly(true)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return core.Order{}, err
	}
	if c.audit != nil {
		if err := c.audit.Record("venue_create_order", req.Symbol, res); err != nil {
			c.log.Warn("audit record failed", zap.Error(err))
		}
	}
	return orderFromResponse(res)
}

func orderFromResponse(res *futures.CreateOrderResponse) (core.Order, error) {
	price, err := parseWireDecimal(res.Price)
	if err != nil {
		return core.Order{}, fmt.Errorf("parse order price: %w", err)
	}
	stop, err := parseWireDecimal(res.StopPrice)
	if err != nil {
		return core.Order{}, fmt.Errorf("parse order stop price: %w", err)
	}
	qty, err := parseWireDecimal(res.OrigQuantity)
	if err != nil {
		return core.Order{}, fmt.Errorf("parse order quantity: %w", err)
	}
	return core.Order{
		ID:        fmt.Sprintf("%d", res.OrderID),
		ClientID:  res.ClientOrderID,
		Symbol:    res.Symbol,
		Side:      core.Side(res.Side),
		Type:      typeFromWire(res.Type),
		Price:     price,
		StopPrice: stop,
		Qty:       qty,
		Status:    core.OrderStatus(res.Status),
		CreatedAt: time.UnixMilli(res.UpdateTime),
	}, nil
}

func typeFromWire(t futures.OrderType) core.OrderType {
	switch t {
	case futures.OrderType("STOP"):
		return core.StopLossLimit
	case futures.OrderTypeMarket:
		return core.Market
	default:
		return core.Limit
	}
}

func parseWireDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.api.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	return err
}

func (c *Client) LoadLeverageBrackets(ctx context.Context) (map[string][]exchange.RawBracket, error) {
	res, err := c.api.NewGetLeverageBracketService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]exchange.RawBracket, len(res))
	for _, lb := range res {
		raw := make([]exchange.RawBracket, 0, len(lb.Brackets))
		for _, b := range lb.Brackets {
			raw = append(raw, exchange.RawBracket{
				NotionalFloor:    decimal.NewFromFloat(b.NotionalFloor),
				MaintMarginRatio: decimal.NewFromFloat(b.MaintMarginRatio),
			})
		}
		out[lb.Symbol] = raw
	}
	return out, nil
}

func (c *Client) PriceToPrecision(ctx context.Context, symbol string, price decimal.Decimal) (decimal.Decimal, error) {
	rules, err := c.symbolRules(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return core.RoundDown(price, rules.PriceTick), nil
}

func (c *Client) AmountToPrecision(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error) {
	rules, err := c.symbolRules(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return core.RoundDown(amount, rules.QtyStep), nil
}

// symbolRules returns the cached trading filters for symbol, fetching the
// full exchange info once on first use.
func (c *Client) symbolRules(ctx context.Context, symbol string) (core.Rules, error) {
	c.rulesMu.RLock()
	rules, ok := c.rules[symbol]
	c.rulesMu.RUnlock()
	if ok {
		return rules, nil
	}
	if err := c.refreshRules(ctx); err != nil {
		return core.Rules{}, err
	}
	c.rulesMu.RLock()
	rules, ok = c.rules[symbol]
	c.rulesMu.RUnlock()
	if !ok {
		return core.Rules{}, fmt.Errorf("symbol %s not listed", symbol)
	}
	return rules, nil
}

func (c *Client) refreshRules(ctx context.Context) error {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return err
	}
	fresh := make(map[string]core.Rules, len(info.Symbols))
	for _, s := range info.Symbols {
		var rules core.Rules
		if pf := s.PriceFilter(); pf != nil {
			if tick, err := decimal.NewFromString(pf.TickSize); err == nil {
				rules.PriceTick = tick
			}
		}
		if lf := s.LotSizeFilter(); lf != nil {
			if step, err := decimal.NewFromString(lf.StepSize); err == nil {
				rules.QtyStep = step
			}
			if min, err := decimal.NewFromString(lf.MinQuantity); err == nil {
				rules.MinQty = min
			}
		}
		fresh[s.Symbol] = rules
	}
	c.rulesMu.Lock()
	c.rules = fresh
	c.rulesMu.Unlock()
	c.log.Debug("refreshed symbol filters", zap.Int("symbols", len(fresh)))
	return nil
}

func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, since time.Time, limit int) ([]core.Candle, error) {
	svc := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit)
	if !since.IsZero() && since.UnixMilli() >= 0 {
		svc = svc.StartTime(since.UnixMilli())
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	candles := make([]core.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := candleFromKline(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func candleFromKline(k *futures.Kline) (core.Candle, error) {
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return core.Candle{}, fmt.Errorf("parse kline open: %w", err)
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return core.Candle{}, fmt.Errorf("parse kline high: %w", err)
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return core.Candle{}, fmt.Errorf("parse kline low: %w", err)
	}
	cls, err := decimal.NewFromString(k.Close)
	if err != nil {
		return core.Candle{}, fmt.Errorf("parse kline close: %w", err)
	}
	vol, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return core.Candle{}, fmt.Errorf("parse kline volume: %w", err)
	}
	return core.Candle{
		OpenTime: time.UnixMilli(k.OpenTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    cls,
		Volume:   vol,
	}, nil
}
