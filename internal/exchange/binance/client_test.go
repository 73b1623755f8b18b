package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"futures-adapter/internal/core"
	"futures-adapter/internal/exchange"
)

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/exchangeInfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"symbols": [{
				"symbol": "BTCUSDT",
				"status": "TRADING",
				"filters": [
					{"filterType": "PRICE_FILTER", "tickSize": "0.10", "minPrice": "0.10", "maxPrice": "1000000"},
					{"filterType": "LOT_SIZE", "stepSize": "0.001", "minQty": "0.001", "maxQty": "1000"}
				]
			}]
		}`))
	})
	mux.HandleFunc("/fapi/v1/order", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"orderId": 4242,
			"clientOrderId": "sl-1",
			"symbol": "BTCUSDT",
			"side": "SELL",
			"type": "STOP",
			"price": "99.0",
			"origQty": "0.500",
			"stopPrice": "100.0",
			"status": "NEW",
			"updateTime": 1714550400000
		}`))
	})
	mux.HandleFunc("/fapi/v1/leverage", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"leverage": 5, "maxNotionalValue": "1000000", "symbol": "BTCUSDT"}`))
	})
	mux.HandleFunc("/fapi/v1/leverageBracket", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"symbol": "BTCUSDT",
			"brackets": [
				{"bracket": 1, "initialLeverage": 125, "notionalCap": 50000, "notionalFloor": 0, "maintMarginRatio": 0.004, "cum": 0},
				{"bracket": 2, "initialLeverage": 100, "notionalCap": 250000, "notionalFloor": 50000, "maintMarginRatio": 0.005, "cum": 50}
			]
		}]`))
	})
	mux.HandleFunc("/fapi/v1/klines", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			[1714550400000, "100.0", "101.0", "99.5", "100.5", "12.5", 1714550459999, "1256.2", 100, "6.2", "623.1", "0"],
			[1714550460000, "100.5", "102.0", "100.0", "101.5", "9.1", 1714550519999, "921.6", 80, "4.5", "455.0", "0"]
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, audit exchange.AuditSink) *Client {
	t.Helper()
	srv := newFixtureServer(t)
	return NewClient(Options{
		APIKey:    "test-key",
		APISecret: "test-secret",
		BaseURL:   srv.URL,
		Audit:     audit,
	})
}

type memAudit struct {
	events []string
}

func (m *memAudit) Record(event, _ string, _ any) error {
	m.events = append(m.events, event)
	return nil
}

func TestClientCreateOrder(t *testing.T) {
	audit := &memAudit{}
	c := newTestClient(t, audit)
	order, err := c.CreateOrder(context.Background(), exchange.OrderRequest{
		Symbol:    "BTCUSDT",
		Side:      core.Sell,
		Type:      core.StopLossLimit,
		Qty:       dec(t, "0.5"),
		Price:     dec(t, "99.0"),
		StopPrice: dec(t, "100.0"),
		ClientID:  "sl-1",
		Params: map[string]string{
			"timeInForce": "GTC",
			"workingType": "CONTRACT_PRICE",
			"reduceOnly":  "true",
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "4242" {
		t.Fatalf("order ID = %q, want 4242", order.ID)
	}
	if order.Type != core.StopLossLimit {
		t.Fatalf("order type = %q, want %q", order.Type, core.StopLossLimit)
	}
	if order.Status != core.OrderNew {
		t.Fatalf("order status = %q, want NEW", order.Status)
	}
	if !order.StopPrice.Equal(dec(t, "100")) {
		t.Fatalf("stop price = %s, want 100", order.StopPrice)
	}
	if len(audit.events) != 1 || audit.events[0] != "venue_create_order" {
		t.Fatalf("audit events = %v, want [venue_create_order]", audit.events)
	}
}

type failingAudit struct {
	calls int
}

func (f *failingAudit) Record(string, string, any) error {
	f.calls++
	return errors.New("audit disk full")
}

func TestClientCreateOrderSurvivesAuditFailure(t *testing.T) {
	audit := &failingAudit{}
	c := newTestClient(t, audit)
	order, err := c.CreateOrder(context.Background(), exchange.OrderRequest{
		Symbol:    "BTCUSDT",
		Side:      core.Sell,
		Type:      core.StopLossLimit,
		Qty:       dec(t, "0.5"),
		Price:     dec(t, "99.0"),
		StopPrice: dec(t, "100.0"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "4242" {
		t.Fatalf("order ID = %q, want 4242", order.ID)
	}
	if audit.calls != 1 {
		t.Fatalf("audit calls = %d, want 1", audit.calls)
	}
}

func TestClientLoadLeverageBrackets(t *testing.T) {
	c := newTestClient(t, nil)
	brackets, err := c.LoadLeverageBrackets(context.Background())
	if err != nil {
		t.Fatalf("LoadLeverageBrackets: %v", err)
	}
	raw, ok := brackets["BTCUSDT"]
	if !ok {
		t.Fatalf("BTCUSDT missing from bracket table")
	}
	if len(raw) != 2 {
		t.Fatalf("tiers = %d, want 2", len(raw))
	}
	if !raw[1].NotionalFloor.Equal(dec(t, "50000")) {
		t.Fatalf("second tier floor = %s, want 50000", raw[1].NotionalFloor)
	}
	if !raw[1].MaintMarginRatio.Equal(dec(t, "0.005")) {
		t.Fatalf("second tier ratio = %s, want 0.005", raw[1].MaintMarginRatio)
	}
}

func TestClientPrecisionFromFilters(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()

	price, err := c.PriceToPrecision(ctx, "BTCUSDT", dec(t, "100.157"))
	if err != nil {
		t.Fatalf("PriceToPrecision: %v", err)
	}
	if !price.Equal(dec(t, "100.1")) {
		t.Fatalf("price = %s, want 100.1", price)
	}

	qty, err := c.AmountToPrecision(ctx, "BTCUSDT", dec(t, "0.123456"))
	if err != nil {
		t.Fatalf("AmountToPrecision: %v", err)
	}
	if !qty.Equal(dec(t, "0.123")) {
		t.Fatalf("qty = %s, want 0.123", qty)
	}

	if _, err := c.PriceToPrecision(ctx, "DOGEUSDT", dec(t, "1")); err == nil {
		t.Fatalf("expected error for unlisted symbol")
	}
}

func TestClientGatewayErrorStaysRetryable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/leverageBracket", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>502 Bad Gateway</html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(Options{APIKey: "test-key", APISecret: "test-secret", BaseURL: srv.URL})

	_, err := c.LoadLeverageBrackets(context.Background())
	if err == nil {
		t.Fatalf("expected gateway failure")
	}
	translated := Quirks{}.TranslateError("load leverage brackets", err)
	if !core.IsRetryable(translated) {
		t.Fatalf("translated gateway failure not retryable: %v", translated)
	}
}

func TestClientSetLeverage(t *testing.T) {
	c := newTestClient(t, nil)
	if err := c.SetLeverage(context.Background(), "BTCUSDT", 5); err != nil {
		t.Fatalf("SetLeverage: %v", err)
	}
}

func TestClientFetchCandles(t *testing.T) {
	c := newTestClient(t, nil)
	since := time.UnixMilli(1714550400000)
	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1m", since, 500)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2", len(candles))
	}
	if !candles[0].OpenTime.Equal(since) {
		t.Fatalf("first open time = %v, want %v", candles[0].OpenTime, since)
	}
	if !candles[1].Close.Equal(dec(t, "101.5")) {
		t.Fatalf("second close = %s, want 101.5", candles[1].Close)
	}
}
