package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeStopOrderRoundsPricesAndQty(t *testing.T) {
	order := Order{
		Symbol:    "BTCUSDT",
		Side:      Sell,
		Type:      StopLossLimit,
		Price:     decimal.RequireFromString("99.037"),
		StopPrice: decimal.RequireFromString("100.019"),
		Qty:       decimal.RequireFromString("0.123456"),
	}
	rules := Rules{
		MinQty:      decimal.RequireFromString("0.01"),
		MinNotional: decimal.RequireFromString("10"),
		PriceTick:   decimal.RequireFromString("0.01"),
		QtyStep:     decimal.RequireFromString("0.001"),
	}

	got, err := NormalizeStopOrder(order, rules)
	if err != nil {
		t.Fatalf("NormalizeStopOrder() error = %v", err)
	}
	if !got.Price.Equal(decimal.RequireFromString("99.03")) {
		t.Fatalf("unexpected rounded price: %s", got.Price)
	}
	if !got.StopPrice.Equal(decimal.RequireFromString("100.01")) {
		t.Fatalf("unexpected rounded stop price: %s", got.StopPrice)
	}
	if !got.Qty.Equal(decimal.RequireFromString("0.123")) {
		t.Fatalf("unexpected rounded qty: %s", got.Qty)
	}
}

func TestNormalizeStopOrderBelowMinQty(t *testing.T) {
	order := Order{
		Symbol:    "BTCUSDT",
		Side:      Sell,
		Type:      StopLossLimit,
		Price:     decimal.RequireFromString("99"),
		StopPrice: decimal.RequireFromString("100"),
		Qty:       decimal.RequireFromString("0.009"),
	}
	rules := Rules{
		MinQty: decimal.RequireFromString("0.01"),
	}

	_, err := NormalizeStopOrder(order, rules)
	if !errors.Is(err, ErrBelowMinQty) {
		t.Fatalf("NormalizeStopOrder() error = %v, want %v", err, ErrBelowMinQty)
	}
}

func TestNormalizeStopOrderBelowMinNotional(t *testing.T) {
	order := Order{
		Symbol:    "BTCUSDT",
		Side:      Sell,
		Type:      StopLossLimit,
		Price:     decimal.RequireFromString("5"),
		StopPrice: decimal.RequireFromString("5.1"),
		Qty:       decimal.RequireFromString("1"),
	}
	rules := Rules{
		MinNotional: decimal.RequireFromString("10"),
	}

	_, err := NormalizeStopOrder(order, rules)
	if !errors.Is(err, ErrBelowMinNotional) {
		t.Fatalf("NormalizeStopOrder() error = %v, want %v", err, ErrBelowMinNotional)
	}
}

func TestRoundDown(t *testing.T) {
	got := RoundDown(decimal.RequireFromString("100.037"), decimal.RequireFromString("0.01"))
	if !got.Equal(decimal.RequireFromString("100.03")) {
		t.Fatalf("RoundDown() = %s, want 100.03", got)
	}
	untouched := RoundDown(decimal.RequireFromString("100.037"), decimal.Zero)
	if !untouched.Equal(decimal.RequireFromString("100.037")) {
		t.Fatalf("RoundDown() with zero step = %s, want 100.037", untouched)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrTemporary) {
		t.Fatal("temporary errors should be retryable")
	}
	if !IsRetryable(ErrDDoSProtection) {
		t.Fatal("ddos protection should be retryable")
	}
	if IsRetryable(ErrInsufficientFunds) {
		t.Fatal("insufficient funds should not be retryable")
	}
	if IsRetryable(ErrInvalidOrder) {
		t.Fatal("invalid order should not be retryable")
	}
	if IsRetryable(ErrOperational) {
		t.Fatal("operational errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatal("nil should not be retryable")
	}
}
