package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"futures-adapter/internal/core"
)

// VenueClient is the narrow surface the adapter needs from a venue.
// Implementations raise raw transport/business errors; the adapter passes
// every failure through the venue's error translation before it escapes.
type VenueClient interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (core.Order, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	LoadLeverageBrackets(ctx context.Context) (map[string][]RawBracket, error)
	PriceToPrecision(ctx context.Context, symbol string, price decimal.Decimal) (decimal.Decimal, error)
	AmountToPrecision(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error)
	FetchCandles(ctx context.Context, symbol, interval string, since time.Time, limit int) ([]core.Candle, error)
}

// Quirks captures per-venue behavior the generic adapter delegates: bracket
// derivation, stop-order shaping, funding-fee cutoff, and error
// classification. One implementation per venue, selected at construction.
type Quirks interface {
	DeriveBrackets(raw []RawBracket) []BracketTier
	StopOrderParams(req OrderRequest) map[string]string
	FundingFeeCutoff(openTime time.Time) bool
	TranslateError(op string, err error) error
}

type OrderRequest struct {
	Symbol    string
	Side      core.Side
	Type      core.OrderType
	Qty       decimal.Decimal
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	ClientID  string
	Params    map[string]string
}

// RawBracket is one maintenance-margin tier as the venue reports it.
// The maintenance amount is never input; it is always derived.
type RawBracket struct {
	NotionalFloor    decimal.Decimal
	MaintMarginRatio decimal.Decimal
}

type BracketTier struct {
	NotionalFloor    decimal.Decimal
	MaintMarginRatio decimal.Decimal
	MaintAmount      decimal.Decimal
}

// MaintenanceLookup reports the qualifying tier's ratio and amount.
// Found is false when the notional value is below every tier floor.
type MaintenanceLookup struct {
	Ratio  decimal.Decimal
	Amount decimal.Decimal
	Found  bool
}

// AuditSink receives venue interactions worth keeping: raw create-order
// responses and locally synthesized dry-run orders.
type AuditSink interface {
	Record(event, symbol string, payload any) error
}
