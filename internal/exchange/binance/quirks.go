package binance

import (
	"time"

	"github.com/shopspring/decimal"

	"futures-adapter/internal/exchange"
)

// Quirks is the Binance venue behavior plugged into the generic adapter.
type Quirks struct{}

// DeriveBrackets derives maintenance amounts from raw tiers using Binance's
// published formula: the first tier's amount is zero, and each following
// tier adds its floor times the ratio step to the previous amount. Tiers
// arrive ascending by notional floor and are kept in that order.
func (Quirks) DeriveBrackets(raw []exchange.RawBracket) []exchange.BracketTier {
	tiers := make([]exchange.BracketTier, 0, len(raw))
	var prevAmount, prevRatio decimal.Decimal
	for i, b := range raw {
		amount := decimal.Zero
		if i > 0 {
			amount = prevAmount.Add(b.NotionalFloor.Mul(b.MaintMarginRatio.Sub(prevRatio)))
		}
		tiers = append(tiers, exchange.BracketTier{
			NotionalFloor:    b.NotionalFloor,
			MaintMarginRatio: b.MaintMarginRatio,
			MaintAmount:      amount,
		})
		prevAmount = amount
		prevRatio = b.MaintMarginRatio
	}
	return tiers
}

// StopOrderParams shapes the venue-specific extras of a protective order.
// Binance futures wants an explicit trigger price source and time in force,
// and the order must only ever reduce the position it protects.
func (Quirks) StopOrderParams(req exchange.OrderRequest) map[string]string {
	return map[string]string{
		"timeInForce": "GTC",
		"workingType": "CONTRACT_PRICE",
		"reduceOnly":  "true",
	}
}

// FundingFeeCutoff reports whether a position opened at openTime pays the
// funding fee of its opening interval. Binance settles on the hour with a
// 15 second grace window.
func (Quirks) FundingFeeCutoff(openTime time.Time) bool {
	return openTime.Minute() > 0 || (openTime.Minute() == 0 && openTime.Second() > 15)
}

// TranslateError is the uniform error translation applied to every venue
// call; see errors.go for the classification table.
func (Quirks) TranslateError(op string, err error) error {
	return translateError(op, err)
}
