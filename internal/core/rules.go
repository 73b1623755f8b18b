package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQty       = errors.New("invalid qty")
	ErrBelowMinQty      = errors.New("qty below min")
	ErrBelowMinNotional = errors.New("notional below min")
)

// NormalizeStopOrder rounds a stop order's prices and qty to the venue rules
// and applies the minimum qty/notional checks. Prices are validated against
// zero after rounding so a tick larger than the price cannot slip through.
func NormalizeStopOrder(order Order, rules Rules) (Order, error) {
	if order.Qty.Cmp(decimal.Zero) <= 0 {
		return order, ErrInvalidQty
	}
	if rules.QtyStep.Cmp(decimal.Zero) > 0 {
		order.Qty = RoundDown(order.Qty, rules.QtyStep)
	}
	if order.Qty.Cmp(decimal.Zero) <= 0 {
		return order, ErrInvalidQty
	}
	if rules.MinQty.Cmp(decimal.Zero) > 0 && order.Qty.Cmp(rules.MinQty) < 0 {
		return order, ErrBelowMinQty
	}
	if rules.PriceTick.Cmp(decimal.Zero) > 0 {
		order.Price = RoundDown(order.Price, rules.PriceTick)
		order.StopPrice = RoundDown(order.StopPrice, rules.PriceTick)
	}
	if order.Price.Cmp(decimal.Zero) <= 0 || order.StopPrice.Cmp(decimal.Zero) <= 0 {
		return order, errors.New("invalid order price")
	}
	if rules.MinNotional.Cmp(decimal.Zero) > 0 {
		notional := order.Price.Mul(order.Qty)
		if notional.Cmp(rules.MinNotional) < 0 {
			return order, ErrBelowMinNotional
		}
	}
	return order, nil
}

func RoundDown(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}
