package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-adapter/internal/core"
	"futures-adapter/internal/retry"
)

// StopLossRequest asks the adapter to protect a position with a
// stop-loss-limit order. LimitRatio zero means the configured default.
type StopLossRequest struct {
	Symbol     string
	Side       core.Side
	Qty        decimal.Decimal
	StopPrice  decimal.Decimal
	LimitRatio decimal.Decimal
	Leverage   int
}

// PlaceStopLoss validates and submits a protective stop order.
//
// The submission itself is never retried: a retry after an ambiguous
// failure could leave two live protective orders on the book. Leverage
// setup uses the default bounded retry policy.
func (a *Adapter) PlaceStopLoss(ctx context.Context, req StopLossRequest) (core.Order, error) {
	order, err := a.placeStopLoss(ctx, req)
	if err != nil {
		a.escalateUnprotected(req, err)
		return core.Order{}, err
	}
	return order, nil
}

func (a *Adapter) placeStopLoss(ctx context.Context, req StopLossRequest) (core.Order, error) {
	ratio := req.LimitRatio
	if ratio.Cmp(decimal.Zero) <= 0 {
		ratio = a.limitRatio
	}

	// The limit price sits on the losing side of the stop: below it for a
	// sell stop, above it for a buy stop.
	var limitRate decimal.Decimal
	if req.Side == core.Sell {
		limitRate = req.StopPrice.Mul(ratio)
	} else {
		limitRate = req.StopPrice.Mul(decimal.NewFromInt(2).Sub(ratio))
	}

	stopPrice, err := a.venue.PriceToPrecision(ctx, req.Symbol, req.StopPrice)
	if err != nil {
		return core.Order{}, a.quirks.TranslateError("round stop price", err)
	}

	badStop := stopPrice.Cmp(limitRate) <= 0
	if req.Side == core.Buy {
		badStop = stopPrice.Cmp(limitRate) >= 0
	}
	if badStop {
		return core.Order{}, fmt.Errorf("in stoploss limit order for %s, %w", req.Symbol, core.ErrStopPriceInvalid)
	}

	if a.dryRun {
		return a.dryRunStopOrder(ctx, req, stopPrice, limitRate)
	}

	qty, err := a.venue.AmountToPrecision(ctx, req.Symbol, req.Qty)
	if err != nil {
		return core.Order{}, a.quirks.TranslateError("round amount", err)
	}
	rate, err := a.venue.PriceToPrecision(ctx, req.Symbol, limitRate)
	if err != nil {
		return core.Order{}, a.quirks.TranslateError("round limit price", err)
	}

	if a.futures && req.Leverage > 0 {
		err := a.retryPolicy.Do(ctx, func() error {
			if err := a.venue.SetLeverage(ctx, req.Symbol, req.Leverage); err != nil {
				return a.quirks.TranslateError("set leverage", err)
			}
			return nil
		})
		if err != nil {
			return core.Order{}, err
		}
	}

	oreq := OrderRequest{
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      core.StopLossLimit,
		Qty:       qty,
		Price:     rate,
		StopPrice: stopPrice,
	}
	oreq.Params = a.quirks.StopOrderParams(oreq)

	order, err := retry.DoValue(ctx, retry.None(), func() (core.Order, error) {
		placed, err := a.venue.CreateOrder(ctx, oreq)
		if err != nil {
			return core.Order{}, a.quirks.TranslateError(
				fmt.Sprintf("create stoploss %s order on %s (qty %s, rate %s)", req.Side, req.Symbol, qty, rate), err)
		}
		return placed, nil
	})
	if err != nil {
		return core.Order{}, err
	}
	order.Leverage = req.Leverage

	a.log.Info("stoploss limit order added",
		zap.String("symbol", req.Symbol),
		zap.String("stop_price", stopPrice.String()),
		zap.String("limit", rate.String()))
	if a.audit != nil {
		if err := a.audit.Record("create_stoploss_order", req.Symbol, order); err != nil {
			a.log.Warn("audit record failed", zap.Error(err))
		}
	}
	return order, nil
}

func (a *Adapter) dryRunStopOrder(ctx context.Context, req StopLossRequest, stopPrice, limitRate decimal.Decimal) (core.Order, error) {
	qty, err := a.venue.AmountToPrecision(ctx, req.Symbol, req.Qty)
	if err != nil {
		return core.Order{}, a.quirks.TranslateError("round amount", err)
	}
	rate, err := a.venue.PriceToPrecision(ctx, req.Symbol, limitRate)
	if err != nil {
		return core.Order{}, a.quirks.TranslateError("round limit price", err)
	}

	a.seqMu.Lock()
	a.dryRunSeq++
	id := fmt.Sprintf("dry-%d", a.dryRunSeq)
	a.seqMu.Unlock()

	order := core.Order{
		ID:        id,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      core.StopLossLimit,
		Price:     rate,
		StopPrice: stopPrice,
		Qty:       qty,
		Status:    core.OrderNew,
		Leverage:  req.Leverage,
		DryRun:    true,
		CreatedAt: time.Now().UTC(),
	}
	a.log.Info("dry-run stoploss order recorded",
		zap.String("symbol", req.Symbol),
		zap.String("id", id),
		zap.String("stop_price", stopPrice.String()))
	if a.audit != nil {
		if err := a.audit.Record("dry_run_order", req.Symbol, order); err != nil {
			a.log.Warn("audit record failed", zap.Error(err))
		}
	}
	return order, nil
}

// escalateUnprotected tells the operator a position is left without its
// protective order. The strategy layer decides whether to abort or skip.
func (a *Adapter) escalateUnprotected(req StopLossRequest, err error) {
	a.log.Error("stoploss placement failed, position unprotected",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.Error(err))
	if a.alerts != nil {
		a.alerts.Important("position_unprotected", map[string]string{
			"symbol": req.Symbol,
			"side":   string(req.Side),
			"error":  err.Error(),
		})
	}
}

// StoplossAdjust reports whether an existing protective order needs to be
// replaced to track the new stop level. It only ever tightens: a sell stop
// moves up, a buy stop moves down.
func (a *Adapter) StoplossAdjust(stopLoss decimal.Decimal, order core.Order, side core.Side) bool {
	if order.Type != core.StopLossLimit {
		return false
	}
	if side == core.Sell {
		return stopLoss.Cmp(order.StopPrice) > 0
	}
	return stopLoss.Cmp(order.StopPrice) < 0
}
