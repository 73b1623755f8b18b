package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"

	"futures-adapter/internal/core"
	"futures-adapter/internal/retry"
)

const candleBatchLimit = 1000

// HistoricCandles backfills candles from since to the newest available.
//
// For a newly listed instrument it first probes the venue with a batch
// anchored at timestamp zero; if the earliest candle is younger than the
// requested window the window start is advanced to the listing date, so
// the backfill never asks for pre-listing history the venue would reject.
func (a *Adapter) HistoricCandles(ctx context.Context, symbol, interval string, since time.Time, isNewPair bool) ([]core.Candle, error) {
	if isNewPair {
		probe, err := retry.DoValue(ctx, a.retryPolicy, func() ([]core.Candle, error) {
			batch, err := a.venue.FetchCandles(ctx, symbol, interval, time.UnixMilli(0), candleBatchLimit)
			if err != nil {
				return nil, a.quirks.TranslateError("probe listing date", err)
			}
			return batch, nil
		})
		if err != nil {
			return nil, err
		}
		if len(probe) > 0 && probe[0].OpenTime.After(since) {
			since = probe[0].OpenTime
			a.log.Info("candle data available later than requested",
				zap.String("symbol", symbol),
				zap.Time("first_candle", since))
		}
	}
	return a.fetchHistoric(ctx, symbol, interval, since)
}

func (a *Adapter) fetchHistoric(ctx context.Context, symbol, interval string, since time.Time) ([]core.Candle, error) {
	var out []core.Candle
	for {
		batch, err := retry.DoValue(ctx, a.retryPolicy, func() ([]core.Candle, error) {
			candles, err := a.venue.FetchCandles(ctx, symbol, interval, since, candleBatchLimit)
			if err != nil {
				return nil, a.quirks.TranslateError("fetch candles", err)
			}
			return candles, nil
		})
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		out = append(out, batch...)
		last := batch[len(batch)-1].OpenTime
		if !last.After(since) {
			break
		}
		since = last.Add(time.Millisecond)
		if len(batch) < candleBatchLimit {
			break
		}
	}
	return out, nil
}
