package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-adapter/internal/alert"
	"futures-adapter/internal/core"
	"futures-adapter/internal/retry"
)

// Adapter normalizes order placement, stop-loss protection, and leverage
// bracket math over a venue client. One instance per venue session; the
// bracket table is built at startup (futures only) and replaced wholesale
// on refresh, so concurrent margin lookups never observe a partial build.
type Adapter struct {
	venue   VenueClient
	quirks  Quirks
	log     *zap.Logger
	audit   AuditSink
	alerts  alert.Alerter
	dryRun  bool
	futures bool

	limitRatio  decimal.Decimal
	retryPolicy retry.Policy

	bracketMu sync.RWMutex
	brackets  map[string][]BracketTier

	seqMu     sync.Mutex
	dryRunSeq int
}

type Options struct {
	Venue       VenueClient
	Quirks      Quirks
	Logger      *zap.Logger
	Audit       AuditSink
	Alerts      alert.Alerter
	DryRun      bool
	Futures     bool
	LimitRatio  decimal.Decimal
	RetryPolicy retry.Policy
}

func New(opts Options) (*Adapter, error) {
	if opts.Venue == nil {
		return nil, errors.New("venue client required")
	}
	if opts.Quirks == nil {
		return nil, errors.New("venue quirks required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limitRatio := opts.LimitRatio
	if limitRatio.Cmp(decimal.Zero) <= 0 {
		limitRatio = decimal.RequireFromString("0.99")
	}
	policy := opts.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.Default()
	}
	return &Adapter{
		venue:       opts.Venue,
		quirks:      opts.Quirks,
		log:         log,
		audit:       opts.Audit,
		alerts:      opts.Alerts,
		dryRun:      opts.DryRun,
		futures:     opts.Futures,
		limitRatio:  limitRatio,
		retryPolicy: policy,
		brackets:    make(map[string][]BracketTier),
	}, nil
}

// RefreshBrackets rebuilds the leverage bracket table from the venue.
// The table is swapped in one assignment; readers keep seeing the previous
// table until the new one is complete.
func (a *Adapter) RefreshBrackets(ctx context.Context) error {
	raw, err := retry.DoValue(ctx, a.retryPolicy, func() (map[string][]RawBracket, error) {
		brackets, err := a.venue.LoadLeverageBrackets(ctx)
		if err != nil {
			return nil, a.quirks.TranslateError("load leverage brackets", err)
		}
		return brackets, nil
	})
	if err != nil {
		return err
	}
	table := make(map[string][]BracketTier, len(raw))
	for symbol, tiers := range raw {
		table[symbol] = a.quirks.DeriveBrackets(tiers)
	}
	a.bracketMu.Lock()
	a.brackets = table
	a.bracketMu.Unlock()
	a.log.Info("leverage brackets refreshed",
		zap.String("venue", a.venue.Name()),
		zap.Int("instruments", len(table)))
	return nil
}

// lookupTier scans from the highest notional floor down and returns the
// first tier whose floor does not exceed the notional value. The floor
// boundary is inclusive.
func (a *Adapter) lookupTier(symbol string, notional decimal.Decimal) (tier BracketTier, known, found bool) {
	a.bracketMu.RLock()
	tiers, ok := a.brackets[symbol]
	a.bracketMu.RUnlock()
	if !ok {
		return BracketTier{}, false, false
	}
	for i := len(tiers) - 1; i >= 0; i-- {
		if notional.Cmp(tiers[i].NotionalFloor) >= 0 {
			return tiers[i], true, true
		}
	}
	return BracketTier{}, true, false
}

// MaxLeverage returns the maximum leverage the instrument can be traded at
// for the given notional value. Instruments absent from the bracket table
// carry no known restriction and report 1.0.
func (a *Adapter) MaxLeverage(symbol string, notional decimal.Decimal) decimal.Decimal {
	tier, known, found := a.lookupTier(symbol, notional)
	if !known || !found {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(1).Div(tier.MaintMarginRatio)
}

// MaintenanceRatioAndAmt returns the maintenance margin ratio and amount for
// a position's notional value. The notional value is mandatory: a
// liquidation price computed without it is meaningless.
func (a *Adapter) MaintenanceRatioAndAmt(symbol string, notional *decimal.Decimal) (MaintenanceLookup, error) {
	if notional == nil {
		return MaintenanceLookup{}, fmt.Errorf("notional value is required for maintenance lookup: %w", core.ErrOperational)
	}
	tier, known, found := a.lookupTier(symbol, *notional)
	if !known {
		return MaintenanceLookup{}, fmt.Errorf("cannot calculate liquidation price for %s: %w", symbol, core.ErrInvalidOrder)
	}
	if !found {
		return MaintenanceLookup{}, nil
	}
	return MaintenanceLookup{
		Ratio:  tier.MaintMarginRatio,
		Amount: tier.MaintAmount,
		Found:  true,
	}, nil
}

// FundingFeeCutoff reports whether a position opened at openTime is charged
// the funding fee of its opening interval. The boundary is a venue quirk.
func (a *Adapter) FundingFeeCutoff(openTime time.Time) bool {
	return a.quirks.FundingFeeCutoff(openTime)
}
