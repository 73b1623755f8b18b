package binance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/adshao/go-binance/v2/common"

	"futures-adapter/internal/core"
)

// Binance API error codes the adapter cares about. Everything else falls
// back to message matching, then to the operational catch-all.
const (
	apiCodeTooManyRequests   = -1003
	apiCodeTooManyOrders     = -1015
	apiCodeDisconnected      = -1001
	apiCodeBackendTimeout    = -1007
	apiCodeBadPrecision      = -1111
	apiCodeNewOrderRejected  = -2010
	apiCodeBalanceInsufficnt = -2018
	apiCodeMarginInsufficnt  = -2019
	apiCodeImmediateTrigger  = -2021
	apiCodeMinNotional       = -4164
)

var apiErrorCodeKinds = map[int64]error{
	apiCodeBalanceInsufficnt: core.ErrInsufficientFunds,
	apiCodeMarginInsufficnt:  core.ErrInsufficientFunds,
	apiCodeNewOrderRejected:  core.ErrInvalidOrder,
	apiCodeImmediateTrigger:  core.ErrInvalidOrder,
	apiCodeMinNotional:       core.ErrInvalidOrder,
	apiCodeBadPrecision:      core.ErrInvalidOrder,
	apiCodeTooManyRequests:   core.ErrDDoSProtection,
	apiCodeTooManyOrders:     core.ErrDDoSProtection,
	apiCodeDisconnected:      core.ErrTemporary,
	apiCodeBackendTimeout:    core.ErrTemporary,
}

var apiErrorMessageKinds = []struct {
	needle string
	kind   error
}{
	{"insufficient balance", core.ErrInsufficientFunds},
	{"margin is insufficient", core.ErrInsufficientFunds},
	{"would immediately trigger", core.ErrInvalidOrder},
	{"too many requests", core.ErrDDoSProtection},
	{"banned until", core.ErrDDoSProtection},
}

// translateError maps a raw venue failure into the adapter taxonomy,
// keeping the original error in the chain. Context cancellation passes
// through untouched so retry loops can abort cleanly.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w", op, errors.Join(err, classifyError(err)))
}

func classifyError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// Code 0 means the body was not Binance JSON, which happens when a
		// proxy or gateway answers with an HTML 5xx page. That is a
		// transport failure, not a venue verdict.
		if apiErr.Code == 0 {
			return core.ErrTemporary
		}
		if kind, ok := apiErrorCodeKinds[apiErr.Code]; ok {
			return kind
		}
		msg := strings.ToLower(apiErr.Message)
		for _, m := range apiErrorMessageKinds {
			if strings.Contains(msg, m.needle) {
				return m.kind
			}
		}
		return core.ErrOperational
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.ErrTemporary
	}
	return core.ErrOperational
}
