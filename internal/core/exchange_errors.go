package core

import "errors"

var (
	// ErrInsufficientFunds indicates the venue rejected the action due to insufficient balance or margin.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidOrder indicates the venue rejected the order as invalid (e.g. it would trigger immediately).
	ErrInvalidOrder = errors.New("invalid order")
	// ErrDDoSProtection indicates a rate-limit or IP-ban signal from the venue.
	ErrDDoSProtection = errors.New("ddos protection")
	// ErrTemporary indicates a transient network or exchange failure.
	ErrTemporary = errors.New("temporary exchange error")
	// ErrOperational indicates a configuration or logic fault that must be surfaced to the operator.
	ErrOperational = errors.New("operational error")
	// ErrStopPriceInvalid indicates a stop order whose stop price is not better than its limit price.
	ErrStopPriceInvalid = errors.New("stop price should be better than limit price")
)

// IsRetryable reports whether the translated error is a candidate for retry.
// Only transient and rate-limit conditions qualify; everything else is fatal
// for the call that produced it.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTemporary) || errors.Is(err, ErrDDoSProtection)
}
