package binance

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"futures-adapter/internal/core"
	"futures-adapter/internal/exchange"
)

// leverage_brackets.json is a point-in-time copy of the venue's bracket
// table, trimmed to the symbols the paper venue serves. Each entry is
// [notionalFloor, maintMarginRatio], ascending by floor.
//
//go:embed leverage_brackets.json
var snapshotJSON []byte

// SnapshotBrackets decodes the embedded bracket table. A corrupt snapshot
// is an operational failure, not a bad order.
func SnapshotBrackets() (map[string][]exchange.RawBracket, error) {
	dec := json.NewDecoder(bytes.NewReader(snapshotJSON))
	dec.UseNumber()
	var raw map[string][][2]json.Number
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bracket snapshot: %w", errJoinOperational(err))
	}
	out := make(map[string][]exchange.RawBracket, len(raw))
	for symbol, tiers := range raw {
		brackets := make([]exchange.RawBracket, 0, len(tiers))
		for _, t := range tiers {
			floor, err := decimal.NewFromString(t[0].String())
			if err != nil {
				return nil, fmt.Errorf("bracket snapshot %s: bad floor: %w", symbol, errJoinOperational(err))
			}
			ratio, err := decimal.NewFromString(t[1].String())
			if err != nil {
				return nil, fmt.Errorf("bracket snapshot %s: bad ratio: %w", symbol, errJoinOperational(err))
			}
			brackets = append(brackets, exchange.RawBracket{
				NotionalFloor:    floor,
				MaintMarginRatio: ratio,
			})
		}
		out[symbol] = brackets
	}
	return out, nil
}

func errJoinOperational(err error) error {
	return fmt.Errorf("%w: %w", core.ErrOperational, err)
}
