// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eventlog

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/fhemock/ops"
)

// Encode packs r into the log the executor at executor would emit when
// called by caller.
func Encode(executor, caller common.Address, r ops.Record) (types.Log, error) {
	args, err := eventArgs(r)
	if err != nil {
		return types.Log{}, err
	}
	topics, data, err := ExecutorABI.PackEvent(r.Kind().String(), append([]interface{}{caller}, args...)...)
	if err != nil {
		return types.Log{}, fmt.Errorf("encode %s: %w", r.Kind(), err)
	}
	return types.Log{Address: executor, Topics: topics, Data: data}, nil
}

// EncodeAll encodes records in order, numbering the logs from zero.
func EncodeAll(executor, caller common.Address, records []ops.Record) ([]types.Log, error) {
	logs := make([]types.Log, len(records))
	for i, r := range records {
		l, err := Encode(executor, caller, r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		l.Index = uint(i)
		logs[i] = l
	}
	return logs, nil
}

// eventArgs returns the non-caller arguments of r in ABI order.
func eventArgs(r ops.Record) ([]interface{}, error) {
	switch r := r.(type) {
	case *ops.TrivialEncrypt:
		return []interface{}{orZero(r.Value), uint8(r.Type), r.ResultHandle}, nil
	case *ops.Verify:
		return []interface{}{r.Input, r.User, r.ResultHandle}, nil
	case *ops.Binary:
		if r.Op.IsScalarCapable() {
			return []interface{}{r.Lhs, r.Rhs, [1]byte{r.ScalarByte()}, r.ResultHandle}, nil
		}
		return []interface{}{r.Lhs, r.Rhs, r.ResultHandle}, nil
	case *ops.Cast:
		return []interface{}{r.Input, uint8(r.ToType), r.ResultHandle}, nil
	case *ops.Unary:
		return []interface{}{r.Input, r.ResultHandle}, nil
	case *ops.IfThenElse:
		return []interface{}{r.Control, r.IfTrue, r.IfFalse, r.ResultHandle}, nil
	case *ops.Rand:
		if r.Bound != nil {
			return []interface{}{r.Bound, uint8(r.Type), r.ResultHandle}, nil
		}
		return []interface{}{r.Seed, uint8(r.Type), r.ResultHandle}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, r)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
