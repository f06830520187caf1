// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eventlog decodes FHE executor logs into operation records and
// encodes records back into logs.
package eventlog

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/fhemock/handle"
	"github.com/luxfi/fhemock/ops"
)

var (
	ErrUnknownEvent     = errors.New("unknown executor event")
	ErrMalformedLog     = errors.New("malformed executor log")
	ErrNotInABI         = errors.New("event not declared in executor ABI")
	ErrDuplicateDecoder = errors.New("decoder already registered")
)

// Event is one decoded executor log.
type Event struct {
	Name   string
	Caller common.Address
	Record ops.Record
}

// Filter selects the logs DecodeLogs considers.
type Filter struct {
	// Executor, when non-zero, drops logs emitted by any other contract.
	Executor common.Address
}

// Match reports whether l passes f.
func (f Filter) Match(l *types.Log) bool {
	if l.Removed || len(l.Topics) == 0 {
		return false
	}
	return f.Executor == (common.Address{}) || l.Address == f.Executor
}

// Decode decodes one log. Logs of events outside the executor ABI return
// false with no error.
func Decode(l *types.Log) (Event, bool, error) {
	if len(l.Topics) == 0 {
		return Event{}, false, nil
	}
	event, fields, err := ExecutorABI.UnpackEvent(l.Topics, l.Data)
	if errors.Is(err, ErrUnknownEvent) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, err
	}
	fn, ok := Lookup(event.Name)
	if !ok {
		return Event{}, false, nil
	}

	caller, err := field[common.Address](event.Name, fields, "caller")
	if err != nil {
		return Event{}, false, err
	}
	rec, err := fn(event.Name, fields)
	if err != nil {
		return Event{}, false, err
	}
	return Event{Name: event.Name, Caller: caller, Record: rec}, true, nil
}

// DecodeLogs decodes the logs passing f in order, skipping unknown events.
func DecodeLogs(logs []types.Log, f Filter) ([]Event, error) {
	out := make([]Event, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		if !f.Match(l) {
			continue
		}
		ev, ok, err := Decode(l)
		if err != nil {
			return nil, fmt.Errorf("log %d (tx %s index %d): %w", i, l.TxHash.Hex(), l.Index, err)
		}
		if ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func field[T any](event string, fields Fields, name string) (T, error) {
	var zero T
	raw, ok := fields[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s missing %s", ErrMalformedLog, event, name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s is %T, want %T", ErrMalformedLog, event, name, raw, zero)
	}
	return v, nil
}

func hashField(event string, fields Fields, name string) (common.Hash, error) {
	v, err := field[[32]byte](event, fields, name)
	return common.Hash(v), err
}

func typeField(event string, fields Fields, name string) (handle.Type, error) {
	tag, err := field[uint8](event, fields, name)
	if err != nil {
		return 0, err
	}
	return handle.CheckType(tag)
}

func bigField(event string, fields Fields, name string) (*big.Int, error) {
	v, err := field[*big.Int](event, fields, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return new(big.Int), nil
	}
	return v, nil
}

// results reads the named hash fields in order.
func results(event string, fields Fields, names ...string) ([]common.Hash, error) {
	out := make([]common.Hash, len(names))
	for i, name := range names {
		h, err := hashField(event, fields, name)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func kindOf(name string) (ops.Kind, error) {
	k, ok := ops.KindByName(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	return k, nil
}

func decodeTrivialEncrypt(name string, fields Fields) (ops.Record, error) {
	pt, err := bigField(name, fields, "pt")
	if err != nil {
		return nil, err
	}
	typ, err := typeField(name, fields, "toType")
	if err != nil {
		return nil, err
	}
	result, err := hashField(name, fields, "result")
	if err != nil {
		return nil, err
	}
	return &ops.TrivialEncrypt{Value: pt, Type: typ, ResultHandle: result}, nil
}

func decodeVerify(name string, fields Fields) (ops.Record, error) {
	hs, err := results(name, fields, "inputHandle", "result")
	if err != nil {
		return nil, err
	}
	user, err := field[common.Address](name, fields, "userAddress")
	if err != nil {
		return nil, err
	}
	return &ops.Verify{Input: hs[0], User: user, ResultHandle: hs[1]}, nil
}

func decodeScalarBinary(name string, fields Fields) (ops.Record, error) {
	k, err := kindOf(name)
	if err != nil {
		return nil, err
	}
	hs, err := results(name, fields, "lhs", "rhs", "result")
	if err != nil {
		return nil, err
	}
	sb, err := field[[1]byte](name, fields, "scalarByte")
	if err != nil {
		return nil, err
	}
	return ops.NewBinary(k, hs[0], hs[1], sb[0], hs[2])
}

func decodeBitwise(name string, fields Fields) (ops.Record, error) {
	k, err := kindOf(name)
	if err != nil {
		return nil, err
	}
	hs, err := results(name, fields, "lhs", "rhs", "result")
	if err != nil {
		return nil, err
	}
	return ops.NewBinary(k, hs[0], hs[1], 0, hs[2])
}

func decodeCast(name string, fields Fields) (ops.Record, error) {
	hs, err := results(name, fields, "ct", "result")
	if err != nil {
		return nil, err
	}
	typ, err := typeField(name, fields, "toType")
	if err != nil {
		return nil, err
	}
	return &ops.Cast{Input: hs[0], ToType: typ, ResultHandle: hs[1]}, nil
}

func decodeUnary(name string, fields Fields) (ops.Record, error) {
	k, err := kindOf(name)
	if err != nil {
		return nil, err
	}
	hs, err := results(name, fields, "ct", "result")
	if err != nil {
		return nil, err
	}
	return ops.NewUnary(k, hs[0], hs[1])
}

func decodeIfThenElse(name string, fields Fields) (ops.Record, error) {
	hs, err := results(name, fields, "control", "ifTrue", "ifFalse", "result")
	if err != nil {
		return nil, err
	}
	return &ops.IfThenElse{Control: hs[0], IfTrue: hs[1], IfFalse: hs[2], ResultHandle: hs[3]}, nil
}

func decodeRand(name string, fields Fields) (ops.Record, error) {
	seed, err := field[[16]byte](name, fields, "seed")
	if err != nil {
		return nil, err
	}
	typ, err := typeField(name, fields, "randType")
	if err != nil {
		return nil, err
	}
	result, err := hashField(name, fields, "result")
	if err != nil {
		return nil, err
	}
	return &ops.Rand{Seed: seed, Type: typ, ResultHandle: result}, nil
}

func decodeRandBounded(name string, fields Fields) (ops.Record, error) {
	bound, err := bigField(name, fields, "upperBound")
	if err != nil {
		return nil, err
	}
	typ, err := typeField(name, fields, "randType")
	if err != nil {
		return nil, err
	}
	result, err := hashField(name, fields, "result")
	if err != nil {
		return nil, err
	}
	return &ops.Rand{Type: typ, Bound: bound, ResultHandle: result}, nil
}
