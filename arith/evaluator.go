// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package arith computes the plaintext effect of every coprocessor operation
// against a shadow store.
package arith

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/zeebo/blake3"

	"github.com/luxfi/fhemock/handle"
	"github.com/luxfi/fhemock/ops"
	"github.com/luxfi/fhemock/shadow"
)

// VerifySentinel is seeded for a verified input nobody pre-seeded.
const VerifySentinel = 1

var (
	ErrMalformedCondition = errors.New("select condition is neither 0 nor 1")
	ErrInvalidBound       = errors.New("random upper bound must be positive")
	ErrUnknownRecord      = errors.New("unknown operation record")
)

// Options tune the evaluator.
type Options struct {
	// LenientConditions treats any non-zero select condition as true.
	LenientConditions bool
	// Seed keys the random generator; equal seeds replay equal values.
	Seed [32]byte
}

// Evaluator applies records to a shadow store in log order.
type Evaluator struct {
	store *shadow.Store
	opts  Options
}

// New returns an evaluator writing into store.
func New(store *shadow.Store, opts Options) *Evaluator {
	return &Evaluator{store: store, opts: opts}
}

// Apply computes the clear-text result of r and stores it under r.Result().
func (e *Evaluator) Apply(r ops.Record) error {
	switch r := r.(type) {
	case *ops.TrivialEncrypt:
		return e.trivialEncrypt(r)
	case *ops.Verify:
		return e.verify(r)
	case *ops.Binary:
		return e.binary(r)
	case *ops.Cast:
		return e.cast(r)
	case *ops.Unary:
		return e.unary(r)
	case *ops.IfThenElse:
		return e.ifThenElse(r)
	case *ops.Rand:
		return e.random(r)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownRecord, r)
	}
}

func (e *Evaluator) trivialEncrypt(r *ops.TrivialEncrypt) error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: trivial encrypt to %s", handle.ErrInvalidType, r.Type)
	}
	v := new(big.Int)
	if r.Value != nil {
		v.Set(r.Value)
	}
	return e.store.Put(r.ResultHandle, wrap(v, r.Type.Bits()), true)
}

func (e *Evaluator) verify(r *ops.Verify) error {
	ok, err := e.store.MarkUsed(r.ResultHandle)
	if err != nil || ok {
		return err
	}
	in, ok, err := e.store.Entry(r.Input)
	if err != nil {
		return err
	}
	if ok {
		return e.store.Put(r.ResultHandle, in.Value, true)
	}
	return e.store.Put(r.ResultHandle, big.NewInt(VerifySentinel), true)
}

func (e *Evaluator) binary(r *ops.Binary) error {
	typ, err := handle.TypeOf(r.Lhs)
	if err != nil {
		return err
	}
	a, err := e.store.Get(r.Lhs)
	if err != nil {
		return err
	}
	var b *big.Int
	if r.Scalar {
		b = r.Immediate()
	} else if b, err = e.store.Get(r.Rhs); err != nil {
		return err
	}

	bits := typ.Bits()
	var v *big.Int
	switch r.Op {
	case ops.KindAdd:
		v = add(a, b, bits)
	case ops.KindSub:
		v = sub(a, b, bits)
	case ops.KindMul:
		v = mul(a, b, bits)
	case ops.KindDiv:
		v = div(a, b, bits)
	case ops.KindRem:
		v = rem(a, b)
	case ops.KindAnd:
		v = and(a, b)
	case ops.KindOr:
		v = or(a, b)
	case ops.KindXor:
		v = xor(a, b)
	case ops.KindShl:
		v = shl(a, b, bits)
	case ops.KindShr:
		v = shr(a, b)
	case ops.KindRotl:
		v = rotl(a, b, bits)
	case ops.KindRotr:
		v = rotr(a, b, bits)
	case ops.KindEq:
		v = eq(a, b)
	case ops.KindNe:
		v = ne(a, b)
	case ops.KindGe:
		v = ge(a, b, typ)
	case ops.KindGt:
		v = gt(a, b, typ)
	case ops.KindLe:
		v = le(a, b, typ)
	case ops.KindLt:
		v = lt(a, b, typ)
	case ops.KindMin:
		v = minOf(a, b, typ)
	case ops.KindMax:
		v = maxOf(a, b, typ)
	default:
		return fmt.Errorf("%w: binary %s", ErrUnknownRecord, r.Op)
	}
	return e.store.Put(r.ResultHandle, v, true)
}

func (e *Evaluator) cast(r *ops.Cast) error {
	if !r.ToType.Valid() {
		return fmt.Errorf("%w: cast to %s", handle.ErrInvalidType, r.ToType)
	}
	a, err := e.store.Get(r.Input)
	if err != nil {
		return err
	}
	return e.store.Put(r.ResultHandle, cast(a, r.ToType), true)
}

func (e *Evaluator) unary(r *ops.Unary) error {
	typ, err := handle.TypeOf(r.Input)
	if err != nil {
		return err
	}
	a, err := e.store.Get(r.Input)
	if err != nil {
		return err
	}

	var v *big.Int
	switch r.Op {
	case ops.KindNot:
		v = not(a, typ.Bits())
	case ops.KindNeg:
		v = neg(a, typ.Bits())
	default:
		return fmt.Errorf("%w: unary %s", ErrUnknownRecord, r.Op)
	}
	return e.store.Put(r.ResultHandle, v, true)
}

func (e *Evaluator) ifThenElse(r *ops.IfThenElse) error {
	cond, err := e.store.Get(r.Control)
	if err != nil {
		return err
	}
	if !e.opts.LenientConditions && cond.Cmp(one) > 0 {
		return fmt.Errorf("%w: %s holds %s", ErrMalformedCondition, r.Control.Hex(), cond)
	}

	pick := r.IfFalse
	if cond.Sign() != 0 {
		pick = r.IfTrue
	}
	v, err := e.store.Get(pick)
	if err != nil {
		return err
	}
	return e.store.Put(r.ResultHandle, v, true)
}

func (e *Evaluator) random(r *ops.Rand) error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: random %s", handle.ErrInvalidType, r.Type)
	}
	bits := r.Type.Bits()
	if r.Bound != nil {
		if r.Bound.Sign() <= 0 {
			return fmt.Errorf("%w: got %s", ErrInvalidBound, r.Bound)
		}
		// values stay below 2^floor(log2(bound))
		if lb := uint(r.Bound.BitLen() - 1); lb < bits {
			bits = lb
		}
	}

	buf, err := e.randomBytes(r, (bits+7)/8)
	if err != nil {
		return err
	}
	v := wrap(new(big.Int).SetBytes(buf), bits)
	return e.store.Put(r.ResultHandle, v, true)
}

// randomBytes expands the run seed, the event seed and the result handle
// through keyed BLAKE3.
func (e *Evaluator) randomBytes(r *ops.Rand, n uint) ([]byte, error) {
	h, err := blake3.NewKeyed(e.opts.Seed[:])
	if err != nil {
		return nil, err
	}
	h.Write(r.Seed[:])
	h.Write(r.ResultHandle[:])

	buf := make([]byte, n)
	if _, err := h.Digest().Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
