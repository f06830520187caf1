// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arith

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/luxfi/fhemock/handle"
	"github.com/luxfi/fhemock/ops"
	"github.com/luxfi/fhemock/shadow"
)

type fixture struct {
	t     *testing.T
	store *shadow.Store
	eval  *Evaluator
	n     int
}

func newFixture(t *testing.T, opts Options) *fixture {
	store := shadow.New()
	t.Cleanup(func() { store.Close() })
	return &fixture{t: t, store: store, eval: New(store, opts)}
}

// fresh returns a new handle of type typ.
func (f *fixture) fresh(typ handle.Type) common.Hash {
	f.n++
	return handle.Derive(typ, []byte{byte(f.n >> 8), byte(f.n)})
}

// seed stores v under a fresh handle of type typ.
func (f *fixture) seed(typ handle.Type, v uint64) common.Hash {
	h := f.fresh(typ)
	require.NoError(f.t, f.store.Put(h, new(big.Int).SetUint64(v), true))
	return h
}

func (f *fixture) value(h common.Hash) *big.Int {
	v, err := f.store.Get(h)
	require.NoError(f.t, err)
	return v
}

func (f *fixture) binary(op ops.Kind, typ handle.Type, a, b uint64, scalar bool) *big.Int {
	lhs := f.seed(typ, a)
	rhs := ops.ImmediateHash(new(big.Int).SetUint64(b))
	if !scalar {
		rhs = f.seed(typ, b)
	}
	var sb byte
	if scalar {
		sb = ops.ScalarFlag
	}
	result := f.fresh(typ)
	rec, err := ops.NewBinary(op, lhs, rhs, sb, result)
	require.NoError(f.t, err)
	require.NoError(f.t, f.eval.Apply(rec))
	return f.value(result)
}

func TestBinaryOps(t *testing.T) {
	tests := []struct {
		name   string
		op     ops.Kind
		typ    handle.Type
		a, b   uint64
		scalar bool
		want   uint64
	}{
		{"add_wraps_euint8", ops.KindAdd, handle.TypeEuint8, 200, 100, false, 44},
		{"add_scalar", ops.KindAdd, handle.TypeEuint32, 7, 8, true, 15},
		{"sub_wraps_euint8", ops.KindSub, handle.TypeEuint8, 1, 2, false, 255},
		{"mul_wraps_euint16", ops.KindMul, handle.TypeEuint16, 300, 300, false, 90000 % 65536},
		{"div", ops.KindDiv, handle.TypeEuint8, 100, 7, true, 14},
		{"div_by_zero", ops.KindDiv, handle.TypeEuint8, 100, 0, true, 255},
		{"rem", ops.KindRem, handle.TypeEuint8, 100, 7, true, 2},
		{"rem_by_zero", ops.KindRem, handle.TypeEuint8, 100, 0, true, 100},
		{"and", ops.KindAnd, handle.TypeEuint8, 0b1100, 0b1010, false, 0b1000},
		{"or", ops.KindOr, handle.TypeEuint8, 0b1100, 0b1010, false, 0b1110},
		{"xor", ops.KindXor, handle.TypeEuint8, 0b1100, 0b1010, false, 0b0110},
		{"shl_masks", ops.KindShl, handle.TypeEuint8, 0x81, 1, true, 0x02},
		{"shl_past_width", ops.KindShl, handle.TypeEuint8, 1, 8, true, 0},
		{"shr", ops.KindShr, handle.TypeEuint8, 0x80, 7, true, 1},
		{"shr_past_bitlen", ops.KindShr, handle.TypeEuint8, 0x0f, 4, true, 0},
		{"rotl", ops.KindRotl, handle.TypeEuint8, 0x81, 1, true, 0x03},
		{"rotl_full_turn", ops.KindRotl, handle.TypeEuint8, 0x5a, 8, true, 0x5a},
		{"rotr", ops.KindRotr, handle.TypeEuint8, 0x81, 1, true, 0xc0},
		{"rotr_mod_width", ops.KindRotr, handle.TypeEuint4, 0b0001, 5, true, 0b1000},
		{"eq_true", ops.KindEq, handle.TypeEuint64, 5, 5, false, 1},
		{"ne_false", ops.KindNe, handle.TypeEuint64, 5, 5, false, 0},
		{"lt_unsigned", ops.KindLt, handle.TypeEuint8, 0xff, 0x01, false, 0},
		{"lt_signed", ops.KindLt, handle.TypeEint8, 0xff, 0x01, false, 1},
		{"ge_signed", ops.KindGe, handle.TypeEint8, 0x01, 0x80, false, 1},
		{"gt_scalar", ops.KindGt, handle.TypeEuint16, 9, 3, true, 1},
		{"le_equal", ops.KindLe, handle.TypeEuint16, 3, 3, true, 1},
		{"min_unsigned", ops.KindMin, handle.TypeEuint8, 0xff, 3, false, 3},
		{"min_signed", ops.KindMin, handle.TypeEint8, 0xff, 3, false, 0xff},
		{"max_unsigned", ops.KindMax, handle.TypeEuint8, 0xff, 3, true, 0xff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			got := f.binary(tt.op, tt.typ, tt.a, tt.b, tt.scalar)
			require.Equal(t, new(big.Int).SetUint64(tt.want), got)
		})
	}
}

// operands yields a deterministic stream of values below 2^bits.
type operands struct{ d *blake3.Digest }

func newOperands(key string) *operands {
	h := blake3.New()
	h.WriteString(key)
	return &operands{d: h.Digest()}
}

func (o *operands) next(bits uint) *big.Int {
	var buf [32]byte
	o.d.Read(buf[:])
	v := new(big.Int).SetBytes(buf[:])
	return v.Mod(v, new(big.Int).Lsh(big.NewInt(1), bits))
}

func (f *fixture) binaryBig(op ops.Kind, typ handle.Type, a, b *big.Int, scalar bool) *big.Int {
	lhs := f.fresh(typ)
	require.NoError(f.t, f.store.Put(lhs, a, true))
	rhs := ops.ImmediateHash(b)
	var sb byte
	if scalar {
		sb = ops.ScalarFlag
	} else {
		rhs = f.fresh(typ)
		require.NoError(f.t, f.store.Put(rhs, b, true))
	}
	result := f.fresh(typ)
	rec, err := ops.NewBinary(op, lhs, rhs, sb, result)
	require.NoError(f.t, err)
	require.NoError(f.t, f.eval.Apply(rec))
	return f.value(result)
}

// Every masked result equals the exact integer result reduced mod 2^W.
func TestMaskingLaw(t *testing.T) {
	exact := []struct {
		op   ops.Kind
		fold func(z, a, b *big.Int) *big.Int
	}{
		{ops.KindAdd, (*big.Int).Add},
		{ops.KindSub, (*big.Int).Sub},
		{ops.KindMul, (*big.Int).Mul},
	}
	const rounds = 32

	for _, typ := range handle.Types() {
		t.Run(typ.String(), func(t *testing.T) {
			f := newFixture(t, Options{})
			src := newOperands("masking " + typ.String())
			bits := typ.Bits()
			mod := new(big.Int).Lsh(big.NewInt(1), bits)
			top := new(big.Int).Sub(mod, big.NewInt(1))

			for i := 0; i < rounds; i++ {
				a, b := src.next(bits), src.next(bits)
				if i == 0 {
					a, b = top, top
				}
				for _, e := range exact {
					want := e.fold(new(big.Int), a, b)
					want.Mod(want, mod)
					got := f.binaryBig(e.op, typ, a, b, false)
					require.Equal(t, want.String(), got.String(), "%s(%s, %s)", e.op, a, b)
				}

				shift := uint(i) % (bits + 2)
				want := new(big.Int).Lsh(a, shift)
				want.Mod(want, mod)
				got := f.binaryBig(ops.KindShl, typ, a, new(big.Int).SetUint64(uint64(shift)), true)
				require.Equal(t, want.String(), got.String(), "%s(%s, %d)", ops.KindShl, a, shift)
			}
		})
	}
}

func TestUnaryOps(t *testing.T) {
	tests := []struct {
		name string
		op   ops.Kind
		typ  handle.Type
		in   uint64
		want uint64
	}{
		{"not_euint8", ops.KindNot, handle.TypeEuint8, 0x0f, 0xf0},
		{"not_ebool", ops.KindNot, handle.TypeEbool, 1, 0},
		{"neg_euint8", ops.KindNeg, handle.TypeEuint8, 1, 0xff},
		{"neg_zero", ops.KindNeg, handle.TypeEuint16, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			in := f.seed(tt.typ, tt.in)
			out := f.fresh(tt.typ)
			rec, err := ops.NewUnary(tt.op, in, out)
			require.NoError(t, err)
			require.NoError(t, f.eval.Apply(rec))
			require.Equal(t, new(big.Int).SetUint64(tt.want), f.value(out))
		})
	}
}

func TestCast(t *testing.T) {
	f := newFixture(t, Options{})
	in := f.seed(handle.TypeEuint16, 0x1234)

	narrow := f.fresh(handle.TypeEuint8)
	require.NoError(t, f.eval.Apply(&ops.Cast{Input: in, ToType: handle.TypeEuint8, ResultHandle: narrow}))
	require.Equal(t, big.NewInt(0x34), f.value(narrow))

	// casting to the same width twice is idempotent
	again := f.fresh(handle.TypeEuint8)
	require.NoError(t, f.eval.Apply(&ops.Cast{Input: narrow, ToType: handle.TypeEuint8, ResultHandle: again}))
	require.Equal(t, f.value(narrow), f.value(again))

	wide := f.fresh(handle.TypeEuint64)
	require.NoError(t, f.eval.Apply(&ops.Cast{Input: in, ToType: handle.TypeEuint64, ResultHandle: wide}))
	require.Equal(t, big.NewInt(0x1234), f.value(wide))

	err := f.eval.Apply(&ops.Cast{Input: in, ToType: handle.Type(0x42), ResultHandle: f.fresh(handle.TypeEuint8)})
	require.ErrorIs(t, err, handle.ErrInvalidType)
}

func TestIfThenElse(t *testing.T) {
	f := newFixture(t, Options{})
	yes := f.seed(handle.TypeEbool, 1)
	no := f.seed(handle.TypeEbool, 0)
	a := f.seed(handle.TypeEuint32, 111)
	b := f.seed(handle.TypeEuint32, 222)

	out := f.fresh(handle.TypeEuint32)
	require.NoError(t, f.eval.Apply(&ops.IfThenElse{Control: yes, IfTrue: a, IfFalse: b, ResultHandle: out}))
	require.Equal(t, big.NewInt(111), f.value(out))

	out = f.fresh(handle.TypeEuint32)
	require.NoError(t, f.eval.Apply(&ops.IfThenElse{Control: no, IfTrue: a, IfFalse: b, ResultHandle: out}))
	require.Equal(t, big.NewInt(222), f.value(out))

	bad := f.seed(handle.TypeEuint8, 2)
	err := f.eval.Apply(&ops.IfThenElse{Control: bad, IfTrue: a, IfFalse: b, ResultHandle: f.fresh(handle.TypeEuint32)})
	require.ErrorIs(t, err, ErrMalformedCondition)

	lenient := New(f.store, Options{LenientConditions: true})
	out = f.fresh(handle.TypeEuint32)
	require.NoError(t, lenient.Apply(&ops.IfThenElse{Control: bad, IfTrue: a, IfFalse: b, ResultHandle: out}))
	require.Equal(t, big.NewInt(111), f.value(out))
}

func TestTrivialEncryptMasks(t *testing.T) {
	f := newFixture(t, Options{})
	out := f.fresh(handle.TypeEuint8)
	require.NoError(t, f.eval.Apply(&ops.TrivialEncrypt{Value: big.NewInt(0x1ff), Type: handle.TypeEuint8, ResultHandle: out}))
	require.Equal(t, big.NewInt(0xff), f.value(out))

	e, ok, err := f.store.Entry(out)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, e.Used)

	err = f.eval.Apply(&ops.TrivialEncrypt{Value: big.NewInt(1), Type: handle.Type(0x09), ResultHandle: out})
	require.ErrorIs(t, err, handle.ErrInvalidType)
}

func TestVerify(t *testing.T) {
	f := newFixture(t, Options{})

	// unseeded input gets the sentinel
	h := f.fresh(handle.TypeEuint64)
	require.NoError(t, f.eval.Apply(&ops.Verify{Input: h, ResultHandle: h}))
	require.Equal(t, big.NewInt(VerifySentinel), f.value(h))

	// a pre-seeded input keeps its value and becomes used
	seeded := f.fresh(handle.TypeEuint64)
	require.NoError(t, f.store.Put(seeded, big.NewInt(77), false))
	require.NoError(t, f.eval.Apply(&ops.Verify{Input: seeded, ResultHandle: seeded}))
	e, _, err := f.store.Entry(seeded)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(77), e.Value)
	require.True(t, e.Used)

	// a distinct result handle inherits the input's value
	out := f.fresh(handle.TypeEuint64)
	require.NoError(t, f.eval.Apply(&ops.Verify{Input: seeded, ResultHandle: out}))
	require.Equal(t, big.NewInt(77), f.value(out))
}

func TestRand(t *testing.T) {
	seed := Options{Seed: [32]byte{1, 2, 3}}
	f := newFixture(t, seed)

	for i := 0; i < 64; i++ {
		out := f.fresh(handle.TypeEuint8)
		rec := &ops.Rand{Seed: [16]byte{byte(i)}, Type: handle.TypeEuint8, ResultHandle: out}
		require.NoError(t, f.eval.Apply(rec))
		require.LessOrEqual(t, f.value(out).BitLen(), 8)

		bounded := f.fresh(handle.TypeEuint64)
		rec = &ops.Rand{Seed: [16]byte{byte(i)}, Type: handle.TypeEuint64, Bound: big.NewInt(100), ResultHandle: bounded}
		require.NoError(t, f.eval.Apply(rec))
		require.Negative(t, f.value(bounded).Cmp(big.NewInt(64)))
	}

	// equal run seeds replay equal values
	g := newFixture(t, seed)
	h := handle.Derive(handle.TypeEuint256, []byte("rand"))
	rec := &ops.Rand{Seed: [16]byte{9}, Type: handle.TypeEuint256, ResultHandle: h}
	require.NoError(t, f.eval.Apply(rec))
	require.NoError(t, g.eval.Apply(rec))
	require.Equal(t, f.value(h), g.value(h))

	// bound one leaves only zero
	unit := f.fresh(handle.TypeEuint8)
	require.NoError(t, f.eval.Apply(&ops.Rand{Type: handle.TypeEuint8, Bound: big.NewInt(1), ResultHandle: unit}))
	require.Equal(t, 0, f.value(unit).Sign())

	err := f.eval.Apply(&ops.Rand{Type: handle.TypeEuint8, Bound: new(big.Int), ResultHandle: f.fresh(handle.TypeEuint8)})
	require.ErrorIs(t, err, ErrInvalidBound)
}

func TestUnknownTypeTag(t *testing.T) {
	f := newFixture(t, Options{})
	var lhs common.Hash
	lhs[handle.TypeByte] = 0x42
	rec, err := ops.NewBinary(ops.KindAdd, lhs, lhs, 0, f.fresh(handle.TypeEuint8))
	require.NoError(t, err)
	require.ErrorIs(t, f.eval.Apply(rec), handle.ErrInvalidType)
}
