// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arith

import (
	"math/big"

	"github.com/luxfi/fhemock/handle"
)

var one = big.NewInt(1)

// wrap reduces v modulo 2^bits, mapping negative intermediates into range.
func wrap(v *big.Int, bits uint) *big.Int {
	m := new(big.Int).Lsh(one, bits)
	return v.Mod(v, m)
}

// toSigned reinterprets v as a two's-complement integer of the given width.
func toSigned(v *big.Int, bits uint) *big.Int {
	out := new(big.Int).Set(v)
	if v.Bit(int(bits)-1) == 1 {
		out.Sub(out, new(big.Int).Lsh(one, bits))
	}
	return out
}

func boolInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

// compare orders a and b under typ's signedness.
func compare(a, b *big.Int, typ handle.Type) int {
	if typ.Signed() {
		return toSigned(a, typ.Bits()).Cmp(toSigned(b, typ.Bits()))
	}
	return a.Cmp(b)
}

// Masked arithmetic

func add(a, b *big.Int, bits uint) *big.Int {
	return wrap(new(big.Int).Add(a, b), bits)
}

func sub(a, b *big.Int, bits uint) *big.Int {
	return wrap(new(big.Int).Sub(a, b), bits)
}

func mul(a, b *big.Int, bits uint) *big.Int {
	return wrap(new(big.Int).Mul(a, b), bits)
}

func shl(a, b *big.Int, bits uint) *big.Int {
	if !b.IsUint64() || b.Uint64() >= uint64(bits) {
		return new(big.Int)
	}
	return wrap(new(big.Int).Lsh(a, uint(b.Uint64())), bits)
}

// Unmasked arithmetic

func div(a, b *big.Int, bits uint) *big.Int {
	if b.Sign() == 0 {
		return handle.MaskBits(bits)
	}
	return new(big.Int).Div(a, b)
}

func rem(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Rem(a, b)
}

func shr(a, b *big.Int) *big.Int {
	if !b.IsUint64() || b.Uint64() >= uint64(a.BitLen()) {
		return new(big.Int)
	}
	return new(big.Int).Rsh(a, uint(b.Uint64()))
}

func and(a, b *big.Int) *big.Int { return new(big.Int).And(a, b) }
func or(a, b *big.Int) *big.Int  { return new(big.Int).Or(a, b) }
func xor(a, b *big.Int) *big.Int { return new(big.Int).Xor(a, b) }

// Rotations stay within the operand width

func rotl(a, b *big.Int, bits uint) *big.Int {
	n := new(big.Int).Mod(b, new(big.Int).SetUint64(uint64(bits))).Uint64()
	v := wrap(new(big.Int).Set(a), bits)
	if n == 0 {
		return v
	}
	left := wrap(new(big.Int).Lsh(v, uint(n)), bits)
	right := new(big.Int).Rsh(v, bits-uint(n))
	return left.Or(left, right)
}

func rotr(a, b *big.Int, bits uint) *big.Int {
	n := new(big.Int).Mod(b, new(big.Int).SetUint64(uint64(bits))).Uint64()
	return rotl(a, new(big.Int).SetUint64((uint64(bits)-n)%uint64(bits)), bits)
}

// Unary

func not(a *big.Int, bits uint) *big.Int {
	mask := handle.MaskBits(bits)
	v := new(big.Int).And(a, mask)
	return v.Xor(v, mask)
}

func neg(a *big.Int, bits uint) *big.Int {
	return wrap(new(big.Int).Neg(a), bits)
}

func cast(a *big.Int, to handle.Type) *big.Int {
	return wrap(new(big.Int).Set(a), to.Bits())
}

// Comparisons and selection

func eq(a, b *big.Int) *big.Int { return boolInt(a.Cmp(b) == 0) }
func ne(a, b *big.Int) *big.Int { return boolInt(a.Cmp(b) != 0) }

func ge(a, b *big.Int, typ handle.Type) *big.Int { return boolInt(compare(a, b, typ) >= 0) }
func gt(a, b *big.Int, typ handle.Type) *big.Int { return boolInt(compare(a, b, typ) > 0) }
func le(a, b *big.Int, typ handle.Type) *big.Int { return boolInt(compare(a, b, typ) <= 0) }
func lt(a, b *big.Int, typ handle.Type) *big.Int { return boolInt(compare(a, b, typ) < 0) }

func minOf(a, b *big.Int, typ handle.Type) *big.Int {
	if compare(a, b, typ) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func maxOf(a, b *big.Int, typ handle.Type) *big.Int {
	if compare(a, b, typ) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
