// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ops

import "fmt"

// Kind identifies a coprocessor operation.
type Kind uint8

const (
	KindTrivialEncrypt Kind = iota
	KindVerify
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindRem
	KindAnd
	KindOr
	KindXor
	KindShl
	KindShr
	KindRotl
	KindRotr
	KindEq
	KindNe
	KindGe
	KindGt
	KindLe
	KindLt
	KindMin
	KindMax
	KindCast
	KindNot
	KindNeg
	KindIfThenElse
	KindRand
	KindRandBounded

	numKinds
)

// Event names, also the price table keys
var kindNames = [numKinds]string{
	KindTrivialEncrypt: "TrivialEncrypt",
	KindVerify:         "Verify",
	KindAdd:            "FheAdd",
	KindSub:            "FheSub",
	KindMul:            "FheMul",
	KindDiv:            "FheDiv",
	KindRem:            "FheRem",
	KindAnd:            "FheAnd",
	KindOr:             "FheOr",
	KindXor:            "FheXor",
	KindShl:            "FheShl",
	KindShr:            "FheShr",
	KindRotl:           "FheRotl",
	KindRotr:           "FheRotr",
	KindEq:             "FheEq",
	KindNe:             "FheNe",
	KindGe:             "FheGe",
	KindGt:             "FheGt",
	KindLe:             "FheLe",
	KindLt:             "FheLt",
	KindMin:            "FheMin",
	KindMax:            "FheMax",
	KindCast:           "Cast",
	KindNot:            "FheNot",
	KindNeg:            "FheNeg",
	KindIfThenElse:     "FheIfThenElse",
	KindRand:           "FheRand",
	KindRandBounded:    "FheRandBounded",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k, name := range kindNames {
		m[name] = Kind(k)
	}
	return m
}()

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KindByName returns the kind emitted under the given event name.
func KindByName(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// Kinds returns every modeled kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Valid reports whether k is a modeled kind.
func (k Kind) Valid() bool { return k < numKinds }

// IsLeaf reports whether results of k are externally supplied and cost nothing.
func (k Kind) IsLeaf() bool {
	switch k {
	case KindTrivialEncrypt, KindVerify, KindRand, KindRandBounded:
		return true
	}
	return false
}

// IsScalarCapable reports whether k carries a scalar flag and is priced per
// scalar/non-scalar mode.
func (k Kind) IsScalarCapable() bool {
	switch k {
	case KindAdd, KindSub, KindMul, KindDiv, KindRem,
		KindShl, KindShr, KindRotl, KindRotr,
		KindEq, KindNe, KindGe, KindGt, KindLe, KindLt, KindMin, KindMax:
		return true
	}
	return false
}

// IsBitwise reports whether k is And, Or or Xor.
func (k Kind) IsBitwise() bool {
	return k == KindAnd || k == KindOr || k == KindXor
}

// IsBinary reports whether k takes two operands.
func (k Kind) IsBinary() bool {
	return k.IsScalarCapable() || k.IsBitwise()
}

// IsComparison reports whether k yields a boolean.
func (k Kind) IsComparison() bool {
	switch k {
	case KindEq, KindNe, KindGe, KindGt, KindLe, KindLt:
		return true
	}
	return false
}
