// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ops defines the typed operation stream replayed by the emulator.
//
// Record is a closed set of variants: only this package can add one, so
// consumers switch over the concrete types and treat anything else as a bug.
package ops

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/fhemock/handle"
)

// ScalarFlag in the scalarByte slot means rhs is an embedded immediate.
const ScalarFlag byte = 0x01

var ErrKindMismatch = errors.New("operation kind does not match record shape")

// Record is one decoded coprocessor operation.
type Record interface {
	Kind() Kind
	// Result is the handle the operation defines.
	Result() common.Hash
	// Dependencies are the operand handles feeding the cost DAG.
	Dependencies() []common.Hash

	isRecord()
}

// TrivialEncrypt seeds a plaintext under a fresh handle.
type TrivialEncrypt struct {
	Value        *big.Int
	Type         handle.Type
	ResultHandle common.Hash
}

// Verify admits a user-supplied input ciphertext.
type Verify struct {
	Input        common.Hash
	User         common.Address
	ResultHandle common.Hash
}

// Binary covers the scalar-capable kinds and And/Or/Xor.
type Binary struct {
	Op           Kind
	Lhs          common.Hash
	Rhs          common.Hash // immediate when Scalar is set
	Scalar       bool
	ResultHandle common.Hash
}

// Cast converts Input to ToType.
type Cast struct {
	Input        common.Hash
	ToType       handle.Type
	ResultHandle common.Hash
}

// Unary covers Not and Neg.
type Unary struct {
	Op           Kind
	Input        common.Hash
	ResultHandle common.Hash
}

// IfThenElse selects IfTrue when Control is 1, IfFalse otherwise.
type IfThenElse struct {
	Control      common.Hash
	IfTrue       common.Hash
	IfFalse      common.Hash
	ResultHandle common.Hash
}

// Rand covers Rand and RandBounded; Bound is nil for the former.
type Rand struct {
	Seed         [16]byte
	Type         handle.Type
	Bound        *big.Int
	ResultHandle common.Hash
}

func (*TrivialEncrypt) Kind() Kind { return KindTrivialEncrypt }
func (*Verify) Kind() Kind         { return KindVerify }
func (r *Binary) Kind() Kind       { return r.Op }
func (*Cast) Kind() Kind           { return KindCast }
func (r *Unary) Kind() Kind        { return r.Op }
func (*IfThenElse) Kind() Kind     { return KindIfThenElse }

func (r *Rand) Kind() Kind {
	if r.Bound != nil {
		return KindRandBounded
	}
	return KindRand
}

func (r *TrivialEncrypt) Result() common.Hash { return r.ResultHandle }
func (r *Verify) Result() common.Hash         { return r.ResultHandle }
func (r *Binary) Result() common.Hash         { return r.ResultHandle }
func (r *Cast) Result() common.Hash           { return r.ResultHandle }
func (r *Unary) Result() common.Hash          { return r.ResultHandle }
func (r *IfThenElse) Result() common.Hash     { return r.ResultHandle }
func (r *Rand) Result() common.Hash           { return r.ResultHandle }

func (*TrivialEncrypt) Dependencies() []common.Hash { return nil }
func (*Verify) Dependencies() []common.Hash         { return nil }
func (*Rand) Dependencies() []common.Hash           { return nil }

func (r *Binary) Dependencies() []common.Hash {
	if r.Scalar {
		return []common.Hash{r.Lhs}
	}
	return []common.Hash{r.Lhs, r.Rhs}
}

func (r *Cast) Dependencies() []common.Hash  { return []common.Hash{r.Input} }
func (r *Unary) Dependencies() []common.Hash { return []common.Hash{r.Input} }

func (r *IfThenElse) Dependencies() []common.Hash {
	return []common.Hash{r.Control, r.IfTrue, r.IfFalse}
}

// Immediate returns rhs read as a big-endian unsigned integer.
func (r *Binary) Immediate() *big.Int {
	return new(big.Int).SetBytes(r.Rhs[:])
}

func (*TrivialEncrypt) isRecord() {}
func (*Verify) isRecord()         {}
func (*Binary) isRecord()         {}
func (*Cast) isRecord()           {}
func (*Unary) isRecord()          {}
func (*IfThenElse) isRecord()     {}
func (*Rand) isRecord()           {}

// NewBinary builds a binary record. scalarByte follows the event encoding.
func NewBinary(op Kind, lhs, rhs common.Hash, scalarByte byte, result common.Hash) (*Binary, error) {
	if !op.IsBinary() {
		return nil, fmt.Errorf("%w: %s is not binary", ErrKindMismatch, op)
	}
	scalar := scalarByte == ScalarFlag
	if scalar && !op.IsScalarCapable() {
		return nil, fmt.Errorf("%w: %s has no scalar form", ErrKindMismatch, op)
	}
	return &Binary{Op: op, Lhs: lhs, Rhs: rhs, Scalar: scalar, ResultHandle: result}, nil
}

// NewUnary builds a Not or Neg record.
func NewUnary(op Kind, input, result common.Hash) (*Unary, error) {
	if op != KindNot && op != KindNeg {
		return nil, fmt.Errorf("%w: %s is not unary", ErrKindMismatch, op)
	}
	return &Unary{Op: op, Input: input, ResultHandle: result}, nil
}

// ScalarByte returns the scalarByte slot value of r.
func (r *Binary) ScalarByte() byte {
	if r.Scalar {
		return ScalarFlag
	}
	return 0
}

// ImmediateHash packs v into an rhs slot.
func ImmediateHash(v *big.Int) common.Hash {
	return common.BigToHash(v)
}
