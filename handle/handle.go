// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package handle decodes the type information embedded in ciphertext handles.
package handle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Handle byte layout
const (
	TypeByte    = 30 // type tag
	VersionByte = 31 // handle version
	Version     = 0
)

// SignedFlag marks a signed integer type tag.
const SignedFlag uint8 = 0x80

// Type is the type tag carried by a ciphertext handle.
type Type uint8

// Ciphertext type constants - unsigned tags match github.com/luxfi/fhe FheUintType
const (
	TypeEbool    Type = 0 // 1 bit
	TypeEuint4   Type = 1
	TypeEuint8   Type = 2
	TypeEuint16  Type = 3
	TypeEuint32  Type = 4
	TypeEuint64  Type = 5
	TypeEuint128 Type = 6
	TypeEaddress Type = 7 // 160 bits
	TypeEuint256 Type = 8

	TypeEint4   = Type(SignedFlag) | TypeEuint4
	TypeEint8   = Type(SignedFlag) | TypeEuint8
	TypeEint16  = Type(SignedFlag) | TypeEuint16
	TypeEint32  = Type(SignedFlag) | TypeEuint32
	TypeEint64  = Type(SignedFlag) | TypeEuint64
	TypeEint128 = Type(SignedFlag) | TypeEuint128
	TypeEint256 = Type(SignedFlag) | TypeEuint256
)

var (
	ErrInvalidType = errors.New("invalid ciphertext type")
	ErrUnknownName = errors.New("unknown ciphertext type name")
)

type typeInfo struct {
	name   string
	bits   uint
	signed bool
}

var types = map[Type]typeInfo{
	TypeEbool:    {"ebool", 1, false},
	TypeEuint4:   {"euint4", 4, false},
	TypeEuint8:   {"euint8", 8, false},
	TypeEuint16:  {"euint16", 16, false},
	TypeEuint32:  {"euint32", 32, false},
	TypeEuint64:  {"euint64", 64, false},
	TypeEuint128: {"euint128", 128, false},
	TypeEaddress: {"eaddress", 160, false},
	TypeEuint256: {"euint256", 256, false},
	TypeEint4:    {"eint4", 4, true},
	TypeEint8:    {"eint8", 8, true},
	TypeEint16:   {"eint16", 16, true},
	TypeEint32:   {"eint32", 32, true},
	TypeEint64:   {"eint64", 64, true},
	TypeEint128:  {"eint128", 128, true},
	TypeEint256:  {"eint256", 256, true},
}

var byName = func() map[string]Type {
	m := make(map[string]Type, len(types))
	for t, info := range types {
		m[info.name] = t
	}
	return m
}()

// MaxBits is the widest modeled type.
const MaxBits = 256

// TypeOf extracts the type tag of h.
func TypeOf(h common.Hash) (Type, error) {
	t := Type(h[TypeByte])
	if !t.Valid() {
		return 0, fmt.Errorf("%w: tag 0x%02x in handle %s", ErrInvalidType, uint8(t), h.Hex())
	}
	return t, nil
}

// ParseType returns the type named name (e.g. "euint8").
func ParseType(name string) (Type, error) {
	t, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return t, nil
}

// CheckType returns an ErrInvalidType error if tag is not a known type.
func CheckType(tag uint8) (Type, error) {
	t := Type(tag)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: tag 0x%02x", ErrInvalidType, tag)
	}
	return t, nil
}

// Valid reports whether t is in the type table.
func (t Type) Valid() bool {
	_, ok := types[t]
	return ok
}

// Bits returns the bit width of t, or 0 for an unknown type.
func (t Type) Bits() uint {
	return types[t].bits
}

// Signed reports whether t is a two's-complement signed type.
func (t Type) Signed() bool {
	return types[t].signed
}

func (t Type) String() string {
	if info, ok := types[t]; ok {
		return info.name
	}
	return fmt.Sprintf("type(0x%02x)", uint8(t))
}

// Mask returns 2^bits - 1 for t.
func (t Type) Mask() *big.Int {
	return MaskBits(t.Bits())
}

// MaskBits returns 2^bits - 1.
func MaskBits(bits uint) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), bits)
	return m.Sub(m, big.NewInt(1))
}

// Types returns every known type tag in ascending order.
func Types() []Type {
	out := make([]Type, 0, len(types))
	for i := 0; i < 256; i++ {
		if t := Type(i); t.Valid() {
			out = append(out, t)
		}
	}
	return out
}

// Derive mints a handle of type t from the keccak256 digest of parts.
func Derive(t Type, parts ...[]byte) common.Hash {
	h := common.BytesToHash(crypto.Keccak256(parts...))
	h[TypeByte] = byte(t)
	h[VersionByte] = Version
	return h
}
