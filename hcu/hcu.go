// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hcu accumulates the homomorphic compute units (HCU) charged by a
// sequence of coprocessor operations.
//
// Two figures are tracked. The global total is the sum of the base cost of
// every operation. The depth of a handle is the cost of the most expensive
// dependency chain ending in it; the largest depth over the handles produced
// in a run bounds the latency of the transaction.
package hcu

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/fhemock/handle"
	"github.com/luxfi/fhemock/ops"
	"github.com/luxfi/fhemock/pricing"
)

// Per-transaction ceilings enforced by the network.
const (
	DefaultMaxTxHCU      uint64 = 20_000_000
	DefaultMaxTxHCUDepth uint64 = 5_000_000
)

var (
	ErrHCULimitExceeded = errors.New("HCU limit exceeded")
	ErrCostOverflow     = errors.New("HCU cost overflows uint64")
)

// Report is the cost summary of a run.
type Report struct {
	GlobalTxHCU       uint64                 `json:"globalTxHCU"`
	MaxTxHCUDepth     uint64                 `json:"maxTxHCUDepth"`
	HCUDepthPerHandle map[common.Hash]uint64 `json:"HCUDepthPerHandle"`
}

// Limits caps a report. A zero field disables that check.
type Limits struct {
	MaxTxHCU      uint64 `json:"maxTxHCU"`
	MaxTxHCUDepth uint64 `json:"maxTxHCUDepth"`
}

// DefaultLimits returns the network ceilings.
func DefaultLimits() Limits {
	return Limits{MaxTxHCU: DefaultMaxTxHCU, MaxTxHCUDepth: DefaultMaxTxHCUDepth}
}

// Check returns ErrHCULimitExceeded if r breaks l.
func (r *Report) Check(l Limits) error {
	if l.MaxTxHCU != 0 && r.GlobalTxHCU > l.MaxTxHCU {
		return fmt.Errorf("%w: global %d > %d", ErrHCULimitExceeded, r.GlobalTxHCU, l.MaxTxHCU)
	}
	if l.MaxTxHCUDepth != 0 && r.MaxTxHCUDepth > l.MaxTxHCUDepth {
		return fmt.Errorf("%w: depth %d > %d", ErrHCULimitExceeded, r.MaxTxHCUDepth, l.MaxTxHCUDepth)
	}
	return nil
}

// Accumulator folds records into a Report. It belongs to one run.
type Accumulator struct {
	table    *pricing.Table
	global   uint64
	depth    map[common.Hash]uint64
	produced map[common.Hash]struct{}
}

// NewAccumulator returns an empty accumulator charging from table.
func NewAccumulator(table *pricing.Table) *Accumulator {
	return &Accumulator{
		table:    table,
		depth:    make(map[common.Hash]uint64),
		produced: make(map[common.Hash]struct{}),
	}
}

// Add charges r. Leaves cost nothing. On error the accumulator is unchanged.
func (a *Accumulator) Add(r ops.Record) error {
	commit, err := a.Charge(r)
	if err != nil {
		return err
	}
	commit()
	return nil
}

// Charge prices r without recording it. Calling commit records the charge;
// dropping it leaves the accumulator as it was.
func (a *Accumulator) Charge(r ops.Record) (commit func(), err error) {
	res := r.Result()
	kind := r.Kind()
	if kind.IsLeaf() {
		return func() {
			a.depth[res] = 0
			a.produced[res] = struct{}{}
		}, nil
	}

	typ, err := handle.TypeOf(priced(r))
	if err != nil {
		return nil, err
	}
	base, err := a.table.Cost(kind, scalar(r), typ)
	if err != nil {
		return nil, err
	}

	var dep uint64
	for _, h := range r.Dependencies() {
		dep = max(dep, a.depth[h])
	}
	cum, carry := bits.Add64(base, dep, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: depth of %s", ErrCostOverflow, res.Hex())
	}
	global, carry := bits.Add64(a.global, base, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: global total", ErrCostOverflow)
	}

	return func() {
		a.global = global
		a.depth[res] = cum
		a.produced[res] = struct{}{}
	}, nil
}

// Depth returns the cumulative cost of h, 0 if h is unknown.
func (a *Accumulator) Depth(h common.Hash) uint64 {
	return a.depth[h]
}

// Global returns the running total.
func (a *Accumulator) Global() uint64 {
	return a.global
}

// Report snapshots the accumulated costs.
func (a *Accumulator) Report() *Report {
	r := &Report{
		GlobalTxHCU:       a.global,
		HCUDepthPerHandle: make(map[common.Hash]uint64, len(a.depth)),
	}
	for h, d := range a.depth {
		r.HCUDepthPerHandle[h] = d
	}
	for h := range a.produced {
		r.MaxTxHCUDepth = max(r.MaxTxHCUDepth, a.depth[h])
	}
	return r
}

// Estimate folds records through a fresh accumulator.
func Estimate(table *pricing.Table, records []ops.Record) (*Report, error) {
	a := NewAccumulator(table)
	for i, r := range records {
		if err := a.Add(r); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.Kind(), err)
		}
	}
	return a.Report(), nil
}

// priced returns the operand whose type selects the price.
func priced(r ops.Record) common.Hash {
	switch r := r.(type) {
	case *ops.Binary:
		return r.Lhs
	case *ops.Cast:
		return r.Input
	case *ops.Unary:
		return r.Input
	case *ops.IfThenElse:
		return r.IfTrue
	}
	return r.Result()
}

func scalar(r ops.Record) bool {
	b, ok := r.(*ops.Binary)
	return ok && b.Scalar
}
