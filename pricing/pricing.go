// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pricing holds the read-only HCU price table charged per FHE operation.
package pricing

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/luxfi/fhemock/handle"
	"github.com/luxfi/fhemock/ops"
)

//go:embed prices.json
var defaultPrices []byte

var (
	ErrPriceNotFound = errors.New("no HCU price for operation")
	ErrMalformed     = errors.New("malformed price table")
)

// costs maps a type tag to its base HCU cost.
type costs map[handle.Type]uint64

type entry struct {
	scalar    costs // nil unless the kind is scalar-capable
	nonScalar costs // also the only sub-table of flat kinds
}

// Table is an immutable price table.
type Table struct {
	version string
	prices  map[ops.Kind]entry
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the embedded price table, parsed once per process.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(defaultPrices)
	})
	return defaultTable, defaultErr
}

// LoadFile reads a price table from a JSON file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a price table from r.
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read price table: %w", err)
	}
	return Parse(data)
}

type rawTable struct {
	Version string                     `json:"version"`
	Prices  map[string]json.RawMessage `json:"prices"`
}

type rawScalarEntry struct {
	Scalar    map[string]uint64 `json:"scalar"`
	NonScalar map[string]uint64 `json:"nonScalar"`
}

type rawFlatEntry struct {
	Types map[string]uint64 `json:"types"`
}

// Parse decodes a JSON price table. Only the shape is validated: kind names,
// type names, and the sub-table form each kind expects.
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrMalformed)
	}

	t := &Table{
		version: raw.Version,
		prices:  make(map[ops.Kind]entry, len(raw.Prices)),
	}
	for name, msg := range raw.Prices {
		kind, ok := ops.KindByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown operation %q", ErrMalformed, name)
		}
		if kind.IsLeaf() {
			return nil, fmt.Errorf("%w: %s is never charged", ErrMalformed, name)
		}

		var e entry
		var err error
		if kind.IsScalarCapable() {
			var se rawScalarEntry
			if err := json.Unmarshal(msg, &se); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
			}
			if se.Scalar == nil && se.NonScalar == nil {
				return nil, fmt.Errorf("%w: %s needs scalar or nonScalar prices", ErrMalformed, name)
			}
			if e.scalar, err = parseCosts(name, se.Scalar); err != nil {
				return nil, err
			}
			if e.nonScalar, err = parseCosts(name, se.NonScalar); err != nil {
				return nil, err
			}
		} else {
			var fe rawFlatEntry
			if err := json.Unmarshal(msg, &fe); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
			}
			if fe.Types == nil {
				return nil, fmt.Errorf("%w: %s needs a types table", ErrMalformed, name)
			}
			if e.nonScalar, err = parseCosts(name, fe.Types); err != nil {
				return nil, err
			}
		}
		t.prices[kind] = e
	}
	return t, nil
}

func parseCosts(op string, in map[string]uint64) (costs, error) {
	if in == nil {
		return nil, nil
	}
	out := make(costs, len(in))
	for name, cost := range in {
		typ, err := handle.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, op, err)
		}
		out[typ] = cost
	}
	return out, nil
}

// Version returns the version string of the data file.
func (t *Table) Version() string {
	return t.version
}

// Cost returns the base HCU cost of kind on operands of type typ. The scalar
// flag selects the sub-table of scalar-capable kinds and is ignored otherwise.
// A miss wraps both ErrPriceNotFound and handle.ErrInvalidType.
func (t *Table) Cost(kind ops.Kind, scalar bool, typ handle.Type) (uint64, error) {
	e, ok := t.prices[kind]
	if !ok {
		return 0, missing(kind, scalar, typ)
	}
	sub := e.nonScalar
	if scalar && kind.IsScalarCapable() {
		sub = e.scalar
	}
	cost, ok := sub[typ]
	if !ok {
		return 0, missing(kind, scalar, typ)
	}
	return cost, nil
}

// Has reports whether kind is priced at all.
func (t *Table) Has(kind ops.Kind) bool {
	_, ok := t.prices[kind]
	return ok
}

func missing(kind ops.Kind, scalar bool, typ handle.Type) error {
	mode := "nonScalar"
	if scalar && kind.IsScalarCapable() {
		mode = "scalar"
	}
	return fmt.Errorf("%w: %s %s %s: %w", ErrPriceNotFound, kind, mode, typ, handle.ErrInvalidType)
}
