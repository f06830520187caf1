// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package emulator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"

	"github.com/luxfi/fhemock/hcu"
)

// SeedLen is the length of Config.RandSeed.
const SeedLen = 32

var ErrInvalidConfig = errors.New("invalid emulator config")

// Config configures one evaluation run.
type Config struct {
	// PriceTable is the path of a JSON price table. Empty selects the
	// embedded default.
	PriceTable string `json:"priceTable,omitempty"`
	// Executor restricts replay to logs emitted by this contract.
	Executor *common.Address `json:"executor,omitempty"`
	// LenientConditions treats any non-zero select condition as true.
	LenientConditions bool `json:"lenientConditions,omitempty"`
	// EnforceLimits fails a run whose report breaks the HCU ceilings.
	EnforceLimits bool   `json:"enforceLimits,omitempty"`
	MaxTxHCU      uint64 `json:"maxTxHCU,omitempty"`
	MaxTxHCUDepth uint64 `json:"maxTxHCUDepth,omitempty"`
	// RandSeed keys the random operations. Empty draws a fresh seed.
	RandSeed hexutil.Bytes `json:"randSeed,omitempty"`
}

// DefaultConfig returns the configuration of a plain test run.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads a JSON config file and verifies it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := new(Config)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Verify checks the config for internal consistency.
func (c *Config) Verify() error {
	if n := len(c.RandSeed); n != 0 && n != SeedLen {
		return fmt.Errorf("%w: randSeed is %d bytes, want %d", ErrInvalidConfig, n, SeedLen)
	}
	if c.MaxTxHCU != 0 && c.MaxTxHCUDepth > c.MaxTxHCU {
		return fmt.Errorf("%w: maxTxHCUDepth %d exceeds maxTxHCU %d", ErrInvalidConfig, c.MaxTxHCUDepth, c.MaxTxHCU)
	}
	if c.Executor != nil && *c.Executor == (common.Address{}) {
		return fmt.Errorf("%w: executor is the zero address", ErrInvalidConfig)
	}
	return nil
}

// Equal reports whether c and other describe the same run.
func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	sameExecutor := (c.Executor == nil) == (other.Executor == nil) &&
		(c.Executor == nil || *c.Executor == *other.Executor)
	return sameExecutor &&
		c.PriceTable == other.PriceTable &&
		c.LenientConditions == other.LenientConditions &&
		c.EnforceLimits == other.EnforceLimits &&
		c.MaxTxHCU == other.MaxTxHCU &&
		c.MaxTxHCUDepth == other.MaxTxHCUDepth &&
		bytes.Equal(c.RandSeed, other.RandSeed)
}

// Limits returns the HCU ceilings, falling back to the network defaults.
func (c *Config) Limits() hcu.Limits {
	l := hcu.DefaultLimits()
	if c.MaxTxHCU != 0 {
		l.MaxTxHCU = c.MaxTxHCU
	}
	if c.MaxTxHCUDepth != 0 {
		l.MaxTxHCUDepth = c.MaxTxHCUDepth
	}
	return l
}
