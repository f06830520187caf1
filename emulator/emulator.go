// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package emulator replays FHE executor logs against clear-text values and
// reports the HCU they would be charged.
//
// An Emulator owns one run: a shadow store, a cost accumulator and the
// evaluator that connects them. Runs share nothing, so tests may create as
// many as they like in parallel. Within a run operations are folded strictly
// in log order, since later operations read the results of earlier ones.
package emulator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"

	"github.com/luxfi/fhemock/arith"
	"github.com/luxfi/fhemock/eventlog"
	"github.com/luxfi/fhemock/handle"
	"github.com/luxfi/fhemock/hcu"
	"github.com/luxfi/fhemock/ops"
	"github.com/luxfi/fhemock/pricing"
	"github.com/luxfi/fhemock/shadow"
)

type options struct {
	logger log.Logger
	db     database.Database
	table  *pricing.Table
}

// Option customizes New.
type Option func(*options)

// WithLogger sets the run logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDatabase backs the shadow store with db. The run closes it.
func WithDatabase(db database.Database) Option {
	return func(o *options) { o.db = db }
}

// WithPriceTable charges from t instead of Config.PriceTable.
func WithPriceTable(t *pricing.Table) Option {
	return func(o *options) { o.table = t }
}

// Emulator is one evaluation run. It is not safe for concurrent use.
type Emulator struct {
	cfg    *Config
	log    log.Logger
	store  *shadow.Store
	eval   *arith.Evaluator
	acc    *hcu.Accumulator
	filter eventlog.Filter

	applied int
	err     error // first failure, returned by every later fold
}

// New starts a run configured by cfg. A nil cfg means DefaultConfig.
func New(cfg *Config, opts ...Option) (*Emulator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.NewLogger("fhemock")
	}

	table := o.table
	if table == nil {
		var err error
		if cfg.PriceTable != "" {
			table, err = pricing.LoadFile(cfg.PriceTable)
		} else {
			table, err = pricing.Default()
		}
		if err != nil {
			return nil, err
		}
	}

	var seed [SeedLen]byte
	if len(cfg.RandSeed) != 0 {
		copy(seed[:], cfg.RandSeed)
	} else if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("draw random seed: %w", err)
	}

	var store *shadow.Store
	if o.db != nil {
		store = shadow.Open(o.db)
	} else {
		store = shadow.New()
	}

	e := &Emulator{
		cfg:   cfg,
		log:   o.logger,
		store: store,
		eval: arith.New(store, arith.Options{
			LenientConditions: cfg.LenientConditions,
			Seed:              seed,
		}),
		acc: hcu.NewAccumulator(table),
	}
	if cfg.Executor != nil {
		e.filter.Executor = *cfg.Executor
	}
	e.log.Debug("emulator started",
		"prices", table.Version(),
		"seed", hexutil.Encode(seed[:]),
		"lenient", cfg.LenientConditions,
	)
	return e, nil
}

// Replay folds the executor events among logs, in order, and returns the
// cost report of the run so far. Logs of other events or other contracts are
// skipped. The first failure ends the run.
func (e *Emulator) Replay(ctx context.Context, logs []types.Log) (*hcu.Report, error) {
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	for i := range logs {
		l := &logs[i]
		if !e.filter.Match(l) {
			e.log.Debug("skipping foreign log", "index", i, "address", l.Address)
			continue
		}
		ev, ok, err := eventlog.Decode(l)
		if err != nil {
			return nil, e.fail(&OpError{Index: i, Err: err})
		}
		if !ok {
			e.log.Debug("skipping unknown event", "index", i, "topic", l.Topics[0])
			continue
		}
		if err := e.apply(ev.Record); err != nil {
			return nil, e.fail(&OpError{Index: i, Event: ev.Name, Handle: ev.Record.Result(), Err: err})
		}
	}
	return e.finish()
}

// Apply folds already decoded records, in order.
func (e *Emulator) Apply(ctx context.Context, records []ops.Record) (*hcu.Report, error) {
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	for i, r := range records {
		if err := e.apply(r); err != nil {
			return nil, e.fail(&OpError{Index: i, Event: r.Kind().String(), Handle: r.Result(), Err: err})
		}
	}
	return e.finish()
}

// GetClearText returns the clear-text value behind h, 0 if h is unknown.
func (e *Emulator) GetClearText(ctx context.Context, h common.Hash) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok, err := e.store.Entry(h)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.log.Debug("unresolved handle", "handle", h)
	}
	return entry.Value, nil
}

// SeedInput registers the clear text of a user input before the Verify
// event that admits it.
func (e *Emulator) SeedInput(h common.Hash, value *big.Int) error {
	typ, err := handle.TypeOf(h)
	if err != nil {
		return err
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 || value.BitLen() > int(typ.Bits()) {
		return fmt.Errorf("%w: %s does not fit %s", ErrInputOutOfRange, value, typ)
	}
	return e.store.Put(h, value, false)
}

// Report returns the cost report of the run so far.
func (e *Emulator) Report() *hcu.Report {
	return e.acc.Report()
}

// Err returns the error that ended the run, if any.
func (e *Emulator) Err() error {
	return e.err
}

// Close discards the run state.
func (e *Emulator) Close() error {
	return e.store.Close()
}

// EstimateCost charges records against table without evaluating them. A nil
// table means the embedded default.
func EstimateCost(table *pricing.Table, records []ops.Record) (*hcu.Report, error) {
	if table == nil {
		var err error
		if table, err = pricing.Default(); err != nil {
			return nil, err
		}
	}
	return hcu.Estimate(table, records)
}

// ready checks ctx once per fold; folding itself is never interrupted.
func (e *Emulator) ready(ctx context.Context) error {
	if e.err != nil {
		return e.err
	}
	return ctx.Err()
}

// apply prices r before evaluating it, so a failure at either step leaves
// both the store and the accumulator untouched.
func (e *Emulator) apply(r ops.Record) error {
	commit, err := e.acc.Charge(r)
	if err != nil {
		return err
	}
	if err := e.eval.Apply(r); err != nil {
		return err
	}
	commit()
	e.applied++
	return nil
}

func (e *Emulator) fail(err error) error {
	e.err = err
	e.log.Warn("run failed", "applied", e.applied, "err", err)
	return err
}

func (e *Emulator) finish() (*hcu.Report, error) {
	report := e.acc.Report()
	if e.cfg.EnforceLimits {
		if err := report.Check(e.cfg.Limits()); err != nil {
			return nil, e.fail(err)
		}
	}
	e.log.Info("run complete",
		"applied", e.applied,
		"globalTxHCU", report.GlobalTxHCU,
		"maxTxHCUDepth", report.MaxTxHCUDepth,
	)
	return report, nil
}
