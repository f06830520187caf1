// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package emulator

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
)

var ErrInputOutOfRange = errors.New("input value does not fit its handle type")

// OpError is the terminal error of a run. It names the operation that failed.
type OpError struct {
	// Index is the position of the failing log or record in its batch.
	Index  int
	Event  string
	Handle common.Hash
	Err    error
}

func (e *OpError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("op %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("op %d %s -> %s: %v", e.Index, e.Event, e.Handle.Hex(), e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
