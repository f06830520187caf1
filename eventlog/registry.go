// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eventlog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/fhemock/ops"
)

// Fields holds the unpacked arguments of one event, keyed by argument name.
type Fields map[string]interface{}

// DecodeFunc turns the fields of a named event into a record.
type DecodeFunc func(name string, fields Fields) (ops.Record, error)

type decoder struct {
	name   string
	decode DecodeFunc
}

var (
	registryMu sync.RWMutex
	// decoders is kept sorted by event name for deterministic iteration
	decoders = make([]decoder, 0, len(ExecutorABI.Events))
)

// Register installs fn as the decoder of the named event. The event must be
// declared in ExecutorABI and may be registered only once.
func Register(name string, fn DecodeFunc) error {
	if _, ok := ExecutorABI.Events[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotInABI, name)
	}
	if fn == nil {
		return fmt.Errorf("nil decoder for %s", name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	for _, d := range decoders {
		if d.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateDecoder, name)
		}
	}
	decoders = append(decoders, decoder{name: name, decode: fn})
	sort.Slice(decoders, func(i, j int) bool { return decoders[i].name < decoders[j].name })
	return nil
}

// Lookup returns the decoder registered for name.
func Lookup(name string) (DecodeFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	i := sort.Search(len(decoders), func(i int) bool { return decoders[i].name >= name })
	if i < len(decoders) && decoders[i].name == name {
		return decoders[i].decode, true
	}
	return nil, false
}

// Registered returns the names of all registered events in sorted order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, len(decoders))
	for i, d := range decoders {
		names[i] = d.name
	}
	return names
}

func mustRegister(name string, fn DecodeFunc) {
	if err := Register(name, fn); err != nil {
		panic(err)
	}
}

func init() {
	for _, k := range ops.Kinds() {
		mustRegister(k.String(), decoderFor(k))
	}
}

func decoderFor(k ops.Kind) DecodeFunc {
	switch {
	case k == ops.KindTrivialEncrypt:
		return decodeTrivialEncrypt
	case k == ops.KindVerify:
		return decodeVerify
	case k == ops.KindCast:
		return decodeCast
	case k == ops.KindNot, k == ops.KindNeg:
		return decodeUnary
	case k == ops.KindIfThenElse:
		return decodeIfThenElse
	case k == ops.KindRand:
		return decodeRand
	case k == ops.KindRandBounded:
		return decodeRandBounded
	case k.IsScalarCapable():
		return decodeScalarBinary
	default:
		return decodeBitwise
	}
}
