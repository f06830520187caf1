// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eventlog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

//go:embed executor.abi
var executorABIJSON string

// ExecutorABI describes the events emitted by the FHE executor contract.
var ExecutorABI = ParseABI(executorABIJSON)

// ExtendedABI wraps the standard ABI with event packing and unpacking.
type ExtendedABI struct {
	abi.ABI
}

// ParseABI builds an ExtendedABI from JSON. It panics on malformed input
// and is meant for embedded definitions.
func ParseABI(rawABI string) ExtendedABI {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		panic(fmt.Sprintf("parse executor ABI: %v", err))
	}
	return ExtendedABI{ABI: parsed}
}

// PackEvent returns the topics and data of a log of the named event. args
// follow the event's input order, indexed ones included.
func (e ExtendedABI) PackEvent(name string, args ...interface{}) ([]common.Hash, []byte, error) {
	event, ok := e.Events[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	if len(args) != len(event.Inputs) {
		return nil, nil, fmt.Errorf("%s takes %d arguments, got %d", name, len(event.Inputs), len(args))
	}

	topics := make([]common.Hash, 0, 2)
	if !event.Anonymous {
		topics = append(topics, event.ID)
	}
	var (
		dataArgs abi.Arguments
		dataVals []interface{}
	)
	for i, in := range event.Inputs {
		if !in.Indexed {
			dataArgs = append(dataArgs, in)
			dataVals = append(dataVals, args[i])
			continue
		}
		topic, err := topicOf(args[i])
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", name, in.Name, err)
		}
		topics = append(topics, topic)
	}

	data, err := dataArgs.Pack(dataVals...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", name, err)
	}
	return topics, data, nil
}

// UnpackEvent decodes topics and data of the event identified by topics[0]
// into a map keyed by argument name.
func (e ExtendedABI) UnpackEvent(topics []common.Hash, data []byte) (*abi.Event, map[string]interface{}, error) {
	if len(topics) == 0 {
		return nil, nil, fmt.Errorf("%w: no topics", ErrMalformedLog)
	}
	event, err := e.EventByID(topics[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: topic %s", ErrUnknownEvent, topics[0].Hex())
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(topics)-1 != len(indexed) {
		return event, nil, fmt.Errorf("%w: %s has %d topics, want %d", ErrMalformedLog, event.Name, len(topics), len(indexed)+1)
	}

	fields := make(map[string]interface{}, len(event.Inputs))
	if err := event.Inputs.UnpackIntoMap(fields, data); err != nil {
		return event, nil, fmt.Errorf("%w: %s data: %v", ErrMalformedLog, event.Name, err)
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, topics[1:]); err != nil {
		return event, nil, fmt.Errorf("%w: %s topics: %v", ErrMalformedLog, event.Name, err)
	}
	return event, fields, nil
}

// topicOf left-pads an indexed value to a topic word. Only the static
// types the executor indexes are supported.
func topicOf(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Address:
		return common.BytesToHash(v.Bytes()), nil
	case common.Hash:
		return v, nil
	default:
		return common.Hash{}, fmt.Errorf("cannot index %T", value)
	}
}
