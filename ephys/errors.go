package ephys

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package wraps exactly one
// of these sentinels, so callers can classify failures with errors.Is
// without touching the concrete types.
var (
	// ErrContract indicates a broken construction contract: nil
	// descriptor, electrode site count mismatch, out-of-range virtual
	// channel. These point at a configuration bug in the producing
	// module, not at bad external input.
	ErrContract = errors.New("contract violation")

	// ErrTypeMismatch indicates an event variant built against a
	// descriptor declaring an incompatible channel type.
	ErrTypeMismatch = errors.New("channel type mismatch")

	// ErrSchemaMismatch indicates a decoded packet disagreeing with the
	// supplied descriptor: provenance, channel type or metadata schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrCodec indicates a truncated or malformed packet, or a serialize
	// destination smaller than the event.
	ErrCodec = errors.New("codec failure")
)

// ContractError reports a broken construction contract.
type ContractError struct {
	Op     string
	Detail string
}

func (e *ContractError) Error() string { return e.Op + ": " + e.Detail }
func (e *ContractError) Unwrap() error { return ErrContract }

// TypeError reports an event variant built or decoded against a descriptor
// of the wrong channel type.
type TypeError struct {
	Op       string
	Variant  ChannelType // the type the caller asked for
	Declared ChannelType // the type the descriptor declares
}

func (e *TypeError) Error() string {
	if e.Variant == InvalidType {
		return fmt.Sprintf("%s: descriptor declares %s, not an array type", e.Op, e.Declared)
	}
	return fmt.Sprintf("%s: descriptor declares %s, not %s", e.Op, e.Declared, e.Variant)
}
func (e *TypeError) Unwrap() error { return ErrTypeMismatch }

// SchemaError reports a packet whose header or metadata disagrees with the
// descriptor it was decoded against.
type SchemaError struct {
	Op     string
	Detail string
}

func (e *SchemaError) Error() string { return e.Op + ": " + e.Detail }
func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }

// CodecError reports a buffer problem: truncated input or under-sized
// output.
type CodecError struct {
	Op     string
	Detail string
}

func (e *CodecError) Error() string { return e.Op + ": " + e.Detail }
func (e *CodecError) Unwrap() error { return ErrCodec }

func contractf(op, format string, args ...any) error {
	return &ContractError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

func schemaf(op, format string, args ...any) error {
	return &SchemaError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

func codecf(op, format string, args ...any) error {
	return &CodecError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
