package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a provisioning failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindChipUnsupported
	KindConfiguration
	KindVersionQuery
	KindProtocolMismatch
	KindVersionIncompatible
	KindFirmwareNotFound
	KindTransfer
	KindTimeout
)

var kindNames = [...]string{
	KindUnknown:             "unknown failure",
	KindChipUnsupported:     "chip unsupported",
	KindConfiguration:       "configuration failure",
	KindVersionQuery:        "version query failure",
	KindProtocolMismatch:    "protocol mismatch",
	KindVersionIncompatible: "version incompatible",
	KindFirmwareNotFound:    "firmware not found",
	KindTransfer:            "transfer failure",
	KindTimeout:             "timeout",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Sentinel values for errors.Is. Any *Error of the same kind matches.
var (
	ErrChipUnsupported     = &Error{Kind: KindChipUnsupported}
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrVersionQuery        = &Error{Kind: KindVersionQuery}
	ErrProtocolMismatch    = &Error{Kind: KindProtocolMismatch}
	ErrVersionIncompatible = &Error{Kind: KindVersionIncompatible}
	ErrFirmwareNotFound    = &Error{Kind: KindFirmwareNotFound}
	ErrTransfer            = &Error{Kind: KindTransfer}
	ErrTimeout             = &Error{Kind: KindTimeout}
)

// Error is a classified provisioning error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under kind. A nil err stays nil. If err already
// carries a timeout classification it is kept as a timeout.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if kind != KindTimeout && errors.Is(err, ErrTimeout) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Op + ": " + e.Kind.String()
	case e.Op == "":
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the outermost classification found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MismatchError describes an EDL response whose framing differs from the
// expected values.
type MismatchError struct {
	Field    string
	Expected int
	Actual   int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: expected 0x%02X, got 0x%02X", e.Field, e.Expected, e.Actual)
}

// IncompatibleError describes a candidate firmware rejected by the version
// compatibility rule.
type IncompatibleError struct {
	DeviceROM   uint32
	DeviceBuild uint32
	PatchROM    uint32
	PatchBuild  uint32
}

func (e *IncompatibleError) Error() string {
	if e.PatchROM != e.DeviceROM {
		return fmt.Sprintf("patch rom version 0x%08X does not match device rom version 0x%08X",
			e.PatchROM, e.DeviceROM)
	}
	return fmt.Sprintf("patch build 0x%X is not newer than device build 0x%X",
		e.PatchBuild, e.DeviceBuild)
}
