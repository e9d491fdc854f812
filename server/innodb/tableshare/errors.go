package tableshare

import (
	"errors"
	"fmt"

	jerrors "github.com/juju/errors"
)

// ErrorKind classifies a failed compilation.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnknownStorageEngine
	KindUnknownCollation
	KindPluginNotLoaded
	KindInvalidMetadata
	KindOutOfMemory
)

var kindNames = map[ErrorKind]string{
	KindUnknown:              "Unknown",
	KindUnknownStorageEngine: "UnknownStorageEngine",
	KindUnknownCollation:     "UnknownCollation",
	KindPluginNotLoaded:      "PluginNotLoaded",
	KindInvalidMetadata:      "InvalidMetadata",
	KindOutOfMemory:          "OutOfMemory",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the terminal error of a compilation. Object names the column,
// index or partition the failure is about, when there is one.
// 编译失败的错误类型
type Error struct {
	Kind    ErrorKind
	Table   string
	Object  string
	Message string
}

func (e *Error) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("%s: table %s, %s: %s", e.Kind, e.Table, e.Object, e.Message)
	}
	return fmt.Sprintf("%s: table %s: %s", e.Kind, e.Table, e.Message)
}

func newError(kind ErrorKind, table, object, format string, args ...interface{}) error {
	return jerrors.Trace(&Error{
		Kind:    kind,
		Table:   table,
		Object:  object,
		Message: fmt.Sprintf(format, args...),
	})
}

// KindOf returns the kind of a compilation error, looking through
// annotations. Errors from elsewhere report KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(jerrors.Cause(err), &e) {
		return e.Kind
	}
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsUnknownStorageEngine checks the error kind.
func IsUnknownStorageEngine(err error) bool { return KindOf(err) == KindUnknownStorageEngine }

// IsUnknownCollation checks the error kind.
func IsUnknownCollation(err error) bool { return KindOf(err) == KindUnknownCollation }

// IsPluginNotLoaded checks the error kind.
func IsPluginNotLoaded(err error) bool { return KindOf(err) == KindPluginNotLoaded }

// IsInvalidMetadata checks the error kind.
func IsInvalidMetadata(err error) bool { return KindOf(err) == KindInvalidMetadata }

// IsOutOfMemory checks the error kind.
func IsOutOfMemory(err error) bool { return KindOf(err) == KindOutOfMemory }

// Severity of a diagnostic.
type Severity string

const (
	SeverityNote    Severity = "Note"
	SeverityWarning Severity = "Warning"
)

// Diagnostic codes raised by the compiler.
const (
	CodeCrashedOnUsage   uint16 = 1194
	CodeUnknownCollation uint16 = 1273
)

// Diagnostic is a non-fatal finding reported next to a descriptor.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     uint16   `json:"code"`
	Object   string   `json:"object,omitempty"`
	Message  string   `json:"message"`
}

// Diagnostics is the side channel of a compilation.
type Diagnostics []Diagnostic

// HasWarnings reports whether any warning was raised.
func (d Diagnostics) HasWarnings() bool {
	for _, diag := range d {
		if diag.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Codes lists the codes in raise order.
func (d Diagnostics) Codes() []uint16 {
	out := make([]uint16, 0, len(d))
	for _, diag := range d {
		out = append(out, diag.Code)
	}
	return out
}
