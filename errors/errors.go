package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // opening runtime libraries
	PhaseResolve  Phase = "resolve"  // entry point lookup
	PhaseCall     Phase = "call"     // facade operation
	PhaseMarshal  Phase = "marshal"  // Go values to native buffers and back
	PhaseDispatch Phase = "dispatch" // native callback fan-out
	PhaseAsync    Phase = "async"    // async session
	PhaseGuest    Phase = "guest"    // guest (wasm) system modules
	PhaseConfig   Phase = "config"   // settings
)

// Kind categorizes the error
type Kind string

const (
	KindMissingEntryPoint Kind = "missing_entry_point"
	KindInvalidReference  Kind = "invalid_reference"
	KindLoadFailure       Kind = "load_failure"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidState      Kind = "invalid_state"
	KindNativeFailure     Kind = "native_failure"
	KindTypeMismatch      Kind = "type_mismatch"
	KindNotFound          Kind = "not_found"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindGuestLoad         Kind = "guest_load"
	KindGuestTrap         Kind = "guest_trap"
	KindAsync             Kind = "async"
)

// Error is the structured error type used throughout the runtime binding
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Symbol string // C entry point involved, if any
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" in ")
		b.WriteString(e.Symbol)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any *Error in err's chain has the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Symbol sets the entry point name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// MissingEntryPoint is returned when an operation needs a symbol that no
// loaded library exports.
func MissingEntryPoint(symbol string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindMissingEntryPoint,
		Symbol: symbol,
		Detail: "entry point not provided by any loaded library",
	}
}

// InvalidReference reports an id that does not name a live object.
func InvalidReference(phase Phase, what string, id any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidReference,
		Detail: fmt.Sprintf("%s %v does not exist", what, id),
		Value:  id,
	}
}

// LoadFailure creates a library loading error
func LoadFailure(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoadFailure,
		Detail: fmt.Sprintf("open %s", path),
		Value:  path,
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidState creates an error for an operation not allowed in the current state
func InvalidState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: detail,
	}
}

// NativeFailure reports a non-success status code returned by native code.
func NativeFailure(symbol string, code any) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNativeFailure,
		Symbol: symbol,
		Detail: fmt.Sprintf("returned %v", code),
		Value:  code,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, symbol, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Symbol: symbol,
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// OutOfBounds creates a buffer size error
func OutOfBounds(phase Phase, what string, need, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("%s needs %d bytes, have %d", what, need, have),
		Value:  have,
	}
}

// GuestLoad creates a guest module loading error
func GuestLoad(code any, detail string) *Error {
	return &Error{
		Phase:  PhaseGuest,
		Kind:   KindGuestLoad,
		Detail: detail,
		Value:  code,
	}
}

// GuestTrap creates an error describing a fault inside a guest system
func GuestTrap(systemID int32, msg string) *Error {
	return &Error{
		Phase:  PhaseGuest,
		Kind:   KindGuestTrap,
		Detail: fmt.Sprintf("system %d: %s", systemID, msg),
		Value:  systemID,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingSymbol is a single unresolved entry point with the facade it belongs to
type MissingSymbol struct {
	Group  string // e.g., "async"
	Symbol string // e.g., "ecsact_async_connect"
}

// MissingEntryPointsError is returned when a set of required entry points is
// not fully provided by the loaded libraries
type MissingEntryPointsError struct {
	Symbols []MissingSymbol
}

// NewMissingEntryPointsError creates an error from a list of "group#symbol" strings
func NewMissingEntryPointsError(keys []string) *MissingEntryPointsError {
	result := &MissingEntryPointsError{
		Symbols: make([]MissingSymbol, 0, len(keys)),
	}
	for _, key := range keys {
		group, sym := parseSymbolKey(key)
		result.Symbols = append(result.Symbols, MissingSymbol{
			Group:  group,
			Symbol: sym,
		})
	}
	return result
}

func parseSymbolKey(key string) (group, symbol string) {
	g, s, found := strings.Cut(key, "#")
	if found {
		return g, s
	}
	return "", key
}

func (e *MissingEntryPointsError) Error() string {
	if len(e.Symbols) == 0 {
		return "[resolve] missing_entry_point: no symbols specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d entry point(s):\n", len(e.Symbols))

	byGroup := make(map[string][]string)
	var order []string
	for _, s := range e.Symbols {
		if _, exists := byGroup[s.Group]; !exists {
			order = append(order, s.Group)
		}
		byGroup[s.Group] = append(byGroup[s.Group], s.Symbol)
	}

	for _, g := range order {
		b.WriteString("\n  ")
		if g == "" {
			b.WriteString("(ungrouped)")
		} else {
			b.WriteString(g)
		}
		b.WriteString(":\n")
		for _, sym := range byGroup[g] {
			b.WriteString("    - ")
			b.WriteString(sym)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type. A MissingEntryPointsError
// also matches a single MissingEntryPoint error.
func (e *MissingEntryPointsError) Is(target error) bool {
	switch t := target.(type) {
	case *MissingEntryPointsError:
		return true
	case *Error:
		return t.Kind == KindMissingEntryPoint
	}
	return false
}
