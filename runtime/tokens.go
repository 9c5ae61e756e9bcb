package runtime

import (
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/resource"
)

// Kinds of values behind a user-data token.
const (
	tokenRuntime uint32 = iota + 1
	tokenEach
	tokenReload
)

// tokens is shared by every Runtime in the process: native code only ever
// sees handles from it, and a handle is dropped once the call it was made
// for returns. Stale handles fail to resolve because of their generation.
var tokens = resource.NewTable()

var (
	runtimes     = resource.NewTyped[*Runtime](tokens, tokenRuntime)
	eachVisitors = resource.NewTyped[func(abi.ComponentID, unsafe.Pointer)](tokens, tokenEach)
	reloaders    = resource.NewTyped[*Static](tokens, tokenReload)
)

// Tokens exposes the process-wide token table so its lifecycle can be
// observed (metrics.Collector counts live tokens).
func Tokens() *resource.Table {
	return tokens
}

// errTokensExhausted is returned instead of passing a zero token to native
// code, which would drop every callback of the call.
func errTokensExhausted() error {
	return errors.InvalidState(errors.PhaseCall, "callback token table exhausted")
}
