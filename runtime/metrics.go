package runtime

import "github.com/wippyai/ecsact-runtime/abi"

// Metrics receives runtime counters. metrics.Collector implements it.
type Metrics interface {
	NativeCall(symbol string)
	MissingEntryPoint(symbol string)
	EventDispatched(ev abi.Event)
	AsyncError(err abi.AsyncError)
	GuestTrap(system abi.SystemID)
}

type nopMetrics struct{}

func (nopMetrics) NativeCall(string)         {}
func (nopMetrics) MissingEntryPoint(string)  {}
func (nopMetrics) EventDispatched(abi.Event) {}
func (nopMetrics) AsyncError(abi.AsyncError) {}
func (nopMetrics) GuestTrap(abi.SystemID)    {}
