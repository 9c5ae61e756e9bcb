package runtime

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// AsyncState is the connection state of the async facade.
type AsyncState int32

const (
	Disconnected AsyncState = iota
	Connecting
	Connected
)

func (s AsyncState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type (
	AsyncErrorHandler      func(err abi.AsyncError, request abi.RequestID)
	AsyncConnectHandler    func(address string, port int32)
	ActionCommittedHandler func(action abi.ActionID, value any, tick int32, request abi.RequestID)
	StateChangeHandler     func(from, to AsyncState)
)

// Async drives a runtime that executes actions remotely. Requests are
// correlated by the ids native code returns; results arrive only inside
// FlushEvents, on the calling goroutine.
//
// State moves Disconnected -> Connecting on Connect and Connecting ->
// Connected on the connect event. Any error while Connecting, or a
// connection level error at any time, moves back to Disconnected.
type Async struct {
	rt      *Runtime
	pending map[abi.RequestID]abi.ActionID
	session string
	state   AsyncState

	onError     subscribers[AsyncErrorHandler]
	onConnect   subscribers[AsyncConnectHandler]
	onCommitted subscribers[ActionCommittedHandler]
	onState     subscribers[StateChangeHandler]
}

func newAsync(rt *Runtime) *Async {
	return &Async{
		rt:      rt,
		pending: make(map[abi.RequestID]abi.ActionID),
	}
}

// State returns the current connection state.
func (a *Async) State() AsyncState { return a.state }

// Session returns the id of the current or last connect attempt.
func (a *Async) Session() string { return a.session }

// Pending returns the outstanding request ids in ascending order.
func (a *Async) Pending() []abi.RequestID {
	ids := make([]abi.RequestID, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (a *Async) OnError(fn AsyncErrorHandler) func()                { return a.onError.add(fn) }
func (a *Async) OnConnect(fn AsyncConnectHandler) func()            { return a.onConnect.add(fn) }
func (a *Async) OnActionCommitted(fn ActionCommittedHandler) func() { return a.onCommitted.add(fn) }
func (a *Async) OnStateChange(fn StateChangeHandler) func()         { return a.onState.add(fn) }

func (a *Async) logger() *zap.Logger {
	return a.rt.log.With(zap.String("session", a.session))
}

// Connect starts connecting. The outcome is reported through OnConnect or
// OnError during a later FlushEvents.
func (a *Async) Connect(connection string) (abi.RequestID, error) {
	fn, err := need[abi.AsyncConnectFunc](a.rt, abi.SymAsyncConnect)
	if err != nil {
		return abi.InvalidID, err
	}
	if a.state != Disconnected {
		return abi.InvalidID, errors.InvalidState(errors.PhaseAsync, "connect while "+a.state.String())
	}

	a.session = uuid.NewString()
	a.setState(Connecting)
	req := fn(connection)
	a.logger().Info("async connect", zap.Int32("request", int32(req)))
	return req, nil
}

// Disconnect closes the connection and abandons pending requests.
func (a *Async) Disconnect() error {
	fn, err := need[abi.AsyncDisconnectFunc](a.rt, abi.SymAsyncDisconnect)
	if err != nil {
		return err
	}
	if a.state == Disconnected {
		return nil
	}
	fn()
	if n := len(a.pending); n > 0 {
		a.logger().Debug("pending requests abandoned", zap.Int("count", n))
	}
	clear(a.pending)
	a.setState(Disconnected)
	return nil
}

// ExecuteAction queues an action for the next tick.
func (a *Async) ExecuteAction(action abi.ActionID, value any) (abi.RequestID, error) {
	fn, err := need[abi.AsyncExecuteActionFunc](a.rt, abi.SymAsyncExecuteAction)
	if err != nil {
		return abi.InvalidID, err
	}
	return a.enqueue(abi.SymAsyncExecuteAction, action, value, func(data unsafe.Pointer) abi.RequestID {
		return fn(action, data)
	})
}

// ExecuteActionAt queues an action for a specific tick.
func (a *Async) ExecuteActionAt(action abi.ActionID, value any, tick int32) (abi.RequestID, error) {
	fn, err := need[abi.AsyncExecuteActionAtFunc](a.rt, abi.SymAsyncExecuteActionAt)
	if err != nil {
		return abi.InvalidID, err
	}
	return a.enqueue(abi.SymAsyncExecuteActionAt, action, value, func(data unsafe.Pointer) abi.RequestID {
		return fn(action, data, tick)
	})
}

func (a *Async) enqueue(symbol string, action abi.ActionID, value any, call func(unsafe.Pointer) abi.RequestID) (abi.RequestID, error) {
	if a.state == Disconnected {
		return abi.InvalidID, errors.New(errors.PhaseAsync, errors.KindInvalidState).
			Symbol(symbol).
			Detail("not connected").
			Build()
	}
	codec, err := a.rt.ActionCodec(action)
	if err != nil {
		return abi.InvalidID, err
	}

	arena := marshal.NewArena()
	defer arena.Release()

	data, err := marshal.Encode(arena, codec, value)
	if err != nil {
		return abi.InvalidID, err
	}
	req := call(data)
	if req < 0 {
		return abi.InvalidID, errors.NativeFailure(symbol, int32(req))
	}
	a.pending[req] = action
	return req, nil
}

// FlushEvents delivers everything that arrived since the last flush:
// component events, connect and error events, committed actions. It is the
// only place async callbacks run.
func (a *Async) FlushEvents() error {
	fn, err := need[abi.AsyncFlushEventsFunc](a.rt, abi.SymAsyncFlushEvents)
	if err != nil {
		return err
	}

	h, release := runtimes.Acquire(a.rt)
	defer release()
	if h == 0 {
		return errTokensExhausted()
	}

	ud := h.UserData()
	fn(a.rt.events.collector(h), &abi.AsyncEventsCollector{
		Error:                   onAsyncError,
		Connect:                 onAsyncConnect,
		ActionCommitted:         onActionCommitted,
		ErrorUserData:           ud,
		ConnectUserData:         ud,
		ActionCommittedUserData: ud,
	})
	return a.rt.events.takeErrors()
}

func (a *Async) setState(to AsyncState) {
	from := a.state
	if from == to {
		return
	}
	a.state = to
	a.logger().Debug("async state", zap.Stringer("from", from), zap.Stringer("to", to))
	for _, s := range a.onState.snapshot() {
		s.fn(from, to)
	}
}

func (a *Async) handleError(err abi.AsyncError, req abi.RequestID) {
	a.rt.metrics.AsyncError(err)
	delete(a.pending, req)
	a.logger().Warn("async error", zap.Stringer("error", err), zap.Int32("request", int32(req)))

	if a.state == Connecting || err.ConnectionLevel() {
		clear(a.pending)
		a.setState(Disconnected)
	}
	for _, s := range a.onError.snapshot() {
		s.fn(err, req)
	}
}

func (a *Async) handleConnect(address string, port int32) {
	a.logger().Info("async connected", zap.String("address", address), zap.Int32("port", port))
	a.setState(Connected)
	for _, s := range a.onConnect.snapshot() {
		s.fn(address, port)
	}
}

func (a *Async) handleCommitted(action abi.ActionID, data unsafe.Pointer, tick int32, req abi.RequestID) {
	delete(a.pending, req)
	subs := a.onCommitted.snapshot()
	if len(subs) == 0 {
		return
	}
	codec, err := a.rt.ActionCodec(action)
	if err != nil {
		a.rt.events.fail(err)
		return
	}
	value, err := marshal.DecodeAt(codec, data)
	if err != nil {
		a.rt.events.fail(errors.Wrap(errors.PhaseAsync, errors.KindInvalidInput, err,
			fmt.Sprintf("decode action %d of request %d", action, req)))
		return
	}
	for _, s := range subs {
		s.fn(action, value, tick, req)
	}
}

func onAsyncError(err abi.AsyncError, req abi.RequestID, userData uintptr) {
	rt, ok := runtimes.Resolve(userData)
	if !ok {
		Logger().Warn("async error for unknown token dropped", zap.Stringer("error", err))
		return
	}
	defer rt.events.recoverHandler("async error")
	rt.async.handleError(err, req)
}

func onAsyncConnect(address string, port int32, userData uintptr) {
	rt, ok := runtimes.Resolve(userData)
	if !ok {
		Logger().Warn("async connect for unknown token dropped", zap.String("address", address))
		return
	}
	defer rt.events.recoverHandler("async connect")
	rt.async.handleConnect(address, port)
}

func onActionCommitted(action abi.ActionID, data unsafe.Pointer, tick int32, req abi.RequestID, userData uintptr) {
	rt, ok := runtimes.Resolve(userData)
	if !ok {
		Logger().Warn("committed action for unknown token dropped", zap.Int32("action", int32(action)))
		return
	}
	defer rt.events.recoverHandler("action committed")
	rt.async.handleCommitted(action, data, tick, req)
}
