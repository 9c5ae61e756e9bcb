package runtime

import (
	stderrors "errors"
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
	"github.com/wippyai/ecsact-runtime/resource"
)

// ComponentHandler receives one component lifecycle event. value is the
// decoded component: the registered Go type, or []byte for unregistered ids.
type ComponentHandler func(entity abi.EntityID, component abi.ComponentID, value any)

type subscription[F any] struct {
	fn F
	id uint64
}

// subscribers is a copy-on-write list: a dispatch iterates the slice it read
// at the start, so subscribing or unsubscribing from inside a handler only
// affects later dispatches.
type subscribers[F any] struct {
	list []subscription[F]
	next uint64
	mu   sync.Mutex
}

func (s *subscribers[F]) add(fn F) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	s.list = append(slices.Clip(s.list), subscription[F]{fn: fn, id: id})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers[F]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.list {
		if sub.id == id {
			s.list = slices.Concat(s.list[:i], s.list[i+1:])
			return
		}
	}
}

func (s *subscribers[F]) snapshot() []subscription[F] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list
}

func (s *subscribers[F]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

const eventKinds = 3

// Events routes init, update and remove notifications from native code to
// Go subscribers. For each event, subscribers registered for the event's
// component id run first, then wildcard subscribers, each group in
// registration order.
type Events struct {
	rt       *Runtime
	byType   [eventKinds]map[abi.ComponentID]*subscribers[ComponentHandler]
	wildcard [eventKinds]subscribers[ComponentHandler]
	errs     []error
	mu       sync.Mutex
}

func newEvents(rt *Runtime) *Events {
	e := &Events{rt: rt}
	for i := range e.byType {
		e.byType[i] = make(map[abi.ComponentID]*subscribers[ComponentHandler])
	}
	return e
}

func validEvent(ev abi.Event) bool {
	return ev >= abi.EventInit && ev <= abi.EventRemove
}

// Subscribe registers fn for ev on one component id and returns a func that
// unsubscribes it.
func (e *Events) Subscribe(ev abi.Event, component abi.ComponentID, fn ComponentHandler) func() {
	if !validEvent(ev) || fn == nil {
		return func() {}
	}
	e.mu.Lock()
	subs, ok := e.byType[ev][component]
	if !ok {
		subs = &subscribers[ComponentHandler]{}
		e.byType[ev][component] = subs
	}
	e.mu.Unlock()
	return subs.add(fn)
}

// SubscribeAny registers fn for ev on every component.
func (e *Events) SubscribeAny(ev abi.Event, fn ComponentHandler) func() {
	if !validEvent(ev) || fn == nil {
		return func() {}
	}
	return e.wildcard[ev].add(fn)
}

func (e *Events) OnInit(component abi.ComponentID, fn ComponentHandler) func() {
	return e.Subscribe(abi.EventInit, component, fn)
}

func (e *Events) OnUpdate(component abi.ComponentID, fn ComponentHandler) func() {
	return e.Subscribe(abi.EventUpdate, component, fn)
}

func (e *Events) OnRemove(component abi.ComponentID, fn ComponentHandler) func() {
	return e.Subscribe(abi.EventRemove, component, fn)
}

func (e *Events) OnAnyInit(fn ComponentHandler) func() {
	return e.SubscribeAny(abi.EventInit, fn)
}

func (e *Events) OnAnyUpdate(fn ComponentHandler) func() {
	return e.SubscribeAny(abi.EventUpdate, fn)
}

func (e *Events) OnAnyRemove(fn ComponentHandler) func() {
	return e.SubscribeAny(abi.EventRemove, fn)
}

// wanted reports whether anything listens for ev, so collectors only carry
// callbacks that have a destination.
func (e *Events) wanted(ev abi.Event) bool {
	if e.wildcard[ev].len() > 0 {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, subs := range e.byType[ev] {
		if subs.len() > 0 {
			return true
		}
	}
	return false
}

func (e *Events) typed(ev abi.Event, component abi.ComponentID) []subscription[ComponentHandler] {
	e.mu.Lock()
	subs, ok := e.byType[ev][component]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return subs.snapshot()
}

// collector builds the events collector for one native call. h must stay
// live until that call returns.
func (e *Events) collector(h resource.Handle) *abi.EventsCollector {
	c := &abi.EventsCollector{}
	ud := h.UserData()
	if e.wanted(abi.EventInit) {
		c.Init, c.InitUserData = onComponentEvent, ud
	}
	if e.wanted(abi.EventUpdate) {
		c.Update, c.UpdateUserData = onComponentEvent, ud
	}
	if e.wanted(abi.EventRemove) {
		c.Remove, c.RemoveUserData = onComponentEvent, ud
	}
	return c
}

func (e *Events) dispatch(ev abi.Event, entity abi.EntityID, component abi.ComponentID, data unsafe.Pointer) {
	if !validEvent(ev) {
		e.fail(errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("unknown event kind %d", ev)))
		return
	}
	typed := e.typed(ev, component)
	wild := e.wildcard[ev].snapshot()
	if len(typed) == 0 && len(wild) == 0 {
		return
	}

	codec, err := e.rt.ComponentCodec(component)
	if err != nil {
		e.fail(err)
		return
	}
	value, err := marshal.DecodeAt(codec, data)
	if err != nil {
		e.fail(errors.Wrap(errors.PhaseDispatch, errors.KindInvalidInput, err,
			fmt.Sprintf("decode component %d of entity %d", component, entity)))
		return
	}

	e.rt.metrics.EventDispatched(ev)
	defer e.recoverHandler(ev.String())
	for _, s := range typed {
		s.fn(entity, component, value)
	}
	for _, s := range wild {
		s.fn(entity, component, value)
	}
}

// recoverHandler turns a panicking subscriber into a dispatch failure so it
// never unwinds through native frames. It must be deferred directly.
func (e *Events) recoverHandler(what string) {
	if r := recover(); r != nil {
		e.fail(errors.New(errors.PhaseDispatch, errors.KindInvalidState).
			Detail("%s handler panicked: %v", what, r).
			Build())
	}
}

func (e *Events) fail(err error) {
	e.rt.log.Warn("event dispatch failed", zap.Error(err))
	e.errs = append(e.errs, err)
}

// takeErrors returns and clears the failures collected since the last call.
func (e *Events) takeErrors() error {
	if len(e.errs) == 0 {
		return nil
	}
	err := stderrors.Join(e.errs...)
	e.errs = nil
	return err
}

func onComponentEvent(ev abi.Event, entity abi.EntityID, component abi.ComponentID, data unsafe.Pointer, userData uintptr) {
	rt, ok := runtimes.Resolve(userData)
	if !ok {
		Logger().Warn("component event for unknown token dropped",
			zap.Stringer("event", ev),
			zap.Int32("entity", int32(entity)),
			zap.Int32("component", int32(component)))
		return
	}
	rt.events.dispatch(ev, entity, component, data)
}
