package memruntime

import (
	"net"
	"strconv"
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
)

type asyncKind int

const (
	asyncConnected asyncKind = iota
	asyncFailed
	asyncCommit
)

type asyncEvent struct {
	kind    asyncKind
	err     abi.AsyncError
	request abi.RequestID
	address string
	port    int32
	action  abi.ActionID
	data    []byte
	tick    int32
}

// asyncState simulates a remote runtime. Requests are answered on the next
// flush; committed actions execute against a registry owned by the session.
type asyncState struct {
	queue       []asyncEvent
	nextRequest int32
	tick        int32
	connected   bool
	registry    abi.RegistryID
	hasRegistry bool
}

func (m *Runtime) request() abi.RequestID {
	m.async.nextRequest++
	return abi.RequestID(m.async.nextRequest)
}

// asyncConnect accepts "host:port".
func (m *Runtime) asyncConnect(connection string) abi.RequestID {
	req := m.request()
	host, portText, err := net.SplitHostPort(connection)
	port, perr := strconv.Atoi(portText)
	if err != nil || perr != nil || host == "" {
		m.async.queue = append(m.async.queue, asyncEvent{
			kind:    asyncFailed,
			err:     abi.AsyncErrInvalidConnectionString,
			request: req,
		})
		return req
	}
	m.async.queue = append(m.async.queue, asyncEvent{
		kind:    asyncConnected,
		request: req,
		address: host,
		port:    int32(port),
	})
	return req
}

func (m *Runtime) asyncDisconnect() {
	m.async.queue = nil
	m.async.connected = false
}

func (m *Runtime) asyncExecuteAction(id abi.ActionID, data unsafe.Pointer) abi.RequestID {
	return m.asyncExecuteActionAt(id, data, m.async.tick+1)
}

func (m *Runtime) asyncExecuteActionAt(id abi.ActionID, data unsafe.Pointer, tick int32) abi.RequestID {
	req := m.request()
	a := m.action(id)
	if a == nil {
		m.async.queue = append(m.async.queue, asyncEvent{kind: asyncFailed, err: abi.AsyncErrStateFail, request: req})
		return req
	}
	m.async.queue = append(m.async.queue, asyncEvent{
		kind:    asyncCommit,
		request: req,
		action:  id,
		data:    copyIn(data, a.size),
		tick:    tick,
	})
	return req
}

// InjectError queues an async error for the next flush.
func (m *Runtime) InjectError(err abi.AsyncError, req abi.RequestID) {
	m.async.queue = append(m.async.queue, asyncEvent{kind: asyncFailed, err: err, request: req})
}

// Tick returns the number of flushes so far.
func (m *Runtime) Tick() int32 { return m.async.tick }

// Connected reports whether the simulated session is connected.
func (m *Runtime) Connected() bool { return m.async.connected }

// SessionRegistry returns the registry committed actions execute in.
func (m *Runtime) SessionRegistry() (abi.RegistryID, bool) {
	return m.async.registry, m.async.hasRegistry
}

func (m *Runtime) asyncFlushEvents(exec *abi.EventsCollector, async *abi.AsyncEventsCollector) {
	m.async.tick++
	queue := m.async.queue
	m.async.queue = nil

	for _, ev := range queue {
		switch ev.kind {
		case asyncConnected:
			m.async.connected = true
			if !m.async.hasRegistry {
				m.async.registry = m.createRegistry("async")
				m.async.hasRegistry = true
			}
			if async != nil && async.Connect != nil {
				async.Connect(ev.address, ev.port, async.ConnectUserData)
			}

		case asyncFailed:
			if ev.err.ConnectionLevel() {
				m.async.connected = false
			}
			if async != nil && async.Error != nil {
				async.Error(ev.err, ev.request, async.ErrorUserData)
			}

		case asyncCommit:
			if ev.tick > m.async.tick {
				m.async.queue = append(m.async.queue, ev)
				continue
			}
			if !m.async.connected {
				if async != nil && async.Error != nil {
					async.Error(abi.AsyncErrStateFail, ev.request, async.ErrorUserData)
				}
				continue
			}
			m.commit(ev, exec)
			if async != nil && async.ActionCommitted != nil {
				async.ActionCommitted(ev.action, ptr(ev.data), m.async.tick, ev.request, async.ActionCommittedUserData)
			}
		}
	}
}

func (m *Runtime) commit(ev asyncEvent, exec *abi.EventsCollector) {
	r, ok := m.registries[m.async.registry]
	if !ok {
		return
	}
	actions := []abi.Action{{ID: ev.action, Data: ptr(ev.data)}}
	options := []abi.ExecutionOptions{{ActionsLength: 1, Actions: &actions[0]}}
	m.execute(r, options).emit(exec)
}
