package marshal

import (
	"reflect"
	"sync"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
)

// Package is a set of component and action types registered together,
// usually one per generated Ecsact package.
type Package interface {
	Name() string
	Register(r *Registry) error
}

type binding struct {
	codec  Codec
	goType reflect.Type
}

// Registry maps component and action ids to codecs and Go types. Types are
// only known once something registers them; nothing is discovered.
type Registry struct {
	components  map[abi.ComponentID]binding
	actions     map[abi.ActionID]binding
	componentOf map[reflect.Type]abi.ComponentID
	actionOf    map[reflect.Type]abi.ActionID
	packages    map[string]bool
	mu          sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		components:  make(map[abi.ComponentID]binding),
		actions:     make(map[abi.ActionID]binding),
		componentOf: make(map[reflect.Type]abi.ComponentID),
		actionOf:    make(map[reflect.Type]abi.ActionID),
		packages:    make(map[string]bool),
	}
}

// Install registers packages. A package name is installed at most once.
func (r *Registry) Install(pkgs ...Package) error {
	for _, p := range pkgs {
		r.mu.Lock()
		done := r.packages[p.Name()]
		r.packages[p.Name()] = true
		r.mu.Unlock()
		if done {
			continue
		}
		if err := p.Register(r); err != nil {
			return errors.Wrap(errors.PhaseMarshal, errors.KindInvalidInput, err, "install package "+p.Name())
		}
	}
	return nil
}

// RegisterComponent binds T to a component id with a Struct codec.
func RegisterComponent[T any](r *Registry, id abi.ComponentID) error {
	c, err := NewStruct[T]()
	if err != nil {
		return err
	}
	r.SetComponentCodec(id, c, reflect.TypeFor[T]())
	return nil
}

// RegisterAction binds T to an action id with a Struct codec.
func RegisterAction[T any](r *Registry, id abi.ActionID) error {
	c, err := NewStruct[T]()
	if err != nil {
		return err
	}
	r.SetActionCodec(id, c, reflect.TypeFor[T]())
	return nil
}

// SetComponentCodec binds a custom codec. goType may be nil.
func (r *Registry) SetComponentCodec(id abi.ComponentID, c Codec, goType reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[id] = binding{codec: c, goType: goType}
	if goType != nil {
		r.componentOf[goType] = id
	}
}

// SetActionCodec binds a custom codec. goType may be nil.
func (r *Registry) SetActionCodec(id abi.ActionID, c Codec, goType reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[id] = binding{codec: c, goType: goType}
	if goType != nil {
		r.actionOf[goType] = id
	}
}

// Component returns the codec for a component id.
func (r *Registry) Component(id abi.ComponentID) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.components[id]
	return b.codec, ok
}

// Action returns the codec for an action id.
func (r *Registry) Action(id abi.ActionID) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.actions[id]
	return b.codec, ok
}

// ComponentType returns the Go type registered for a component id.
func (r *Registry) ComponentType(id abi.ComponentID) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.components[id]
	return b.goType, ok && b.goType != nil
}

// ComponentIDOf returns the component id T was registered under.
func ComponentIDOf[T any](r *Registry) (abi.ComponentID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.componentOf[reflect.TypeFor[T]()]
	return id, ok
}

// ActionIDOf returns the action id T was registered under.
func ActionIDOf[T any](r *Registry) (abi.ActionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.actionOf[reflect.TypeFor[T]()]
	return id, ok
}
