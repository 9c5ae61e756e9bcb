package marshal

import (
	"github.com/wippyai/ecsact-runtime/abi"
)

// Change adds or updates one component on one entity.
type Change struct {
	Value     any
	Entity    abi.EntityID
	Component abi.ComponentID
}

// Removal removes one component from one entity.
type Removal struct {
	Entity    abi.EntityID
	Component abi.ComponentID
}

// ActionValue is an action queued for one execution.
type ActionValue struct {
	Value  any
	Action abi.ActionID
}

// Batch is the host-side form of one ecsact_execution_options entry.
type Batch struct {
	Adds    []Change
	Updates []Change
	Removes []Removal
	Actions []ActionValue
}

// Empty reports whether the batch carries nothing.
func (b *Batch) Empty() bool {
	return len(b.Adds) == 0 && len(b.Updates) == 0 && len(b.Removes) == 0 && len(b.Actions) == 0
}

// Codecs resolves the codec for an id, falling back however the caller likes
// (the runtime asks the Meta facade for sizes).
type Codecs interface {
	ComponentCodec(id abi.ComponentID) (Codec, error)
	ActionCodec(id abi.ActionID) (Codec, error)
}

// ExecutionOptions lays batches out in arena memory in the C layout. The
// result, and everything it points to, is valid until a.Release.
func ExecutionOptions(a *Arena, codecs Codecs, batches []Batch) ([]abi.ExecutionOptions, error) {
	opts := Alloc[abi.ExecutionOptions](a, len(batches))
	for i := range batches {
		if err := fillOptions(a, codecs, &batches[i], &opts[i]); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func fillOptions(a *Arena, codecs Codecs, b *Batch, o *abi.ExecutionOptions) error {
	var err error
	o.AddComponentsLength = int32(len(b.Adds))
	o.AddComponentsEntities, o.AddComponents, err = changes(a, codecs, b.Adds)
	if err != nil {
		return err
	}

	o.UpdateComponentsLength = int32(len(b.Updates))
	o.UpdateComponentsEntities, o.UpdateComponents, err = changes(a, codecs, b.Updates)
	if err != nil {
		return err
	}

	if n := len(b.Removes); n > 0 {
		entities := Alloc[abi.EntityID](a, n)
		ids := Alloc[abi.ComponentID](a, n)
		for i, r := range b.Removes {
			entities[i] = r.Entity
			ids[i] = r.Component
		}
		o.RemoveComponentsLength = int32(n)
		o.RemoveComponentsEntities = &entities[0]
		o.RemoveComponents = &ids[0]
	}

	if n := len(b.Actions); n > 0 {
		actions := Alloc[abi.Action](a, n)
		for i, av := range b.Actions {
			c, err := codecs.ActionCodec(av.Action)
			if err != nil {
				return err
			}
			p, err := Encode(a, c, av.Value)
			if err != nil {
				return err
			}
			actions[i] = abi.Action{ID: av.Action, Data: p}
		}
		o.ActionsLength = int32(n)
		o.Actions = &actions[0]
	}
	return nil
}

func changes(a *Arena, codecs Codecs, list []Change) (*abi.EntityID, *abi.Component, error) {
	if len(list) == 0 {
		return nil, nil, nil
	}
	entities := Alloc[abi.EntityID](a, len(list))
	comps := Alloc[abi.Component](a, len(list))
	for i, ch := range list {
		c, err := codecs.ComponentCodec(ch.Component)
		if err != nil {
			return nil, nil, err
		}
		p, err := Encode(a, c, ch.Value)
		if err != nil {
			return nil, nil, err
		}
		entities[i] = ch.Entity
		comps[i] = abi.Component{ID: ch.Component, Data: p}
	}
	return &entities[0], &comps[0], nil
}
