package runtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/resource"
)

// Static lists the components, systems and actions a runtime was built with.
type Static struct {
	rt     *Runtime
	reload subscribers[func()]

	// token is live while the native reload callback is registered, from the
	// first OnReload until the last unsubscribe or Close.
	token resource.Handle
}

func (s *Static) Components() ([]abi.StaticComponentInfo, error) {
	fn, err := need[abi.StaticComponentsFunc](s.rt, abi.SymStaticComponents)
	if err != nil {
		return nil, err
	}
	return fn(), nil
}

func (s *Static) Systems() ([]abi.StaticSystemInfo, error) {
	fn, err := need[abi.StaticSystemsFunc](s.rt, abi.SymStaticSystems)
	if err != nil {
		return nil, err
	}
	return fn(), nil
}

func (s *Static) Actions() ([]abi.StaticActionInfo, error) {
	fn, err := need[abi.StaticActionsFunc](s.rt, abi.SymStaticActions)
	if err != nil {
		return nil, err
	}
	return fn(), nil
}

// OnReload subscribes fn to static reload notifications, which native code
// sends after the set of static types changed.
func (s *Static) OnReload(fn func()) (func(), error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseCall, "nil reload handler")
	}
	if s.token == 0 {
		if err := s.register(); err != nil {
			return nil, err
		}
	}
	unsubscribe := s.reload.add(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			if s.reload.len() == 0 {
				s.unregister()
			}
		})
	}, nil
}

func (s *Static) register() error {
	on, err := need[abi.StaticOnReloadFunc](s.rt, abi.SymStaticOnReload)
	if err != nil {
		return err
	}
	if !s.rt.Has(abi.SymStaticOffReload) {
		s.rt.metrics.MissingEntryPoint(abi.SymStaticOffReload)
		return errors.MissingEntryPoint(abi.SymStaticOffReload)
	}
	h := reloaders.Insert(s)
	if h == 0 {
		return errTokensExhausted()
	}
	on(onStaticReload, h.UserData())
	s.token = h
	return nil
}

func (s *Static) unregister() {
	if s.token == 0 {
		return
	}
	if off, err := need[abi.StaticOffReloadFunc](s.rt, abi.SymStaticOffReload); err == nil {
		off(s.token.UserData())
	} else {
		s.rt.log.Warn("reload callback left registered", zap.Error(err))
	}
	tokens.Remove(s.token)
	s.token = 0
}

func (s *Static) shutdown() {
	s.unregister()
}

func (s *Static) fire() {
	for _, sub := range s.reload.snapshot() {
		sub.fn()
	}
}

func onStaticReload(userData uintptr) {
	s, ok := reloaders.Resolve(userData)
	if !ok {
		Logger().Warn("reload callback for unknown token dropped")
		return
	}
	s.rt.log.Debug("static reload")
	s.fire()
}
