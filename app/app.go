// Package app wires settings to a loaded runtime.
//
// A Context owns one runtime and the registries created for it from
// settings. There is no process-wide default runtime: hosts keep the Context
// and pass it (or its Runtime) to whatever needs it.
//
//	settings, err := config.Load("ecsact.yaml", ".env")
//	c, err := app.Open(settings, runtime.WithLogger(log))
//	defer c.Close()
//	main, err := c.Registry("main")
//	err = c.Run(ctx)
package app

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/config"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/runtime"
)

// Context owns a runtime and its default registries.
type Context struct {
	rt         *runtime.Runtime
	settings   *config.Settings
	registries map[string]abi.RegistryID
	order      []string
}

// Open loads the runtime libraries named by s and creates its default
// registries. A nil s uses config.Default.
func Open(s *config.Settings, opts ...runtime.Option) (*Context, error) {
	if s == nil {
		s = config.Default()
	}
	rt, err := runtime.Load(s.RuntimeLibraryPaths, opts...)
	if err != nil {
		return nil, err
	}
	c, err := New(rt, s)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return c, nil
}

// New adopts an already loaded runtime. The Context closes it.
func New(rt *runtime.Runtime, s *config.Settings) (*Context, error) {
	if s == nil {
		s = config.Default()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	c := &Context{
		rt:         rt,
		settings:   s,
		registries: make(map[string]abi.RegistryID, len(s.DefaultRegistries)),
	}
	for _, name := range s.DefaultRegistries {
		id, err := rt.Core().CreateRegistry(name)
		if err != nil {
			return nil, err
		}
		c.registries[name] = id
		c.order = append(c.order, name)
		rt.Logger().Debug("default registry created",
			zap.String("name", name),
			zap.Int32("id", int32(id)))
	}
	return c, nil
}

// Runtime returns the owned runtime.
func (c *Context) Runtime() *runtime.Runtime { return c.rt }

// Settings returns the settings the Context was created with.
func (c *Context) Settings() *config.Settings { return c.settings }

// Registry returns the id of a default registry by name.
func (c *Context) Registry(name string) (abi.RegistryID, error) {
	id, ok := c.registries[name]
	if !ok {
		return abi.InvalidID, errors.NotFound(errors.PhaseCall, "registry", name)
	}
	return id, nil
}

// Registries returns the default registry names in creation order.
func (c *Context) Registries() []string {
	return slices.Clone(c.order)
}

// Run drives async events until ctx is cancelled. Without useAsyncRunner it
// only waits for cancellation.
func (c *Context) Run(ctx context.Context, opts ...RunnerOption) error {
	if !c.settings.UseAsyncRunner {
		<-ctx.Done()
		return nil
	}
	return NewRunner(c.rt, c.settings.AsyncRunnerInterval, opts...).Run(ctx)
}

// Close releases the runtime.
func (c *Context) Close() error {
	return c.rt.Close()
}
