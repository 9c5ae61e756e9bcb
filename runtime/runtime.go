package runtime

import (
	stderrors "errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
	"github.com/wippyai/ecsact-runtime/native"
	"github.com/wippyai/ecsact-runtime/symbol"
)

// Runtime is a set of loaded runtime libraries with one resolved entry point
// table and the facades over it. A Runtime is driven from one goroutine at a
// time; callbacks run on that goroutine during the call that triggered them.
type Runtime struct {
	log     *zap.Logger
	metrics Metrics
	codecs  *marshal.Registry
	table   *symbol.Table
	libs    []symbol.Library

	core      *Core
	dynamic   *Dynamic
	meta      *Meta
	serialize *Serialize
	static    *Static
	async     *Async
	wasm      *Wasm
	events    *Events

	rawComponents map[abi.ComponentID]marshal.Codec
	rawActions    map[abi.ActionID]marshal.Codec

	// ids whose registered codec size matched the native size
	checkedComponents map[abi.ComponentID]struct{}
	checkedActions    map[abi.ActionID]struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type config struct {
	log       *zap.Logger
	metrics   Metrics
	registry  *marshal.Registry
	opener    func(path string) (symbol.Library, error)
	libraries []symbol.Library
	strict    bool
}

// Option configures a Runtime.
type Option func(*config)

// WithLogger sets the logger. The default is the package Logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithRegistry sets the codec registry used to convert component and action
// values. Ids missing from it are handled as raw bytes sized by the Meta
// facade.
func WithRegistry(r *marshal.Registry) Option {
	return func(c *config) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithLibraries appends in-process libraries after the ones opened from
// paths, so they override them.
func WithLibraries(libs ...symbol.Library) Option {
	return func(c *config) {
		c.libraries = append(c.libraries, libs...)
	}
}

// WithOpener replaces how Load opens a path.
func WithOpener(open func(path string) (symbol.Library, error)) Option {
	return func(c *config) {
		if open != nil {
			c.opener = open
		}
	}
}

// WithStrictLoad makes Load fail on the first path that cannot be opened
// instead of skipping it.
func WithStrictLoad() Option {
	return func(c *config) {
		c.strict = true
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		log:     Logger(),
		metrics: nopMetrics{},
		opener: func(path string) (symbol.Library, error) {
			lib, err := native.Open(path)
			if err != nil {
				return nil, err
			}
			return lib, nil
		},
	}
	for _, o := range opts {
		o(c)
	}
	if c.registry == nil {
		c.registry = marshal.NewRegistry()
	}
	return c
}

// Load opens the runtime libraries at paths in order and resolves the entry
// point catalog across them. A symbol exported by several libraries is taken
// from the last one. Paths that fail to open are logged and skipped; Load
// fails only when nothing could be opened or nothing resolved.
func Load(paths []string, opts ...Option) (*Runtime, error) {
	cfg := newConfig(opts)

	var (
		libs     []symbol.Library
		failures []error
	)
	for _, path := range paths {
		lib, err := cfg.opener(path)
		if err != nil {
			if cfg.strict {
				closeLibraries(libs)
				return nil, err
			}
			cfg.log.Warn("runtime library failed to load", zap.String("path", path), zap.Error(err))
			failures = append(failures, err)
			continue
		}
		cfg.log.Info("runtime library loaded", zap.String("path", path))
		libs = append(libs, lib)
	}
	libs = append(libs, cfg.libraries...)

	if len(libs) == 0 {
		return nil, errors.New(errors.PhaseLoad, errors.KindLoadFailure).
			Detail("no runtime library could be opened").
			Cause(stderrors.Join(failures...)).
			Build()
	}
	return newRuntime(cfg, libs)
}

// New builds a Runtime over already opened libraries, in load order. The
// Runtime takes ownership of them.
func New(libs []symbol.Library, opts ...Option) (*Runtime, error) {
	cfg := newConfig(opts)
	all := append(slices.Clone(libs), cfg.libraries...)
	if len(all) == 0 {
		return nil, errors.New(errors.PhaseLoad, errors.KindLoadFailure).
			Detail("no runtime library given").
			Build()
	}
	return newRuntime(cfg, all)
}

func newRuntime(cfg *config, libs []symbol.Library) (*Runtime, error) {
	table := symbol.Resolve(libs)
	if table.Len() == 0 {
		closeLibraries(libs)
		return nil, errors.New(errors.PhaseLoad, errors.KindLoadFailure).
			Detail("no entry point resolved from %d libraries", len(libs)).
			Build()
	}
	if err := symbol.BindAll(table, libs); err != nil {
		closeLibraries(libs)
		return nil, err
	}

	rt := &Runtime{
		log:           cfg.log,
		metrics:       cfg.metrics,
		codecs:        cfg.registry,
		table:         table,
		libs:          libs,
		rawComponents: make(map[abi.ComponentID]marshal.Codec),
		rawActions:    make(map[abi.ActionID]marshal.Codec),

		checkedComponents: make(map[abi.ComponentID]struct{}),
		checkedActions:    make(map[abi.ActionID]struct{}),
	}
	rt.events = newEvents(rt)
	rt.core = &Core{rt: rt, registries: make(map[abi.RegistryID]string)}
	rt.dynamic = newDynamic(rt)
	rt.meta = &Meta{rt: rt}
	rt.serialize = &Serialize{rt: rt}
	rt.static = &Static{rt: rt}
	rt.async = newAsync(rt)
	rt.wasm = newWasm(rt)

	for _, g := range abi.Groups {
		rt.log.Debug("facade resolved",
			zap.String("group", string(g)),
			zap.Strings("available", table.Available(g)))
	}

	rt.wasm.installTrapHandler()
	return rt, nil
}

// Close releases every library exactly once, in reverse load order. It is
// safe to call more than once.
func (rt *Runtime) Close() error {
	rt.closeOnce.Do(func() {
		rt.static.shutdown()
		rt.closed.Store(true)
		rt.closeErr = closeLibraries(rt.libs)
		rt.log.Debug("runtime closed", zap.Int("libraries", len(rt.libs)))
	})
	return rt.closeErr
}

// Closed reports whether Close has been called.
func (rt *Runtime) Closed() bool {
	return rt.closed.Load()
}

func closeLibraries(libs []symbol.Library) error {
	var errs []error
	for i := len(libs) - 1; i >= 0; i-- {
		if err := libs[i].Close(); err != nil {
			errs = append(errs, errors.Wrap(errors.PhaseLoad, errors.KindNativeFailure, err, "close "+libs[i].Path()))
		}
	}
	return stderrors.Join(errs...)
}

func (rt *Runtime) Core() *Core           { return rt.core }
func (rt *Runtime) Dynamic() *Dynamic     { return rt.dynamic }
func (rt *Runtime) Meta() *Meta           { return rt.meta }
func (rt *Runtime) Serialize() *Serialize { return rt.serialize }
func (rt *Runtime) Static() *Static       { return rt.static }
func (rt *Runtime) Async() *Async         { return rt.async }
func (rt *Runtime) Wasm() *Wasm           { return rt.wasm }
func (rt *Runtime) Events() *Events       { return rt.events }

// Registry returns the codec registry.
func (rt *Runtime) Registry() *marshal.Registry { return rt.codecs }

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *zap.Logger { return rt.log }

// Libraries returns the paths of the loaded libraries in load order.
func (rt *Runtime) Libraries() []string {
	paths := make([]string, len(rt.libs))
	for i, l := range rt.libs {
		paths[i] = l.Path()
	}
	return paths
}

// Available returns the resolved entry points of a group in catalog order.
func (rt *Runtime) Available(g abi.Group) []string {
	return rt.table.Available(g)
}

// Has reports whether an entry point resolved.
func (rt *Runtime) Has(name string) bool {
	return rt.table.Has(name)
}

// Origin returns the path of the library an entry point was taken from.
func (rt *Runtime) Origin(name string) string {
	return rt.table.Origin(name)
}

// Require returns a MissingEntryPointsError naming every entry point in names
// that did not resolve.
func (rt *Runtime) Require(names ...string) error {
	return rt.table.Missing(names...)
}

// need returns the resolved entry point or the error a facade operation
// reports when it is absent.
func need[F any](rt *Runtime, name string) (F, error) {
	var zero F
	if rt.closed.Load() {
		return zero, errors.InvalidState(errors.PhaseCall, "runtime is closed")
	}
	fn, ok := symbol.Bind[F](rt.table, name)
	if !ok {
		rt.metrics.MissingEntryPoint(name)
		return zero, errors.MissingEntryPoint(name)
	}
	rt.metrics.NativeCall(name)
	return fn, nil
}

// ComponentCodec returns the codec for a component id: the registered one, or
// raw bytes of the size the Meta facade reports. A registered codec whose size
// differs from the native size is a TypeMismatch.
func (rt *Runtime) ComponentCodec(id abi.ComponentID) (marshal.Codec, error) {
	if c, ok := rt.codecs.Component(id); ok {
		if _, done := rt.checkedComponents[id]; done || !rt.Has(abi.SymMetaComponentSize) {
			return c, nil
		}
		size, err := rt.meta.ComponentSize(id)
		if err != nil {
			return nil, err
		}
		if err := checkCodecSize(abi.SymMetaComponentSize, "component", int32(id), size, c); err != nil {
			return nil, err
		}
		rt.checkedComponents[id] = struct{}{}
		return c, nil
	}
	if c, ok := rt.rawComponents[id]; ok {
		return c, nil
	}
	size, err := rt.meta.ComponentSize(id)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMarshal, errors.KindInvalidInput, err,
			"no codec registered for component and its size is unknown")
	}
	c := marshal.Raw{N: int(size)}
	rt.rawComponents[id] = c
	return c, nil
}

// ActionCodec is ComponentCodec for actions.
func (rt *Runtime) ActionCodec(id abi.ActionID) (marshal.Codec, error) {
	if c, ok := rt.codecs.Action(id); ok {
		if _, done := rt.checkedActions[id]; done || !rt.Has(abi.SymMetaActionSize) {
			return c, nil
		}
		size, err := rt.meta.ActionSize(id)
		if err != nil {
			return nil, err
		}
		if err := checkCodecSize(abi.SymMetaActionSize, "action", int32(id), size, c); err != nil {
			return nil, err
		}
		rt.checkedActions[id] = struct{}{}
		return c, nil
	}
	if c, ok := rt.rawActions[id]; ok {
		return c, nil
	}
	size, err := rt.meta.ActionSize(id)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMarshal, errors.KindInvalidInput, err,
			"no codec registered for action and its size is unknown")
	}
	c := marshal.Raw{N: int(size)}
	rt.rawActions[id] = c
	return c, nil
}

func checkCodecSize(symbol, what string, id, native int32, c marshal.Codec) error {
	if int(native) == c.Size() {
		return nil
	}
	return errors.TypeMismatch(errors.PhaseMarshal, symbol,
		fmt.Sprintf("%d bytes for %s %d", native, what, id),
		fmt.Sprintf("registered codec of %d bytes", c.Size()))
}

func (rt *Runtime) forgetComponentSize(id abi.ComponentID) {
	delete(rt.rawComponents, id)
	delete(rt.checkedComponents, id)
}

func (rt *Runtime) forgetActionSize(id abi.ActionID) {
	delete(rt.rawActions, id)
	delete(rt.checkedActions, id)
}
