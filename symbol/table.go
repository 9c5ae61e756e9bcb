package symbol

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
)

// Table is the resolved set of entry points. It is built once by Resolve and
// read-only afterwards.
type Table struct {
	funcs  map[string]any
	origin map[string]string
}

type resolveConfig struct {
	catalog []abi.Entry
}

// Option configures resolution.
type Option func(*resolveConfig)

// WithCatalog restricts resolution to the given entries.
func WithCatalog(entries []abi.Entry) Option {
	return func(c *resolveConfig) {
		c.catalog = entries
	}
}

// Resolve looks up every catalog entry in every library. Libraries are
// consulted in load order and a later library overrides an earlier one for
// any symbol both provide. A missing or mistyped symbol in one library never
// affects the others.
func Resolve(libs []Library, opts ...Option) *Table {
	cfg := resolveConfig{catalog: abi.Catalog}
	for _, o := range opts {
		o(&cfg)
	}

	t := &Table{
		funcs:  make(map[string]any, len(cfg.catalog)),
		origin: make(map[string]string, len(cfg.catalog)),
	}

	for _, lib := range libs {
		resolved := 0
		for _, e := range cfg.catalog {
			fn, ok := lib.Lookup(e.Name)
			if !ok || fn == nil {
				continue
			}
			if got := reflect.TypeOf(fn); got != e.Type {
				Logger().Warn("entry point has wrong Go type, ignoring",
					zap.String("library", lib.Path()),
					zap.String("symbol", e.Name),
					zap.Stringer("want", e.Type),
					zap.Stringer("got", got))
				continue
			}
			if prev, ok := t.origin[e.Name]; ok {
				Logger().Debug("entry point overridden",
					zap.String("symbol", e.Name),
					zap.String("previous", prev),
					zap.String("library", lib.Path()))
			}
			t.funcs[e.Name] = fn
			t.origin[e.Name] = lib.Path()
			resolved++
		}
		Logger().Debug("library resolved",
			zap.String("library", lib.Path()),
			zap.Int("symbols", resolved))
	}

	return t
}

// Lookup returns the resolved function for name.
func (t *Table) Lookup(name string) (any, bool) {
	fn, ok := t.funcs[name]
	return fn, ok
}

// Has reports whether name resolved.
func (t *Table) Has(name string) bool {
	_, ok := t.funcs[name]
	return ok
}

// Origin returns the path of the library that provided name.
func (t *Table) Origin(name string) string {
	return t.origin[name]
}

// Len returns the number of resolved entry points.
func (t *Table) Len() int {
	return len(t.funcs)
}

// Available returns the resolved names of a group in catalog order.
func (t *Table) Available(g abi.Group) []string {
	var names []string
	for _, name := range abi.Symbols(g) {
		if t.Has(name) {
			names = append(names, name)
		}
	}
	return names
}

// Missing returns a MissingEntryPointsError listing every name that did not
// resolve, or nil when all did.
func (t *Table) Missing(names ...string) error {
	var keys []string
	for _, name := range names {
		if t.Has(name) {
			continue
		}
		key := name
		if e, ok := abi.Lookup(name); ok {
			key = string(e.Group) + "#" + name
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.NewMissingEntryPointsError(keys)
}

// Bind returns the resolved function for name as T.
func Bind[T any](t *Table, name string) (T, bool) {
	var zero T
	if t == nil {
		return zero, false
	}
	fn, ok := t.funcs[name]
	if !ok {
		return zero, false
	}
	typed, ok := fn.(T)
	return typed, ok
}

// Require is Bind returning MissingEntryPoint when name did not resolve.
func Require[T any](t *Table, name string) (T, error) {
	fn, ok := Bind[T](t, name)
	if !ok {
		return fn, errors.MissingEntryPoint(name)
	}
	return fn, nil
}

// BindAll runs Bind on every library implementing Binder.
func BindAll(t *Table, libs []Library) error {
	for _, lib := range libs {
		b, ok := lib.(Binder)
		if !ok {
			continue
		}
		if err := b.Bind(t); err != nil {
			return errors.Wrap(errors.PhaseResolve, errors.KindLoadFailure, err, "bind "+lib.Path())
		}
	}
	return nil
}
