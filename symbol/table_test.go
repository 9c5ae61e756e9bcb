package symbol

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
)

func registryLib(name string, id abi.RegistryID) *Funcs {
	return NewFuncs(name).
		Set(abi.SymCreateRegistry, abi.CreateRegistryFunc(func(string) abi.RegistryID { return id }))
}

func TestResolveLastLibraryWins(t *testing.T) {
	first := registryLib("first", 1).
		Set(abi.SymCountEntities, abi.CountEntitiesFunc(func(abi.RegistryID) int32 { return 10 }))
	second := registryLib("second", 2)

	table := Resolve([]Library{first, second})

	create, ok := Bind[abi.CreateRegistryFunc](table, abi.SymCreateRegistry)
	require.True(t, ok)
	require.Equal(t, abi.RegistryID(2), create("x"))
	require.Equal(t, "second", table.Origin(abi.SymCreateRegistry))

	count, ok := Bind[abi.CountEntitiesFunc](table, abi.SymCountEntities)
	require.True(t, ok, "symbol only in the first library must survive")
	require.Equal(t, int32(10), count(0))
	require.Equal(t, "first", table.Origin(abi.SymCountEntities))
}

func TestResolveIgnoresWrongType(t *testing.T) {
	good := registryLib("good", 7)
	bad := NewFuncs("bad").
		Set(abi.SymCreateRegistry, func(string) int32 { return 9 })

	table := Resolve([]Library{good, bad})

	create, ok := Bind[abi.CreateRegistryFunc](table, abi.SymCreateRegistry)
	require.True(t, ok)
	require.Equal(t, abi.RegistryID(7), create("x"), "mistyped override must not replace a good symbol")
}

func TestAvailableMatchesResolved(t *testing.T) {
	lib := NewFuncs("core").
		Set(abi.SymCreateRegistry, abi.CreateRegistryFunc(func(string) abi.RegistryID { return 0 })).
		Set(abi.SymDestroyRegistry, abi.DestroyRegistryFunc(func(abi.RegistryID) {})).
		Set(abi.SymCreateEntity, abi.CreateEntityFunc(func(abi.RegistryID) abi.EntityID { return 0 }))

	table := Resolve([]Library{lib})

	require.Equal(t, []string{
		abi.SymCreateRegistry,
		abi.SymDestroyRegistry,
		abi.SymCreateEntity,
	}, table.Available(abi.GroupCore))
	require.Empty(t, table.Available(abi.GroupAsync))
	require.Equal(t, 3, table.Len())

	for _, name := range abi.Symbols(abi.GroupCore) {
		_, err := Require[any](table, name)
		if table.Has(name) {
			continue
		}
		require.True(t, errors.IsKind(err, errors.KindMissingEntryPoint), name)
	}
}

func TestRequire(t *testing.T) {
	table := Resolve([]Library{registryLib("lib", 1)})

	_, err := Require[abi.AsyncConnectFunc](table, abi.SymAsyncConnect)
	require.Error(t, err)

	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	require.Equal(t, errors.KindMissingEntryPoint, e.Kind)
	require.Equal(t, abi.SymAsyncConnect, e.Symbol)

	fn, err := Require[abi.CreateRegistryFunc](table, abi.SymCreateRegistry)
	require.NoError(t, err)
	require.Equal(t, abi.RegistryID(1), fn(""))
}

func TestMissing(t *testing.T) {
	table := Resolve([]Library{registryLib("lib", 1)})

	require.NoError(t, table.Missing(abi.SymCreateRegistry))

	err := table.Missing(abi.SymCreateRegistry, abi.SymAsyncConnect, abi.SymMetaComponentName)
	var missing *errors.MissingEntryPointsError
	require.True(t, stderrors.As(err, &missing))
	require.Len(t, missing.Symbols, 2)
	require.Equal(t, "async", missing.Symbols[0].Group)
	require.Equal(t, abi.SymMetaComponentName, missing.Symbols[1].Symbol)
}

func TestWithCatalog(t *testing.T) {
	lib := registryLib("lib", 1).
		Set(abi.SymCountEntities, abi.CountEntitiesFunc(func(abi.RegistryID) int32 { return 0 }))

	only, _ := abi.Lookup(abi.SymCountEntities)
	table := Resolve([]Library{lib}, WithCatalog([]abi.Entry{only}))

	require.False(t, table.Has(abi.SymCreateRegistry))
	require.True(t, table.Has(abi.SymCountEntities))
}

type bindingLib struct {
	*Funcs
	bound *Table
	err   error
}

func (b *bindingLib) Bind(t *Table) error {
	b.bound = t
	return b.err
}

func TestBindAll(t *testing.T) {
	plain := registryLib("plain", 1)
	binder := &bindingLib{Funcs: NewFuncs("binder")}

	libs := []Library{plain, binder}
	table := Resolve(libs)
	require.NoError(t, BindAll(table, libs))
	require.Same(t, table, binder.bound)

	binder.err = stderrors.New("boom")
	err := BindAll(table, libs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "binder")
}

func TestFuncsClose(t *testing.T) {
	closes := 0
	lib := registryLib("lib", 1).OnClose(func() error {
		closes++
		return nil
	})

	require.NoError(t, lib.Close())
	require.NoError(t, lib.Close())
	require.Equal(t, 1, closes)
	require.True(t, lib.Closed())

	_, ok := lib.Lookup(abi.SymCreateRegistry)
	require.False(t, ok, "closed library must not hand out functions")
}
