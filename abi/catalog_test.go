package abi

import (
	"reflect"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCatalogNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range Catalog {
		require.False(t, seen[e.Name], "duplicate %s", e.Name)
		seen[e.Name] = true
		require.Equal(t, reflect.Func, e.Type.Kind(), e.Name)
		require.True(t, strings.HasPrefix(e.Name, "ecsact"), e.Name)
	}
}

func TestSymbolsByGroup(t *testing.T) {
	counts := map[Group]int{
		GroupCore:      18,
		GroupDynamic:   24,
		GroupMeta:      8,
		GroupSerialize: 6,
		GroupStatic:    5,
		GroupAsync:     5,
		GroupWasm:      3,
	}
	total := 0
	for _, g := range Groups {
		require.Len(t, Symbols(g), counts[g], string(g))
		total += counts[g]
	}
	require.Len(t, Catalog, total)

	core := Symbols(GroupCore)
	require.Equal(t, SymCreateRegistry, core[0])
	require.Equal(t, SymExecuteSystems, core[len(core)-1])
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(SymAsyncConnect)
	require.True(t, ok)
	require.Equal(t, GroupAsync, e.Group)
	require.Equal(t, reflect.TypeFor[AsyncConnectFunc](), e.Type)

	_, ok = Lookup("ecsact_create_variant")
	require.False(t, ok)
}

func TestExecutionOptionsViews(t *testing.T) {
	entities := []EntityID{1, 2}
	comps := []Component{{ID: 10}, {ID: 11}}
	removed := []ComponentID{12}
	opts := ExecutionOptions{
		AddComponentsLength:      2,
		AddComponentsEntities:    &entities[0],
		AddComponents:            &comps[0],
		RemoveComponentsLength:   1,
		RemoveComponentsEntities: &entities[1],
		RemoveComponents:         &removed[0],
	}

	ents, added := opts.Adds()
	require.Equal(t, entities, ents)
	require.Equal(t, comps, added)

	ents, ids := opts.Removes()
	require.Equal(t, []EntityID{2}, ents)
	require.Equal(t, removed, ids)

	ents, updated := opts.Updates()
	require.Nil(t, ents)
	require.Nil(t, updated)
	require.Nil(t, opts.ActionList())
}

func TestLayout(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout check assumes a 64-bit target")
	}
	require.Equal(t, uintptr(16), unsafe.Sizeof(Component{}))
	require.Equal(t, uintptr(8), unsafe.Offsetof(Component{}.Data))
	require.Equal(t, uintptr(88), unsafe.Sizeof(ExecutionOptions{}))
	require.Equal(t, uintptr(24), unsafe.Offsetof(ExecutionOptions{}.UpdateComponentsLength))
	require.Equal(t, uintptr(80), unsafe.Offsetof(ExecutionOptions{}.Actions))
}

func TestEnumStrings(t *testing.T) {
	require.Equal(t, "update", EventUpdate.String())
	require.Equal(t, "adds", CapAdds.String())
	require.True(t, CapAdds.Has(CapExclude))
	require.True(t, CapOptionalReadWrite.Has(CapReadonly))
	require.Equal(t, "export invalid", WasmErrExportInvalid.String())
	require.False(t, AsyncErrStateFail.ConnectionLevel())
	require.True(t, AsyncErrSocketFail.ConnectionLevel())
}
