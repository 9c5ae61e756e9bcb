// Package marshal moves values across the native boundary.
//
// Arena owns the transient memory of one native call: component payloads,
// C strings and the arrays behind ExecutionOptions are allocated from it,
// pinned with runtime.Pinner, and unpinned on Release, which callers defer so
// it runs on every exit path.
//
// Codec converts one component or action type between a Go value and its
// native bytes. Struct[T] covers Go types that already have the C layout;
// Raw passes bytes through for ids nobody registered a type for. Registry
// maps ids to codecs; generated packages register their types through
// Registry.Install.
package marshal
