package marshal

import "unsafe"

// maxCString bounds the scan for a terminator in native strings.
const maxCString = 1 << 20

// GoString copies the NUL-terminated string at p. A nil pointer yields "".
func GoString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for n < maxCString && *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}

// View returns the n bytes at p without copying. The result must not outlive
// the native call that produced p.
func View(p unsafe.Pointer, n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}
