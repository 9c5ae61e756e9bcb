//go:build !(darwin || freebsd || linux || windows)

package native

import (
	"runtime"

	"github.com/wippyai/ecsact-runtime/errors"
)

func unsupported() error {
	return errors.New(errors.PhaseLoad, errors.KindLoadFailure).
		Detail("loading shared libraries is not supported on %s", runtime.GOOS).
		Build()
}

func dlopen(string) (uintptr, error)         { return 0, unsupported() }
func dlsym(uintptr, string) (uintptr, error) { return 0, unsupported() }
func dlclose(uintptr) error                  { return unsupported() }
