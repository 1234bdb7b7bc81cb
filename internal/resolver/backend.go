package resolver

import (
	"fmt"
	"runtime"
)

const (
	BackendAuto   = "auto"
	BackendLsof   = "lsof"
	BackendProcfs = "procfs"
)

// NewTable returns the process table for backend. "auto" picks procfs where
// it is available and lsof elsewhere.
func NewTable(backend string, runner CommandRunner) (ProcessTable, error) {
	switch backend {
	case "", BackendAuto:
		if procfsSupported {
			return NewProcfsTable(DefaultProcRoot), nil
		}
		return NewLsofTable(runner), nil
	case BackendLsof:
		return NewLsofTable(runner), nil
	case BackendProcfs:
		if !procfsSupported {
			return nil, fmt.Errorf("%w: procfs on %s", ErrUnsupported, runtime.GOOS)
		}
		return NewProcfsTable(DefaultProcRoot), nil
	default:
		return nil, fmt.Errorf("unknown resolver backend %q", backend)
	}
}
