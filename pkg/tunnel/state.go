package tunnel

import (
	"errors"
	"fmt"
)

// State is a step of the provisioning sequence.
type State int

const (
	NotNeeded State = iota
	NeedsBinary
	Launching
	WaitingReady
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case NotNeeded:
		return "not-needed"
	case NeedsBinary:
		return "needs-binary"
	case Launching:
		return "launching"
	case WaitingReady:
		return "waiting-ready"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrReadyTimeout is returned when a tunnel does not signal readiness in
// time.
var ErrReadyTimeout = errors.New("tunnel failed to launch in time")

// ProvisioningError reports which stage of provisioning failed.
type ProvisioningError struct {
	Tunnel string
	Stage  string
	Err    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s tunnel %s: %v", e.Tunnel, e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
