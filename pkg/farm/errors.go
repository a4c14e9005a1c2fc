package farm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedAgent matches every UnresolvedAgentError.
	ErrUnresolvedAgent = errors.New("agent cannot be resolved")

	// ErrVendorAPI matches every VendorAPIError.
	ErrVendorAPI = errors.New("farm API error")
)

// UnresolvedAgentError reports that no catalog entry matched Spec.
type UnresolvedAgentError struct {
	Spec Spec
}

func (e *UnresolvedAgentError) Error() string {
	return fmt.Sprintf("requested agent cannot be resolved: %s", e.Spec)
}

func (e *UnresolvedAgentError) Is(target error) bool {
	return target == ErrUnresolvedAgent
}

// VendorAPIError carries a farm's error payload or a transport failure.
type VendorAPIError struct {
	Vendor  string
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *VendorAPIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d)", e.Vendor, e.Op, msg, e.Status)
	}
	return fmt.Sprintf("%s %s: %s", e.Vendor, e.Op, msg)
}

func (e *VendorAPIError) Unwrap() error {
	return e.Err
}

func (e *VendorAPIError) Is(target error) bool {
	return target == ErrVendorAPI
}
