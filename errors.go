package rendergraph

import (
	"errors"
	"fmt"

	"github.com/gogpu/rendergraph/resource"
)

// Sentinel errors, grouped by the recovery policy each implies for the
// caller.
var (
	// ErrOutOfMemory reports a failed heap or backing allocation. The
	// resource registries report such failures as
	// *resource.OutOfMemoryError, which does not wrap this sentinel, and
	// nothing in this module retries a failed allocation.
	ErrOutOfMemory = errors.New("rendergraph: out of memory")

	// ErrInvalidHandle reports a Handle whose generation does not match
	// the slot it addresses, or whose slot is unallocated. The resource
	// registries report such handles as *resource.InvalidHandleError,
	// which does not wrap this sentinel.
	ErrInvalidHandle = errors.New("rendergraph: invalid handle")

	// ErrDescriptorMismatch is returned by ReplaceBacking when the new
	// backing's descriptor does not match the handle's original descriptor.
	// It is the same value as resource.ErrDescriptorMismatch.
	ErrDescriptorMismatch = resource.ErrDescriptorMismatch

	// ErrDeviceLost is returned when a submission-level fence wait times
	// out. The caller must flush state and re-materialize persistent
	// resources before submitting another frame.
	ErrDeviceLost = errors.New("rendergraph: device lost")

	// ErrFrameAborted names a frame abandoned before submission.
	// CommitFrame does not return it; it returns the error that stopped
	// the frame.
	ErrFrameAborted = errors.New("rendergraph: frame aborted")
)

// Debug is a switch for panicking on an invalid handle instead of
// returning an error. No code in this module reads it: invalid handles
// are reported as errors whatever its value. It defaults to false.
var Debug = false

// ValidationError reports a validation failure in a resource descriptor
// or usage declaration: a typed resource/field pair plus an optional
// cause.
type ValidationError struct {
	Resource string
	Field    string
	Message  string
	Cause    error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Resource, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Resource, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// NewValidationError builds a ValidationError.
func NewValidationError(resource, field, message string) *ValidationError {
	return &ValidationError{Resource: resource, Field: field, Message: message}
}

// NewValidationErrorf builds a ValidationError with a formatted message.
func NewValidationErrorf(resource, field, format string, args ...any) *ValidationError {
	return &ValidationError{Resource: resource, Field: field, Message: fmt.Sprintf(format, args...)}
}

// HandleError reports an operation against a bad Handle: unknown index,
// stale generation, or wrong registry.
type HandleError struct {
	Handle  Handle
	Message string
	Cause   error
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Handle, e.Message)
}

func (e *HandleError) Unwrap() error { return e.Cause }

// NewHandleError builds a HandleError wrapping cause (typically
// ErrInvalidHandle).
func NewHandleError(h Handle, message string, cause error) *HandleError {
	return &HandleError{Handle: h, Message: message, Cause: cause}
}

// BackendError wraps a failure reported by the backend.Capability
// collaborator (e.g. pipeline creation) or by pass recording. CommitFrame
// returns it as soon as the failure occurs: encoders already submitted
// stay submitted, the remaining ones are not submitted, and no pass is
// culled because of the failure.
type BackendError struct {
	Pass  string
	Cause error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error in pass %q: %v", e.Pass, e.Cause)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsHandleError reports whether err is (or wraps) a *HandleError.
func IsHandleError(err error) bool {
	var he *HandleError
	return errors.As(err, &he)
}
