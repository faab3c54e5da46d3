package conn

import (
	"errors"
	"fmt"
	"syscall"
)

// Connection errors.
var (
	ErrConnClosed   = errors.New("netlink connection closed")
	ErrStreamClosed = errors.New("reply stream closed")
)

// Kind classifies a kernel-reported error. The mapping from errno is
// explicit and closed: codes without a mapping become KindKernel so that
// new kernel errors degrade to a generic failure instead of a surprise.
type Kind int

const (
	// KindKernel is a kernel error with no more specific classification.
	// The raw errno is preserved on the KernelError.
	KindKernel Kind = iota

	// KindNotFound indicates the requested object does not exist,
	// typically an unregistered family name.
	KindNotFound

	// KindPermissionDenied indicates the operation requires privileges
	// the socket does not have.
	KindPermissionDenied

	// KindInvalidArgument indicates the kernel rejected the request as
	// malformed.
	KindInvalidArgument

	// KindUnsupported indicates the operation or protocol is not
	// supported by the running kernel.
	KindUnsupported

	// KindBusy indicates the kernel is temporarily unable to serve the
	// request.
	KindBusy

	// KindExists indicates the object being created already exists.
	KindExists

	// KindInterrupted indicates the operation was interrupted before
	// completion.
	KindInterrupted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindKernel:
		return "KERNEL"
	case KindNotFound:
		return "NOT_FOUND"
	case KindPermissionDenied:
		return "PERMISSION_DENIED"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindUnsupported:
		return "UNSUPPORTED"
	case KindBusy:
		return "BUSY"
	case KindExists:
		return "EXISTS"
	case KindInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// kindOf maps an errno from a netlink error reply to a Kind.
func kindOf(errno syscall.Errno) Kind {
	switch errno {
	case syscall.ENOENT, syscall.ENODEV, syscall.ESRCH:
		return KindNotFound
	case syscall.EPERM, syscall.EACCES:
		return KindPermissionDenied
	case syscall.EINVAL:
		return KindInvalidArgument
	case syscall.EOPNOTSUPP, syscall.EPROTONOSUPPORT:
		return KindUnsupported
	case syscall.EBUSY, syscall.EAGAIN:
		return KindBusy
	case syscall.EEXIST:
		return KindExists
	case syscall.EINTR:
		return KindInterrupted
	default:
		return KindKernel
	}
}

// KernelError is a netlink error reply translated into a typed failure.
// It surfaces as the terminal item of the reply stream the request that
// caused it, and only that stream.
type KernelError struct {
	// Kind is the classification of the error.
	Kind Kind

	// Errno is the raw error code carried by the reply.
	Errno syscall.Errno
}

// newKernelError builds a KernelError from a raw errno.
func newKernelError(errno syscall.Errno) *KernelError {
	return &KernelError{Kind: kindOf(errno), Errno: errno}
}

// Error returns the error description.
func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel error: %s (%v)", e.Kind, e.Errno)
}

// Unwrap returns the underlying errno, so errors.Is(err, syscall.ENOENT)
// works on a translated error.
func (e *KernelError) Unwrap() error {
	return e.Errno
}
