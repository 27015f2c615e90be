package escrow

import (
	"github.com/iov-one/weave/errors"
)

// Escrow reserves the error code range 1010-1020.
var (
	// ErrAlreadyCompleted is returned when releasing an escrow that is no
	// longer pending.
	ErrAlreadyCompleted = errors.Register(1010, "escrow already completed")

	// ErrInvalidStatus is returned when refunding an escrow that is no
	// longer pending.
	ErrInvalidStatus = errors.Register(1011, "invalid escrow status")

	// ErrTimeoutNotReached is returned when the customer claims a refund
	// before the escrow timeout has elapsed.
	ErrTimeoutNotReached = errors.Register(1012, "timeout not reached")

	// ErrAlreadyInitialized is returned when storing a configuration while
	// one already exists.
	ErrAlreadyInitialized = errors.Register(1013, "already initialized")
)
