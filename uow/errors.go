package uow

import (
	"errors"
	"fmt"
)

// ErrIllegalState is matched by every error raised when the unit of work is
// driven out of sequence.
var ErrIllegalState = errors.New("illegal unit of work state")

var (
	// ErrTransactionInProgress is returned by Begin while an unfinished
	// transaction is held.
	ErrTransactionInProgress = fmt.Errorf("%w: transaction already in progress", ErrIllegalState)

	// ErrTransactionNotStarted is returned by Commit, Rollback and
	// SetIsolationLevel when no transaction is held.
	ErrTransactionNotStarted = fmt.Errorf("%w: transaction not started", ErrIllegalState)
)

// ErrInvalidAction is returned by Auto and Do when no action is given.
var ErrInvalidAction = errors.New("unit of work action is required")
