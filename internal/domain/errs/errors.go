package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrDomainRule          = errors.New("domain rule violation")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// ErrInvalidState is returned by the aggregate when a mutation targets a
// deleted account. It matches ErrDomainRule.
var ErrInvalidState = fmt.Errorf("%w: invalid state", ErrDomainRule)
