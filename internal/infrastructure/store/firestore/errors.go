package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kitbuilder/backend/internal/domain"
)

type errorKind int

const (
	kindFailure errorKind = iota
	kindNotFound
	kindConflict
)

// Error annotates a Firestore failure with the operation and its domain meaning.
// errors.Is matches domain.ErrNotFound, domain.ErrConflict or domain.ErrStoreFailure.
type Error struct {
	op   string
	err  error
	kind errorKind
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Is maps the error onto the domain sentinels
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case domain.ErrNotFound:
		return e.kind == kindNotFound
	case domain.ErrConflict:
		return e.kind == kindConflict
	case domain.ErrStoreFailure:
		return e.kind == kindFailure
	}
	return false
}

// IsNotFound reports whether the error represents a missing document.
func (e *Error) IsNotFound() bool {
	return e != nil && e.kind == kindNotFound
}

// IsConflict reports whether the error represents an existing document.
func (e *Error) IsConflict() bool {
	return e != nil && e.kind == kindConflict
}

func newError(op string, err error) *Error {
	e := &Error{op: op, err: err, kind: kindFailure}
	switch status.Code(err) {
	case codes.NotFound:
		e.kind = kindNotFound
	case codes.AlreadyExists:
		e.kind = kindConflict
	}
	return e
}

// WrapError annotates Firestore errors with store semantics. Context cancellations are passed through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var storeErr *Error
	if errors.As(err, &storeErr) {
		if op != "" && storeErr.op == "" {
			storeErr.op = op
		}
		return storeErr
	}
	return newError(op, err)
}
