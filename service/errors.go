package service

import (
	"errors"

	"el-store/store"
)

var (
	// ErrUnauthorized is returned for a missing session or bad credentials.
	ErrUnauthorized = errors.New("invalid login or password")
	// ErrForbidden is returned when a non-admin reaches an admin operation.
	ErrForbidden = errors.New("admin access required")
)

// ValidationError is a client mistake reported back verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// NotFoundError names what was missing. It matches store.ErrNotFound.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == store.ErrNotFound }

func notFound(what string) error { return &NotFoundError{What: what} }

// orNotFound replaces a bare store.ErrNotFound with a named one.
func orNotFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(what)
	}
	return err
}

// StockError reports a single product that cannot cover a request.
type StockError struct {
	Msg           string
	Available     int
	CurrentInCart *int
}

func (e *StockError) Error() string { return e.Msg }

// StockIssuesError lists every order line stock cannot cover.
type StockIssuesError struct {
	Issues []store.Shortage
}

func (e *StockIssuesError) Error() string { return "insufficient stock" }
