package board

import (
	"errors"
	"fmt"

	"github.com/jacentio/grove/post"
	"github.com/jacentio/grove/store"
)

var (
	// ErrInvalidInput is returned for malformed requests: content too long,
	// unknown children rights, bad reward amount or pagination.
	ErrInvalidInput = errors.New("grove: invalid input")

	// ErrNotPermitted is returned when the acting credential may not perform
	// the operation.
	ErrNotPermitted = errors.New("grove: not permitted")

	// ErrQuota is returned when a vote would exceed the voter's balance.
	ErrQuota = errors.New("grove: quota exceeded")

	// ErrNotFound is returned when a referenced post or account is absent.
	ErrNotFound = errors.New("grove: post not found")

	// ErrUnavailable is returned when the backend failed, including partial
	// writes.
	ErrUnavailable = errors.New("grove: backend unavailable")
)

// classify wraps err with the service error of its class. The cause stays
// reachable with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var class error
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotPermitted),
		errors.Is(err, ErrQuota), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, post.ErrContentTooLong),
		errors.Is(err, post.ErrUnknownRights),
		errors.Is(err, post.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidRange):
		class = ErrInvalidInput
	case errors.Is(err, post.ErrNotPermitted), errors.Is(err, post.ErrNotOwner):
		class = ErrNotPermitted
	case errors.Is(err, post.ErrBalance):
		class = ErrQuota
	case errors.Is(err, store.ErrNotFound):
		class = ErrNotFound
	default:
		class = ErrUnavailable
	}
	return fmt.Errorf("%w: %w", class, err)
}
