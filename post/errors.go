package post

import "errors"

var (
	// ErrContentTooLong is returned when content exceeds MaxContentLength.
	ErrContentTooLong = errors.New("grove: content too long")

	// ErrUnknownRights is returned when a children rights value is not one of none, itself, all.
	ErrUnknownRights = errors.New("grove: unknown children rights")

	// ErrNotPermitted is returned when the parent's children rights forbid a new child.
	ErrNotPermitted = errors.New("grove: child creation not permitted")

	// ErrNotOwner is returned when the acting credential does not own the post.
	ErrNotOwner = errors.New("grove: not the owner of the post")

	// ErrInvalidAmount is returned for a reward amount outside -100, -1, 0, 1.
	ErrInvalidAmount = errors.New("grove: invalid reward amount")

	// ErrBalance is returned when a vote would push the voter's balance outside [-10, 10].
	ErrBalance = errors.New("grove: reward balance exceeded")
)
