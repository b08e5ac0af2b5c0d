package database

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrNotParticipant     = errors.New("user is not a room participant")
	ErrTicketsUnavailable = errors.New("tickets are no longer waiting")
)

// UnavailableError is returned by ConfirmMatch when fewer than the requested
// number of tickets are still WAITING. Waiting keeps the survivors in the
// order they were passed in.
type UnavailableError struct {
	Requested int
	Waiting   []uint
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v: %d of %d still waiting", ErrTicketsUnavailable, len(e.Waiting), e.Requested)
}

func (e *UnavailableError) Unwrap() error {
	return ErrTicketsUnavailable
}
