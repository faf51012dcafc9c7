package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fleet core. Handlers map these to HTTP statuses
// in one place; services wrap them with context via fmt.Errorf and %w.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrExpired          = errors.New("expired")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrExternal         = errors.New("external dependency failure")
)

// SeatConflictError reports exactly which seats could not be claimed.
type SeatConflictError struct {
	TripID uint
	Seats  []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable on trip %d: %v", e.TripID, e.Seats)
}

func (e *SeatConflictError) Unwrap() error { return ErrConflict }

func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func Conflict(what string) error {
	return fmt.Errorf("%s: %w", what, ErrConflict)
}

func Expired(what string) error {
	return fmt.Errorf("%s: %w", what, ErrExpired)
}

func External(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrExternal)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsExpired(err error) bool  { return errors.Is(err, ErrExpired) }
func IsExternal(err error) bool { return errors.Is(err, ErrExternal) }
