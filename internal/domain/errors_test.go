package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSeatConflictErrorIsConflict(t *testing.T) {
	err := error(&SeatConflictError{TripID: 5, Seats: []string{"3", "7"}})

	if !IsConflict(err) {
		t.Error("seat conflict should satisfy IsConflict")
	}

	var sc *SeatConflictError
	if !errors.As(err, &sc) {
		t.Fatal("errors.As should recover the seat detail")
	}
	if len(sc.Seats) != 2 || sc.Seats[0] != "3" {
		t.Errorf("seats = %v", sc.Seats)
	}
}

func TestWrappedSentinelsSurvive(t *testing.T) {
	err := fmt.Errorf("loading booking 7: %w", NotFound("booking"))
	if !IsNotFound(err) {
		t.Error("wrapping should preserve the not-found sentinel")
	}
	if IsConflict(err) || IsExpired(err) {
		t.Error("sentinels must not cross-match")
	}
}

func TestExternalKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := External("creating order", cause)
	if !IsExternal(err) {
		t.Error("External should satisfy IsExternal")
	}
}
