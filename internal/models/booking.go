package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusExpired   BookingStatus = "expired"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// HoldWindow is how long reserved seats stay claimed before automatic
// release absent payment.
const HoldWindow = 5 * time.Minute

// Booking is one purchase intent: a set of seats on one trip held for one
// passenger. Payment state and booking state move only through conditional
// updates (see store.BookingStore), never unconditional writes.
type Booking struct {
	gorm.Model
	UserID          uint          `json:"userId" gorm:"not null"`
	User            *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	TripID          uint          `json:"tripId" gorm:"not null"`
	Trip            *Trip         `json:"trip,omitempty" gorm:"foreignKey:TripID"`
	SeatNumbers     []string      `json:"seatNumbers" gorm:"serializer:json"`
	TotalPrice      float64       `json:"totalPrice" gorm:"not null"`
	Status          BookingStatus `json:"status" gorm:"not null;default:'pending'"`
	PaymentStatus   PaymentStatus `json:"paymentStatus" gorm:"not null;default:'pending'"`
	TicketNumber    string        `json:"ticketNumber" gorm:"not null;unique"`
	PayPalOrderID   string        `json:"paypalOrderId"`
	PayPalCaptureID string        `json:"paypalCaptureId"`
	RefundAmount    float64       `json:"refundAmount"`
	CancelledAt     *time.Time    `json:"cancelledAt,omitempty"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}

// HoldDeadline is the wall-clock instant the reservation hold lapses.
func (b *Booking) HoldDeadline() time.Time {
	return b.CreatedAt.Add(HoldWindow)
}

// HoldExpired reports whether the hold window has lapsed at the given time.
func (b *Booking) HoldExpired(now time.Time) bool {
	return now.After(b.HoldDeadline())
}

// RefundPercent returns the refund tier for cancelling at the given time:
// more than 24h before departure 80%, 12-24h 50%, under 12h nothing.
func RefundPercent(departure, at time.Time) float64 {
	until := departure.Sub(at)
	switch {
	case until > 24*time.Hour:
		return 0.80
	case until >= 12*time.Hour:
		return 0.50
	default:
		return 0
	}
}
