package models

import (
	"time"

	"gorm.io/gorm"
)

// TripStatus constants
const (
	TripStatusPending   = "pending"
	TripStatusOngoing   = "ongoing"
	TripStatusCompleted = "completed"
	TripStatusCancelled = "cancelled"
)

// SeatStatus constants. A seat only moves available -> booked; it returns
// to available only when the booking holding it expires or is cancelled.
const (
	SeatStatusAvailable = "available"
	SeatStatusBooked    = "booked"
)

// Trip is one scheduled run of one bus on one route.
type Trip struct {
	gorm.Model
	RouteID       uint      `json:"routeId" gorm:"not null"`
	Route         *Route    `json:"route,omitempty" gorm:"foreignKey:RouteID"`
	BusID         uint      `json:"busId" gorm:"not null"`
	Bus           *Bus      `json:"bus,omitempty" gorm:"foreignKey:BusID"`
	DriverID      uint      `json:"driverId" gorm:"not null"`
	Driver        *User     `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	DepartureTime time.Time `json:"departureTime" gorm:"not null"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	Status        string    `json:"status" gorm:"not null;default:'pending'"`
	Seats         []Seat    `json:"seats,omitempty" gorm:"foreignKey:TripID"`
}

// TableName specifies the table name
func (Trip) TableName() string {
	return "trips"
}

// Seat is one seat row of a trip. Seat numbers are unique within a trip.
// A booked seat always carries the owning booking and passenger.
type Seat struct {
	gorm.Model
	TripID      uint       `json:"tripId" gorm:"not null;uniqueIndex:idx_trip_seat,priority:1"`
	SeatNumber  string     `json:"seatNumber" gorm:"not null;uniqueIndex:idx_trip_seat,priority:2"`
	Status      string     `json:"status" gorm:"not null;default:'available'"`
	BookingID   *uint      `json:"bookingId,omitempty"`
	PassengerID *uint      `json:"passengerId,omitempty"`
	BookedAt    *time.Time `json:"bookedAt,omitempty"`
}

// TableName specifies the table name
func (Seat) TableName() string {
	return "seats"
}
