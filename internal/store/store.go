// Package store holds the ledger access layer. Every state transition on
// trips, seats and bookings is a conditional update checked through
// RowsAffected, so concurrent writers race on the database row instead of
// on in-process locks.
package store

import (
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}
