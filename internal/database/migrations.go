package database

import (
	"github.com/mwangikev/transitgo-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Route{},
		&models.Bus{},
		&models.Trip{},
		&models.Seat{},
		&models.Booking{},
	)
	if err != nil {
		return err
	}

	// Update users table
	if db.Migrator().HasTable(&models.User{}) {
		columns := []string{
			"ADD COLUMN IF NOT EXISTS company_id bigint",
			"ADD COLUMN IF NOT EXISTS fcm_token text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS user_type text DEFAULT 'passenger'",
		}

		for _, column := range columns {
			if err := db.Exec("ALTER TABLE users " + column).Error; err != nil {
				return err
			}
		}

		// Update constraint
		db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
		db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('passenger', 'driver', 'admin'))`)
	}

	// Seat claims rely on the unique (trip_id, seat_number) pair; make sure
	// the index survives schema drift on older databases.
	if db.Migrator().HasTable(&models.Seat{}) {
		db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_trip_seat ON seats (trip_id, seat_number)`)
		db.Exec(`ALTER TABLE seats DROP CONSTRAINT IF EXISTS seats_status_check`)
		db.Exec(`ALTER TABLE seats ADD CONSTRAINT seats_status_check CHECK (status IN ('available', 'booked'))`)
	}

	// Bookings gained gateway identifiers after the first release.
	if db.Migrator().HasTable(&models.Booking{}) {
		columns := []string{
			"ADD COLUMN IF NOT EXISTS pay_pal_order_id text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS pay_pal_capture_id text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS refund_amount numeric DEFAULT 0",
			"ADD COLUMN IF NOT EXISTS cancelled_at timestamptz",
		}
		for _, column := range columns {
			if err := db.Exec("ALTER TABLE bookings " + column).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
