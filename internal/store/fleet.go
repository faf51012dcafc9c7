package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/models"
	"gorm.io/gorm"
)

// GetTrip loads a trip with its route and bus.
func (s *Store) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := s.DB.WithContext(ctx).
		Preload("Route").Preload("Bus").
		First(&trip, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("trip")
		}
		return nil, err
	}
	return &trip, nil
}

// GetTripWithSeats loads a trip and its full seat map.
func (s *Store) GetTripWithSeats(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := s.DB.WithContext(ctx).
		Preload("Route").Preload("Bus").
		Preload("Seats", func(db *gorm.DB) *gorm.DB { return db.Order("seat_number") }).
		First(&trip, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("trip")
		}
		return nil, err
	}
	return &trip, nil
}

// ListTrips returns trips filtered by status ("" means all), newest first.
func (s *Store) ListTrips(ctx context.Context, status string) ([]models.Trip, error) {
	q := s.DB.WithContext(ctx).Preload("Route").Preload("Bus")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var trips []models.Trip
	err := q.Order("departure_time").Find(&trips).Error
	return trips, err
}

// CreateTrip creates a trip and a seat row per bus seat, numbered 1..capacity.
func (s *Store) CreateTrip(ctx context.Context, trip *models.Trip) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bus models.Bus
		if err := tx.First(&bus, trip.BusID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.NotFound("bus")
			}
			return err
		}
		if err := tx.Create(trip).Error; err != nil {
			return err
		}
		seats := make([]models.Seat, 0, bus.Capacity)
		for i := 1; i <= bus.Capacity; i++ {
			seats = append(seats, models.Seat{
				TripID:     trip.ID,
				SeatNumber: fmt.Sprintf("%d", i),
				Status:     models.SeatStatusAvailable,
			})
		}
		return tx.Create(&seats).Error
	})
}

// TransitionTrip moves a trip between statuses with a compare-and-set on
// the expected current status. Completing a trip also completes its
// confirmed bookings.
func (s *Store) TransitionTrip(ctx context.Context, id uint, from, to string) (bool, error) {
	won := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Trip{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		if to == models.TripStatusCompleted {
			return tx.Model(&models.Booking{}).
				Where("trip_id = ? AND status = ?", id, models.BookingStatusConfirmed).
				Update("status", models.BookingStatusCompleted).Error
		}
		return nil
	})
	return won, err
}

// GetBusByDriver resolves the bus a driver is assigned to.
func (s *Store) GetBusByDriver(ctx context.Context, driverID uint) (*models.Bus, error) {
	var bus models.Bus
	if err := s.DB.WithContext(ctx).
		Where("driver_id = ?", driverID).First(&bus).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("bus")
		}
		return nil, err
	}
	return &bus, nil
}

// UpdateBusPosition overwrites the bus's last known position. Reports carry
// no sequence numbers; last write wins by arrival order.
func (s *Store) UpdateBusPosition(ctx context.Context, busID uint, lat, lng float64, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Bus{}).
		Where("id = ?", busID).
		Updates(map[string]interface{}{
			"current_lat": lat,
			"current_lng": lng,
			"position_at": at.Unix(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("bus")
	}
	return nil
}

// SetBusAddress persists the reverse-geocoded address for the current
// position, best effort.
func (s *Store) SetBusAddress(ctx context.Context, busID uint, address string) error {
	return s.DB.WithContext(ctx).Model(&models.Bus{}).
		Where("id = ?", busID).
		Update("current_address", address).Error
}

// OngoingTripForBus finds the bus's single ongoing trip with everything the
// deviation detector needs: route, company and driver. At most one ongoing
// trip per bus is expected; the newest wins if data drifted.
func (s *Store) OngoingTripForBus(ctx context.Context, busID uint) (*models.Trip, error) {
	var trip models.Trip
	if err := s.DB.WithContext(ctx).
		Preload("Route").Preload("Route.Company").Preload("Driver").Preload("Bus").
		Where("bus_id = ? AND status = ?", busID, models.TripStatusOngoing).
		Order("departure_time DESC").
		First(&trip).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("ongoing trip")
		}
		return nil, err
	}
	return &trip, nil
}
