package store

import (
	"context"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/models"
	"github.com/mwangikev/transitgo-backend/pkg/utils"
	"gorm.io/gorm"
)

// Reserve claims the requested seats all-or-nothing and creates the pending
// booking that owns them. The claim is a single conditional UPDATE guarded
// by status='available'; if any seat is taken the whole transaction rolls
// back and the returned SeatConflictError names the seats that failed.
func (s *Store) Reserve(ctx context.Context, tripID uint, seatNumbers []string, userID uint) (*models.Booking, error) {
	seatNumbers = dedupe(seatNumbers)

	var booking *models.Booking
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trip models.Trip
		if err := tx.Preload("Route").First(&trip, tripID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.NotFound("trip")
			}
			return err
		}
		if trip.Status != models.TripStatusPending {
			return domain.Conflict("trip is not open for booking")
		}
		if trip.Route == nil {
			return domain.NotFound("route")
		}

		now := time.Now()
		b := models.Booking{
			UserID:        userID,
			TripID:        tripID,
			SeatNumbers:   seatNumbers,
			TotalPrice:    trip.Route.Fare * float64(len(seatNumbers)),
			Status:        models.BookingStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			TicketNumber:  utils.GenerateTicketNumber(now),
		}
		if err := tx.Create(&b).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Seat{}).
			Where("trip_id = ? AND seat_number IN ? AND status = ?",
				tripID, seatNumbers, models.SeatStatusAvailable).
			Updates(map[string]interface{}{
				"status":       models.SeatStatusBooked,
				"booking_id":   b.ID,
				"passenger_id": userID,
				"booked_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(seatNumbers)) {
			// Name the seats we failed to claim: anything requested that is
			// not now owned by this booking.
			var claimed []string
			if err := tx.Model(&models.Seat{}).
				Where("trip_id = ? AND booking_id = ?", tripID, b.ID).
				Pluck("seat_number", &claimed).Error; err != nil {
				return err
			}
			return &domain.SeatConflictError{TripID: tripID, Seats: missing(seatNumbers, claimed)}
		}

		booking = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBooking loads a booking by id.
func (s *Store) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := s.DB.WithContext(ctx).First(&b, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("booking")
		}
		return nil, err
	}
	return &b, nil
}

// GetBookingDetail loads a booking with its trip, route and user.
func (s *Store) GetBookingDetail(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := s.DB.WithContext(ctx).
		Preload("Trip").Preload("Trip.Route").Preload("User").
		First(&b, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("booking")
		}
		return nil, err
	}
	return &b, nil
}

// ListUserBookings returns all bookings owned by a user.
func (s *Store) ListUserBookings(ctx context.Context, userID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Trip").Preload("Trip.Route").
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// SetOrderID records the gateway order id once the order is created.
func (s *Store) SetOrderID(ctx context.Context, id uint, orderID string) error {
	return s.DB.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Update("pay_pal_order_id", orderID).Error
}

// SetCaptureIDIfEmpty stores the capture id only if none is recorded yet,
// so a replayed redirect callback cannot clobber the first capture.
func (s *Store) SetCaptureIDIfEmpty(ctx context.Context, id uint, captureID string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND (pay_pal_capture_id = '' OR pay_pal_capture_id IS NULL)", id).
		Update("pay_pal_capture_id", captureID)
	return res.RowsAffected == 1, res.Error
}

// MarkPaid transitions paymentStatus pending->paid and status->confirmed in
// one conditional update. Returns false when the booking was not pending
// anymore (duplicate delivery, expiry, or cancellation won the race).
func (s *Store) MarkPaid(ctx context.Context, id uint, captureID string) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": models.PaymentStatusPaid,
		"status":         models.BookingStatusConfirmed,
	}
	if captureID != "" {
		updates["pay_pal_capture_id"] = captureID
	}
	res := s.DB.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// MarkFailed transitions paymentStatus pending->failed, cancels the booking
// and releases its seats. No-op when payment already left pending.
func (s *Store) MarkFailed(ctx context.Context, id uint) (bool, error) {
	won := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusFailed,
				"status":         models.BookingStatusCancelled,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		return releaseSeats(tx, id)
	})
	return won, err
}

// Expire is the hold-timer transition: only while paymentStatus is still
// pending, set status=expired and return the seats to available. Both the
// in-process timer and the periodic sweep funnel through here, so firing
// twice is harmless.
func (s *Store) Expire(ctx context.Context, id uint) (bool, error) {
	won := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND payment_status = ? AND status = ?",
				id, models.PaymentStatusPending, models.BookingStatusPending).
			Update("status", models.BookingStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		return releaseSeats(tx, id)
	})
	return won, err
}

// Cancel is the explicit cancellation transition. The caller supplies the
// payment status it observed; losing the compare-and-set means another
// writer got there first.
func (s *Store) Cancel(ctx context.Context, id uint, expectPayment models.PaymentStatus, newPayment models.PaymentStatus, refund float64, at time.Time) (bool, error) {
	won := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND payment_status = ? AND status IN ?",
				id, expectPayment,
				[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}).
			Updates(map[string]interface{}{
				"status":         models.BookingStatusCancelled,
				"payment_status": newPayment,
				"refund_amount":  refund,
				"cancelled_at":   at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		return releaseSeats(tx, id)
	})
	return won, err
}

// PendingCreatedBefore lists bookings still pending whose hold window
// started before the cutoff. The expiry sweep feeds these back into Expire.
func (s *Store) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.DB.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			models.BookingStatusPending, models.PaymentStatusPending, cutoff).
		Find(&bookings).Error
	return bookings, err
}

func releaseSeats(tx *gorm.DB, bookingID uint) error {
	return tx.Model(&models.Seat{}).
		Where("booking_id = ?", bookingID).
		Updates(map[string]interface{}{
			"status":       models.SeatStatusAvailable,
			"booking_id":   nil,
			"passenger_id": nil,
			"booked_at":    nil,
		}).Error
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func missing(requested, claimed []string) []string {
	got := make(map[string]bool, len(claimed))
	for _, v := range claimed {
		got[v] = true
	}
	var out []string
	for _, v := range requested {
		if !got[v] {
			out = append(out, v)
		}
	}
	return out
}
