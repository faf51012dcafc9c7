package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/models"
	"gorm.io/gorm"
)

// fakeLedger is an in-memory BookingLedger / BookingExpirer with the same
// conditional-transition semantics as the real store.
type fakeLedger struct {
	mu       sync.Mutex
	bookings map[uint]*models.Booking
}

func newFakeLedger(bookings ...*models.Booking) *fakeLedger {
	l := &fakeLedger{bookings: make(map[uint]*models.Booking)}
	for _, b := range bookings {
		l.bookings[b.ID] = b
	}
	return l
}

func pendingBooking(id uint, createdAt time.Time) *models.Booking {
	return &models.Booking{
		Model:         gorm.Model{ID: id, CreatedAt: createdAt},
		UserID:        1,
		TripID:        1,
		SeatNumbers:   []string{"1", "2"},
		TotalPrice:    500,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		TicketNumber:  "TGO-20250828-TESTTEST",
		PayPalOrderID: "ORDER-1",
	}
}

func (l *fakeLedger) get(id uint) models.Booking {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.bookings[id]
}

func (l *fakeLedger) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return nil, domain.NotFound("booking")
	}
	copied := *b
	return &copied, nil
}

func (l *fakeLedger) MarkPaid(ctx context.Context, id uint, captureID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok || b.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	b.PaymentStatus = models.PaymentStatusPaid
	b.Status = models.BookingStatusConfirmed
	if captureID != "" {
		b.PayPalCaptureID = captureID
	}
	return true, nil
}

func (l *fakeLedger) MarkFailed(ctx context.Context, id uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok || b.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	b.PaymentStatus = models.PaymentStatusFailed
	b.Status = models.BookingStatusCancelled
	return true, nil
}

func (l *fakeLedger) Expire(ctx context.Context, id uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok || b.PaymentStatus != models.PaymentStatusPending || b.Status != models.BookingStatusPending {
		return false, nil
	}
	b.Status = models.BookingStatusExpired
	return true, nil
}

func (l *fakeLedger) SetCaptureIDIfEmpty(ctx context.Context, id uint, captureID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok || b.PayPalCaptureID != "" {
		return false, nil
	}
	b.PayPalCaptureID = captureID
	return true, nil
}

func (l *fakeLedger) Cancel(ctx context.Context, id uint, expectPayment, newPayment models.PaymentStatus, refund float64, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok || b.PaymentStatus != expectPayment {
		return false, nil
	}
	if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusConfirmed {
		return false, nil
	}
	b.Status = models.BookingStatusCancelled
	b.PaymentStatus = newPayment
	b.RefundAmount = refund
	b.CancelledAt = &at
	return true, nil
}

func (l *fakeLedger) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stale []models.Booking
	for _, b := range l.bookings {
		if b.Status == models.BookingStatusPending &&
			b.PaymentStatus == models.PaymentStatusPending &&
			b.CreatedAt.Before(cutoff) {
			stale = append(stale, *b)
		}
	}
	return stale, nil
}

// fakeGateway is a PaymentGateway that records capture calls.
type fakeGateway struct {
	mu           sync.Mutex
	captureCalls int
	captureID    string
	captureErr   error
	verifyOK     bool
}

func (g *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++
	if g.captureErr != nil {
		return "", g.captureErr
	}
	if g.captureID == "" {
		return "CAPTURE-1", nil
	}
	return g.captureID, nil
}

func (g *fakeGateway) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	return g.verifyOK, nil
}

func (g *fakeGateway) captures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captureCalls
}

// cancelRecorder is a TimerCanceller that records which bookings were
// disarmed.
type cancelRecorder struct {
	mu        sync.Mutex
	cancelled []uint
}

func (c *cancelRecorder) Cancel(bookingID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, bookingID)
}

// fakeFleet is a FleetReader serving one fixed trip.
type fakeFleet struct {
	mu           sync.Mutex
	trip         *models.Trip
	addresses    []string
	addressError error
}

func (f *fakeFleet) OngoingTripForBus(ctx context.Context, busID uint) (*models.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trip == nil {
		return nil, domain.NotFound("ongoing trip for bus")
	}
	return f.trip, nil
}

func (f *fakeFleet) SetBusAddress(ctx context.Context, busID uint, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addressError != nil {
		return f.addressError
	}
	f.addresses = append(f.addresses, address)
	return nil
}

func (f *fakeFleet) addressCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.addresses)
}

// fakeGeocoder resolves every position to a fixed address.
type fakeGeocoder struct {
	address string
	err     error
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.address, nil
}

var errGeocodeDown = errors.New("geocoder unavailable")
