package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/models"
)

// BookingExpirer is the slice of the ledger the scheduler needs. The fire
// path never trusts its own bookkeeping: Expire is a compare-and-set that
// only wins while the payment is still pending.
type BookingExpirer interface {
	Expire(ctx context.Context, bookingID uint) (bool, error)
	PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}

// ReservationScheduler holds one in-process timer per pending booking and
// releases its seats when the hold window lapses without payment. Timers
// are disposable: a periodic sweep over the ledger expires anything a lost
// timer would have, so a restart forgets nothing.
type ReservationScheduler struct {
	mu     sync.Mutex
	timers map[uint]*time.Timer

	Store     BookingExpirer
	Flags     FlagStore
	OnExpired func(bookingID uint) // optional notification hook
}

func NewReservationScheduler(store BookingExpirer, flags FlagStore) *ReservationScheduler {
	return &ReservationScheduler{
		timers: make(map[uint]*time.Timer),
		Store:  store,
		Flags:  flags,
	}
}

// Schedule arms the release timer for a booking at its wall-clock hold
// deadline. Re-arming an already scheduled booking replaces the prior
// timer. A deadline already in the past fires immediately.
func (s *ReservationScheduler) Schedule(bookingID uint, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[bookingID]; ok {
		t.Stop()
	}
	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}
	s.timers[bookingID] = time.AfterFunc(delay, func() {
		s.fire(bookingID)
	})
}

// Cancel disarms the timer for a booking. Safe to call any number of
// times, including after the timer already fired: the fire path revalidates
// ledger state, so a lost cancel cannot release paid seats.
func (s *ReservationScheduler) Cancel(bookingID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[bookingID]; ok {
		t.Stop()
		delete(s.timers, bookingID)
	}
}

func (s *ReservationScheduler) fire(bookingID uint) {
	s.mu.Lock()
	delete(s.timers, bookingID)
	s.mu.Unlock()

	ctx := context.Background()
	won, err := s.Store.Expire(ctx, bookingID)
	if err != nil {
		log.Printf("Hold timer: failed to expire booking %d: %v", bookingID, err)
		return
	}
	if !won {
		// Payment reconciled (or booking cancelled) before we fired.
		return
	}
	log.Printf("Hold timer: booking %d expired, seats released", bookingID)
	if s.Flags != nil {
		if err := s.Flags.Delete(ctx, HoldKey(bookingID)); err != nil {
			log.Printf("Hold timer: failed to clear hold marker for booking %d: %v", bookingID, err)
		}
	}
	if s.OnExpired != nil {
		s.OnExpired(bookingID)
	}
}

// RunSweep periodically expires pending bookings whose hold window lapsed.
// It backstops the in-process timers across restarts; both paths share the
// same conditional transition, so overlap is harmless.
func (s *ReservationScheduler) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ReservationScheduler) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-models.HoldWindow)
	stale, err := s.Store.PendingCreatedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("Hold sweep: listing stale bookings failed: %v", err)
		return
	}
	for _, b := range stale {
		s.Cancel(b.ID)
		won, err := s.Store.Expire(ctx, b.ID)
		if err != nil {
			log.Printf("Hold sweep: failed to expire booking %d: %v", b.ID, err)
			continue
		}
		if won {
			log.Printf("Hold sweep: booking %d expired, seats released", b.ID)
			if s.Flags != nil {
				s.Flags.Delete(ctx, HoldKey(b.ID))
			}
			if s.OnExpired != nil {
				s.OnExpired(b.ID)
			}
		}
	}
}
