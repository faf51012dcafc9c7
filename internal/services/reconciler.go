package services

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/models"
)

// Deep links the redirect callbacks send the payer's browser back to.
const (
	DeepLinkPaymentSuccess   = "app://payment-success"
	DeepLinkPaymentCancelled = "app://payment-cancelled"
	DeepLinkPaymentExpired   = "app://payment-expired"
)

// PayPal webhook event types the reconciler recognizes.
const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	EventCaptureRefunded  = "PAYMENT.CAPTURE.REFUNDED"
)

// BookingLedger is the slice of the store the reconciler drives. Every
// method that changes state is a compare-and-set: it reports whether this
// caller won the transition.
type BookingLedger interface {
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	MarkPaid(ctx context.Context, id uint, captureID string) (bool, error)
	MarkFailed(ctx context.Context, id uint) (bool, error)
	Expire(ctx context.Context, id uint) (bool, error)
	SetCaptureIDIfEmpty(ctx context.Context, id uint, captureID string) (bool, error)
	Cancel(ctx context.Context, id uint, expectPayment, newPayment models.PaymentStatus, refund float64, at time.Time) (bool, error)
}

// PaymentGateway is the PayPal surface the reconciler needs.
type PaymentGateway interface {
	CaptureOrder(ctx context.Context, orderID string) (string, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error)
}

// TimerCanceller disarms reservation hold timers.
type TimerCanceller interface {
	Cancel(bookingID uint)
}

// WebhookEvent is the gateway's event envelope. Only event_type and the
// resource identifiers are interpreted; everything else is carried opaquely.
type WebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`        // capture id on capture events
		CustomID string `json:"custom_id"` // booking id, set at order creation
		Status   string `json:"status"`
	} `json:"resource"`
}

// BookingID resolves the booking reference embedded in the event.
func (e *WebhookEvent) BookingID() (uint, error) {
	id, err := strconv.ParseUint(e.Resource.CustomID, 10, 32)
	if err != nil || id == 0 {
		return 0, domain.NotFound("booking reference in webhook event")
	}
	return uint(id), nil
}

// PaymentReconciler converges the two payment entry points (asynchronous
// webhook, synchronous redirect callback) onto one terminal booking state.
// The webhook owns the pending->paid transition; the callback only records
// the capture. Neither path assumes it runs first.
type PaymentReconciler struct {
	Ledger    BookingLedger
	Gateway   PaymentGateway
	Scheduler TimerCanceller
	Flags     FlagStore
	Notify    func(bookingID uint, kind string) // optional, fire-and-forget
	Now       func() time.Time
}

func NewPaymentReconciler(ledger BookingLedger, gateway PaymentGateway, scheduler TimerCanceller, flags FlagStore) *PaymentReconciler {
	return &PaymentReconciler{
		Ledger:    ledger,
		Gateway:   gateway,
		Scheduler: scheduler,
		Flags:     flags,
		Now:       time.Now,
	}
}

func (r *PaymentReconciler) notify(bookingID uint, kind string) {
	if r.Notify != nil {
		r.Notify(bookingID, kind)
	}
}

func (r *PaymentReconciler) clearHold(ctx context.Context, bookingID uint) {
	if r.Scheduler != nil {
		r.Scheduler.Cancel(bookingID)
	}
	if r.Flags != nil {
		if err := r.Flags.Delete(ctx, HoldKey(bookingID)); err != nil {
			log.Printf("Failed to clear hold marker for booking %d: %v", bookingID, err)
		}
	}
}

// HandleWebhookEvent applies one gateway event. The returned string is the
// outcome recorded in the webhook response body; the endpoint acknowledges
// with success for every processed event so the gateway stops retrying —
// idempotency, not refusal, guards duplicate delivery.
func (r *PaymentReconciler) HandleWebhookEvent(ctx context.Context, event *WebhookEvent) (string, error) {
	switch event.EventType {
	case EventCaptureCompleted:
		return r.applyCaptureCompleted(ctx, event)

	case EventCaptureDenied:
		bookingID, err := event.BookingID()
		if err != nil {
			return "", err
		}
		r.clearHold(ctx, bookingID)
		won, err := r.Ledger.MarkFailed(ctx, bookingID)
		if err != nil {
			return "", err
		}
		if !won {
			return "already handled", nil
		}
		r.notify(bookingID, "cancelled")
		return "payment failed, seats released", nil

	case EventCaptureRefunded:
		// Refunds are settled out of band; the booking keeps its refund
		// audit fields from the cancellation that triggered it.
		log.Printf("Webhook: refund completed for capture %s", event.Resource.ID)
		return "refund acknowledged", nil

	default:
		log.Printf("Webhook: ignoring event type %s", event.EventType)
		return "ignored", nil
	}
}

func (r *PaymentReconciler) applyCaptureCompleted(ctx context.Context, event *WebhookEvent) (string, error) {
	bookingID, err := event.BookingID()
	if err != nil {
		return "", err
	}

	booking, err := r.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}

	if booking.PaymentStatus != models.PaymentStatusPending {
		// Duplicate delivery or the redirect/expiry already settled it.
		return "already handled", nil
	}

	if booking.HoldExpired(r.Now()) {
		// Payment landed after the hold lapsed; make sure the expiry
		// transition ran (the timer may have died with a process restart).
		if won, err := r.Ledger.Expire(ctx, bookingID); err != nil {
			return "", err
		} else if won {
			r.clearHold(ctx, bookingID)
			r.notify(bookingID, "expired")
		}
		return "", domain.Expired("payment received after hold window")
	}

	r.clearHold(ctx, bookingID)

	won, err := r.Ledger.MarkPaid(ctx, bookingID, event.Resource.ID)
	if err != nil {
		return "", err
	}
	if !won {
		return "already handled", nil
	}
	r.notify(bookingID, "confirmed")
	return "payment applied", nil
}

// HandleReturn is the synchronous redirect callback after payer approval.
// It captures the order and records the capture id, then hands the browser
// a deep link. It deliberately does not flip paymentStatus to paid; the
// webhook is the single writer for that transition.
func (r *PaymentReconciler) HandleReturn(ctx context.Context, bookingID uint, orderToken string) (string, error) {
	booking, err := r.Ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}

	if r.Scheduler != nil {
		r.Scheduler.Cancel(bookingID)
	}

	switch booking.PaymentStatus {
	case models.PaymentStatusPaid:
		return DeepLinkPaymentSuccess, nil
	case models.PaymentStatusCancelled, models.PaymentStatusFailed:
		return DeepLinkPaymentCancelled, nil
	}

	if booking.HoldExpired(r.Now()) {
		if won, err := r.Ledger.Expire(ctx, bookingID); err != nil {
			return "", err
		} else if won {
			r.clearHold(ctx, bookingID)
			r.notify(bookingID, "expired")
		}
		return DeepLinkPaymentExpired, nil
	}

	captureID, err := r.Gateway.CaptureOrder(ctx, orderToken)
	if err != nil {
		log.Printf("Capture of order %s for booking %d failed: %v", orderToken, bookingID, err)
		return DeepLinkPaymentCancelled, nil
	}

	if _, err := r.Ledger.SetCaptureIDIfEmpty(ctx, bookingID, captureID); err != nil {
		// The capture succeeded at the gateway; the webhook will still
		// carry the id. Log and proceed.
		log.Printf("Failed to record capture id for booking %d: %v", bookingID, err)
	}

	return DeepLinkPaymentSuccess, nil
}

// HandleCancel is the redirect callback for a payer abandoning checkout.
func (r *PaymentReconciler) HandleCancel(ctx context.Context, bookingID uint) (string, error) {
	if _, err := r.Ledger.GetBooking(ctx, bookingID); err != nil {
		return "", err
	}

	r.clearHold(ctx, bookingID)

	won, err := r.Ledger.Cancel(ctx, bookingID,
		models.PaymentStatusPending, models.PaymentStatusCancelled, 0, r.Now())
	if err != nil {
		return "", err
	}
	if won {
		r.notify(bookingID, "cancelled")
	}
	return DeepLinkPaymentCancelled, nil
}
