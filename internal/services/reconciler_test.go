package services

import (
	"context"
	"testing"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/models"
)

func captureCompletedEvent(bookingID, captureID string) *WebhookEvent {
	e := &WebhookEvent{ID: "WH-1", EventType: EventCaptureCompleted}
	e.Resource.ID = captureID
	e.Resource.CustomID = bookingID
	e.Resource.Status = "COMPLETED"
	return e
}

func newTestReconciler(ledger *fakeLedger, gateway *fakeGateway, at time.Time) (*PaymentReconciler, *cancelRecorder, *[]string) {
	timers := &cancelRecorder{}
	var events []string
	r := NewPaymentReconciler(ledger, gateway, timers, NewMemoryFlagStore())
	r.Now = func() time.Time { return at }
	r.Notify = func(bookingID uint, kind string) { events = append(events, kind) }
	return r, timers, &events
}

func TestWebhook_AppliesPaymentWithinHold(t *testing.T) {
	created := time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)
	ledger := newFakeLedger(pendingBooking(7, created))

	// One second inside the hold window.
	r, timers, events := newTestReconciler(ledger, &fakeGateway{}, created.Add(4*time.Minute+59*time.Second))

	result, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("7", "CAP-7"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "payment applied" {
		t.Errorf("result = %q", result)
	}

	b := ledger.get(7)
	if b.PaymentStatus != models.PaymentStatusPaid || b.Status != models.BookingStatusConfirmed {
		t.Errorf("booking not confirmed: payment=%q status=%q", b.PaymentStatus, b.Status)
	}
	if b.PayPalCaptureID != "CAP-7" {
		t.Errorf("capture id = %q", b.PayPalCaptureID)
	}
	if len(timers.cancelled) != 1 || timers.cancelled[0] != 7 {
		t.Errorf("hold timer not disarmed: %v", timers.cancelled)
	}
	if len(*events) != 1 || (*events)[0] != "confirmed" {
		t.Errorf("notifications = %v", *events)
	}
}

func TestWebhook_DuplicateDeliveryIsIdempotent(t *testing.T) {
	created := time.Now()
	ledger := newFakeLedger(pendingBooking(7, created))
	r, _, events := newTestReconciler(ledger, &fakeGateway{}, created.Add(time.Minute))

	if _, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("7", "CAP-7")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("7", "CAP-7"))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if result != "already handled" {
		t.Errorf("duplicate result = %q", result)
	}
	if b := ledger.get(7); b.PayPalCaptureID != "CAP-7" {
		t.Errorf("capture id changed on duplicate: %q", b.PayPalCaptureID)
	}
	if len(*events) != 1 {
		t.Errorf("duplicate delivery must not re-notify: %v", *events)
	}
}

func TestWebhook_AfterHoldWindowExpiresBooking(t *testing.T) {
	created := time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)
	ledger := newFakeLedger(pendingBooking(7, created))

	// One second past the hold window.
	r, _, events := newTestReconciler(ledger, &fakeGateway{}, created.Add(5*time.Minute+1*time.Second))

	_, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("7", "CAP-7"))
	if !domain.IsExpired(err) {
		t.Fatalf("expected expired error, got %v", err)
	}

	b := ledger.get(7)
	if b.Status != models.BookingStatusExpired {
		t.Errorf("booking status = %q, want expired", b.Status)
	}
	if b.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("late payment must not mark the booking paid: %q", b.PaymentStatus)
	}
	if len(*events) != 1 || (*events)[0] != "expired" {
		t.Errorf("notifications = %v", *events)
	}
}

func TestWebhook_DeniedReleasesSeats(t *testing.T) {
	created := time.Now()
	ledger := newFakeLedger(pendingBooking(7, created))
	r, _, _ := newTestReconciler(ledger, &fakeGateway{}, created.Add(time.Minute))

	e := captureCompletedEvent("7", "CAP-7")
	e.EventType = EventCaptureDenied

	result, err := r.HandleWebhookEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "payment failed, seats released" {
		t.Errorf("result = %q", result)
	}
	b := ledger.get(7)
	if b.PaymentStatus != models.PaymentStatusFailed || b.Status != models.BookingStatusCancelled {
		t.Errorf("booking: payment=%q status=%q", b.PaymentStatus, b.Status)
	}
}

func TestWebhook_UnknownEventIgnored(t *testing.T) {
	ledger := newFakeLedger(pendingBooking(7, time.Now()))
	r, _, _ := newTestReconciler(ledger, &fakeGateway{}, time.Now())

	e := captureCompletedEvent("7", "CAP-7")
	e.EventType = "CHECKOUT.ORDER.APPROVED"

	result, err := r.HandleWebhookEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ignored" {
		t.Errorf("result = %q", result)
	}
	if b := ledger.get(7); b.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("ignored event changed state: %q", b.PaymentStatus)
	}
}

func TestWebhook_BadBookingReference(t *testing.T) {
	r, _, _ := newTestReconciler(newFakeLedger(), &fakeGateway{}, time.Now())

	_, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("not-a-number", "CAP-7"))
	if !domain.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReturn_CapturesThenWebhookConverges(t *testing.T) {
	created := time.Now()
	ledger := newFakeLedger(pendingBooking(7, created))
	gateway := &fakeGateway{captureID: "CAP-7"}
	r, _, _ := newTestReconciler(ledger, gateway, created.Add(time.Minute))

	// Redirect callback arrives first: capture, record, but do not mark paid.
	link, err := r.HandleReturn(context.Background(), 7, "ORDER-1")
	if err != nil {
		t.Fatalf("HandleReturn: %v", err)
	}
	if link != DeepLinkPaymentSuccess {
		t.Errorf("link = %q", link)
	}
	if gateway.captures() != 1 {
		t.Errorf("capture calls = %d", gateway.captures())
	}

	b := ledger.get(7)
	if b.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("callback must not flip paymentStatus, got %q", b.PaymentStatus)
	}
	if b.PayPalCaptureID != "CAP-7" {
		t.Errorf("capture id not recorded: %q", b.PayPalCaptureID)
	}

	// Webhook lands second and owns the transition.
	result, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("7", "CAP-7"))
	if err != nil {
		t.Fatalf("webhook after return: %v", err)
	}
	if result != "payment applied" {
		t.Errorf("result = %q", result)
	}
	if b := ledger.get(7); b.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("payment not applied: %q", b.PaymentStatus)
	}
}

func TestReturn_AfterWebhookSkipsCapture(t *testing.T) {
	created := time.Now()
	ledger := newFakeLedger(pendingBooking(7, created))
	gateway := &fakeGateway{}
	r, _, _ := newTestReconciler(ledger, gateway, created.Add(time.Minute))

	if _, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("7", "CAP-7")); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	link, err := r.HandleReturn(context.Background(), 7, "ORDER-1")
	if err != nil {
		t.Fatalf("HandleReturn: %v", err)
	}
	if link != DeepLinkPaymentSuccess {
		t.Errorf("link = %q", link)
	}
	if gateway.captures() != 0 {
		t.Errorf("already paid booking must not be re-captured, calls = %d", gateway.captures())
	}
}

func TestReturn_AfterHoldWindow(t *testing.T) {
	created := time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)
	ledger := newFakeLedger(pendingBooking(7, created))
	gateway := &fakeGateway{}
	r, _, _ := newTestReconciler(ledger, gateway, created.Add(6*time.Minute))

	link, err := r.HandleReturn(context.Background(), 7, "ORDER-1")
	if err != nil {
		t.Fatalf("HandleReturn: %v", err)
	}
	if link != DeepLinkPaymentExpired {
		t.Errorf("link = %q", link)
	}
	if gateway.captures() != 0 {
		t.Errorf("expired hold must not be captured, calls = %d", gateway.captures())
	}
	if b := ledger.get(7); b.Status != models.BookingStatusExpired {
		t.Errorf("booking status = %q", b.Status)
	}
}

func TestReturn_CaptureFailure(t *testing.T) {
	created := time.Now()
	ledger := newFakeLedger(pendingBooking(7, created))
	gateway := &fakeGateway{captureErr: context.DeadlineExceeded}
	r, _, _ := newTestReconciler(ledger, gateway, created.Add(time.Minute))

	link, err := r.HandleReturn(context.Background(), 7, "ORDER-1")
	if err != nil {
		t.Fatalf("HandleReturn: %v", err)
	}
	if link != DeepLinkPaymentCancelled {
		t.Errorf("link = %q", link)
	}
	if b := ledger.get(7); b.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("failed capture must leave the booking pending: %q", b.PaymentStatus)
	}
}

func TestCancel_MarksBookingCancelled(t *testing.T) {
	created := time.Now()
	ledger := newFakeLedger(pendingBooking(7, created))
	r, timers, events := newTestReconciler(ledger, &fakeGateway{}, created.Add(time.Minute))

	link, err := r.HandleCancel(context.Background(), 7)
	if err != nil {
		t.Fatalf("HandleCancel: %v", err)
	}
	if link != DeepLinkPaymentCancelled {
		t.Errorf("link = %q", link)
	}
	b := ledger.get(7)
	if b.Status != models.BookingStatusCancelled || b.PaymentStatus != models.PaymentStatusCancelled {
		t.Errorf("booking: status=%q payment=%q", b.Status, b.PaymentStatus)
	}
	if len(timers.cancelled) != 1 {
		t.Errorf("timer not disarmed: %v", timers.cancelled)
	}
	if len(*events) != 1 || (*events)[0] != "cancelled" {
		t.Errorf("notifications = %v", *events)
	}
}

func TestCancel_AfterPaymentIsNoOp(t *testing.T) {
	created := time.Now()
	ledger := newFakeLedger(pendingBooking(7, created))
	r, _, events := newTestReconciler(ledger, &fakeGateway{}, created.Add(time.Minute))

	if _, err := r.HandleWebhookEvent(context.Background(), captureCompletedEvent("7", "CAP-7")); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	*events = nil

	link, err := r.HandleCancel(context.Background(), 7)
	if err != nil {
		t.Fatalf("HandleCancel: %v", err)
	}
	if link != DeepLinkPaymentCancelled {
		t.Errorf("link = %q", link)
	}
	if b := ledger.get(7); b.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("cancel redirect must not undo a settled payment: %q", b.PaymentStatus)
	}
	if len(*events) != 0 {
		t.Errorf("lost cancel must not notify: %v", *events)
	}
}
