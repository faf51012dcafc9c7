package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/models"
	"github.com/mwangikev/transitgo-backend/pkg/utils"
)

// Notifier fans booking events and fleet alerts out to email, push and the
// websocket hub. Every delivery is fire-and-forget: failures are logged and
// never roll back the ledger transition that triggered them.
type Notifier struct {
	Hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{Hub: hub}
}

// BookingEvent notifies the booking owner about a lifecycle transition
// (created, confirmed, cancelled, expired).
func (n *Notifier) BookingEvent(user *models.User, kind string, booking *models.Booking, routeName string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var message string
		var emailErr error
		switch kind {
		case "created":
			message = fmt.Sprintf("Seats %v held under ticket %s. Complete payment within 5 minutes.",
				booking.SeatNumbers, booking.TicketNumber)
			emailErr = utils.SendBookingCreatedEmail(user.Email, booking.TicketNumber, routeName,
				booking.SeatNumbers, booking.TotalPrice)
		case "confirmed":
			message = fmt.Sprintf("Ticket %s confirmed.", booking.TicketNumber)
			emailErr = utils.SendBookingConfirmedEmail(user.Email, booking.TicketNumber, routeName)
		case "cancelled":
			message = fmt.Sprintf("Booking %s cancelled. Refund: %.2f", booking.TicketNumber, booking.RefundAmount)
			emailErr = utils.SendBookingCancelledEmail(user.Email, booking.TicketNumber, booking.RefundAmount)
		case "expired":
			message = fmt.Sprintf("Booking %s expired; seats released.", booking.TicketNumber)
		}
		if emailErr != nil {
			log.Printf("Booking %s email (%s) failed: %v", booking.TicketNumber, kind, emailErr)
		}

		if err := SendPushNotification(ctx, user.FCMToken, "TransitGo", message, map[string]string{
			"bookingId": fmt.Sprintf("%d", booking.ID),
			"kind":      kind,
		}); err != nil {
			log.Printf("Booking %s push (%s) failed: %v", booking.TicketNumber, kind, err)
		}

		if n.Hub != nil {
			payload, err := json.Marshal(WebSocketMessage{
				Type: "booking_event",
				Data: BookingEvent{
					BookingID:    booking.ID,
					TicketNumber: booking.TicketNumber,
					Kind:         kind,
					Message:      message,
				},
			})
			if err == nil {
				n.Hub.BroadcastToUser(user.ID, payload)
			}
		}
	}()
}

// DeviationAlert notifies the operating company and admin observers that a
// bus left its corridor.
func (n *Notifier) DeviationAlert(alert DeviationAlert, companyEmail string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if companyEmail != "" {
			if err := utils.SendDeviationAlertEmail(companyEmail, alert.BusPlate, alert.RouteName,
				alert.DriverName, alert.Address, alert.Link); err != nil {
				log.Printf("Deviation alert email for trip %d failed: %v", alert.TripID, err)
			}
		}

		title := fmt.Sprintf("Bus %s off route", alert.BusPlate)
		body := fmt.Sprintf("Route %s, driver %s, near %s", alert.RouteName, alert.DriverName, alert.Address)
		if err := SendPushToTopic(ctx, AlertTopic, title, body, map[string]string{
			"tripId": fmt.Sprintf("%d", alert.TripID),
			"busId":  fmt.Sprintf("%d", alert.BusID),
		}); err != nil {
			log.Printf("Deviation alert push for trip %d failed: %v", alert.TripID, err)
		}
	}()
}
