package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mwangikev/transitgo-backend/internal/models"
	"github.com/mwangikev/transitgo-backend/internal/services"
	"github.com/mwangikev/transitgo-backend/internal/store"
)

// CreateBooking claims seats on a trip under a 5-minute hold and opens a
// gateway order for payment.
func CreateBooking(st *store.Store, sched *services.ReservationScheduler, gateway *services.PayPalClient, flags services.FlagStore, notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			TripID      uint     `json:"tripId" binding:"required"`
			SeatNumbers []string `json:"seatNumbers" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()

		booking, err := st.Reserve(ctx, input.TripID, input.SeatNumbers, userID)
		if err != nil {
			respondError(c, err)
			return
		}

		// The seats are claimed; everything below must not undo that.
		baseURL := os.Getenv("BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}
		returnURL := fmt.Sprintf("%s/api/payments/success?bookingId=%d", baseURL, booking.ID)
		cancelURL := fmt.Sprintf("%s/api/payments/cancel?bookingId=%d", baseURL, booking.ID)

		orderID, approvalURL, err := gateway.CreateOrder(ctx, booking.TotalPrice, os.Getenv("PAYPAL_CURRENCY"), booking.ID, returnURL, cancelURL)
		if err != nil {
			// The hold timer will release the seats if payment never
			// arrives; the client may retry payment from the booking page.
			log.Printf("Failed to create gateway order for booking %d: %v", booking.ID, err)
		} else {
			booking.PayPalOrderID = orderID
			if err := st.SetOrderID(ctx, booking.ID, orderID); err != nil {
				log.Printf("Failed to store order id for booking %d: %v", booking.ID, err)
			}
		}

		sched.Schedule(booking.ID, booking.HoldDeadline())
		if err := flags.Set(ctx, services.HoldKey(booking.ID), models.HoldWindow); err != nil {
			log.Printf("Failed to set hold marker for booking %d: %v", booking.ID, err)
		}

		if detail, err := st.GetBookingDetail(context.Background(), booking.ID); err == nil && detail.User != nil {
			routeName := ""
			if detail.Trip != nil && detail.Trip.Route != nil {
				routeName = detail.Trip.Route.Name
			}
			notifier.BookingEvent(detail.User, "created", booking, routeName)
		}

		c.JSON(201, gin.H{
			"booking":     booking,
			"approvalUrl": approvalURL,
			"holdExpires": booking.HoldDeadline(),
		})
	}
}

// GetBooking retrieves one booking for its owner.
func GetBooking(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		booking, err := st.GetBookingDetail(c.Request.Context(), uint(id))
		if err != nil {
			respondError(c, err)
			return
		}

		if booking.UserID != userID && userType != string(models.UserTypeAdmin) {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		c.JSON(200, booking)
	}
}

// GetUserBookings retrieves all bookings for the current user.
func GetUserBookings(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		bookings, err := st.ListUserBookings(c.Request.Context(), userID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// CancelBooking is the explicit cancellation path with tiered refunds:
// more than 24h before departure 80%, 12-24h 50%, under 12h nothing.
// Cancelling after departure is rejected.
func CancelBooking(st *store.Store, sched *services.ReservationScheduler, flags services.FlagStore, notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		ctx := c.Request.Context()
		booking, err := st.GetBookingDetail(ctx, uint(id))
		if err != nil {
			respondError(c, err)
			return
		}

		if booking.UserID != userID {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}
		if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusConfirmed {
			c.JSON(409, gin.H{"error": "Booking cannot be cancelled in its current state"})
			return
		}
		if booking.Trip == nil {
			c.JSON(500, gin.H{"error": "Booking has no trip"})
			return
		}

		now := time.Now()
		if now.After(booking.Trip.DepartureTime) {
			c.JSON(409, gin.H{"error": "Cannot cancel after departure"})
			return
		}

		refund := booking.TotalPrice * models.RefundPercent(booking.Trip.DepartureTime, now)
		newPayment := models.PaymentStatusCancelled
		if booking.PaymentStatus == models.PaymentStatusPaid {
			newPayment = models.PaymentStatusRefunded
		}

		won, err := st.Cancel(ctx, booking.ID, booking.PaymentStatus, newPayment, refund, now)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to cancel booking"})
			return
		}
		if !won {
			c.JSON(409, gin.H{"error": "Booking state changed, please retry"})
			return
		}

		sched.Cancel(booking.ID)
		if err := flags.Delete(ctx, services.HoldKey(booking.ID)); err != nil {
			log.Printf("Failed to clear hold marker for booking %d: %v", booking.ID, err)
		}

		booking.RefundAmount = refund
		if booking.User != nil {
			notifier.BookingEvent(booking.User, "cancelled", booking, "")
		}

		c.JSON(200, gin.H{
			"message":      "Booking cancelled",
			"bookingId":    booking.ID,
			"refundAmount": refund,
		})
	}
}
