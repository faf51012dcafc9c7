package handlers

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/services"
)

// PaymentWebhook receives gateway events. Signature verification runs
// before any state mutation in production. The endpoint acknowledges every
// processed event; duplicate deliveries are neutralized by the
// reconciler's compare-and-set transitions, not by refusing them.
func PaymentWebhook(rec *services.PaymentReconciler, gateway *services.PayPalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(400, gin.H{"error": "Failed to read request body"})
			return
		}

		if os.Getenv("APP_ENV") == "production" {
			ok, err := gateway.VerifyWebhookSignature(c.Request.Context(), c.Request.Header, rawBody)
			if err != nil {
				log.Printf("Webhook signature verification errored: %v", err)
				c.JSON(401, gin.H{"error": "Signature verification failed"})
				return
			}
			if !ok {
				c.JSON(401, gin.H{"error": "Invalid webhook signature"})
				return
			}
		}

		var event services.WebhookEvent
		if err := json.Unmarshal(rawBody, &event); err != nil {
			c.JSON(400, gin.H{"error": "Invalid event payload"})
			return
		}

		result, err := rec.HandleWebhookEvent(c.Request.Context(), &event)
		if err != nil {
			if domain.IsExpired(err) {
				// Processed: the payment arrived after the hold lapsed and
				// the booking is expired. Acknowledge so the gateway stops
				// retrying; re-delivery is harmless.
				c.JSON(200, gin.H{"status": "expired"})
				return
			}
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"status": result})
	}
}

// PaymentSuccess is the browser redirect after payer approval. It always
// ends in a deep-link redirect, never a JSON body.
func PaymentSuccess(rec *services.PaymentReconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		bookingIDStr := c.Query("bookingId")
		if token == "" || bookingIDStr == "" {
			c.JSON(400, gin.H{"error": "token and bookingId query parameters are required"})
			return
		}

		bookingID, err := strconv.ParseUint(bookingIDStr, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid bookingId"})
			return
		}

		deepLink, err := rec.HandleReturn(c.Request.Context(), uint(bookingID), token)
		if err != nil {
			if domain.IsNotFound(err) {
				c.JSON(404, gin.H{"error": "Booking not found"})
				return
			}
			log.Printf("Payment return for booking %d failed: %v", bookingID, err)
			deepLink = services.DeepLinkPaymentCancelled
		}

		c.Redirect(302, deepLink)
	}
}

// PaymentCancel is the browser redirect for an abandoned checkout.
func PaymentCancel(rec *services.PaymentReconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingIDStr := c.Query("bookingId")
		if bookingIDStr == "" {
			c.JSON(400, gin.H{"error": "bookingId query parameter is required"})
			return
		}

		bookingID, err := strconv.ParseUint(bookingIDStr, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid bookingId"})
			return
		}

		deepLink, err := rec.HandleCancel(c.Request.Context(), uint(bookingID))
		if err != nil {
			if domain.IsNotFound(err) {
				c.JSON(404, gin.H{"error": "Booking not found"})
				return
			}
			log.Printf("Payment cancel for booking %d failed: %v", bookingID, err)
			deepLink = services.DeepLinkPaymentCancelled
		}

		c.Redirect(302, deepLink)
	}
}
