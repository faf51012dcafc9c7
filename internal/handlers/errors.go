package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mwangikev/transitgo-backend/internal/domain"
)

// respondError maps the domain error taxonomy to HTTP responses in one
// place. Seat conflicts name the exact seats that failed.
func respondError(c *gin.Context, err error) {
	var seatConflict *domain.SeatConflictError
	switch {
	case errors.As(err, &seatConflict):
		c.JSON(409, gin.H{"error": "seats unavailable", "seats": seatConflict.Seats})
	case domain.IsNotFound(err):
		c.JSON(404, gin.H{"error": err.Error()})
	case domain.IsConflict(err):
		c.JSON(409, gin.H{"error": err.Error()})
	case domain.IsExpired(err):
		c.JSON(410, gin.H{"error": err.Error()})
	default:
		c.JSON(500, gin.H{"error": "Internal server error"})
	}
}
