package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mwangikev/transitgo-backend/internal/models"
	"github.com/mwangikev/transitgo-backend/internal/store"
)

// CreateTrip schedules a run of one bus on one route and generates its
// seat rows from the bus capacity. Admin only.
func CreateTrip(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := c.GetString("userType")
		if userType != string(models.UserTypeAdmin) {
			c.JSON(403, gin.H{"error": "Only admins can create trips"})
			return
		}

		var input struct {
			RouteID       uint      `json:"routeId" binding:"required"`
			BusID         uint      `json:"busId" binding:"required"`
			DriverID      uint      `json:"driverId" binding:"required"`
			DepartureTime time.Time `json:"departureTime" binding:"required"`
			ArrivalTime   time.Time `json:"arrivalTime"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		trip := models.Trip{
			RouteID:       input.RouteID,
			BusID:         input.BusID,
			DriverID:      input.DriverID,
			DepartureTime: input.DepartureTime,
			ArrivalTime:   input.ArrivalTime,
			Status:        models.TripStatusPending,
		}

		if err := st.CreateTrip(c.Request.Context(), &trip); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, trip)
	}
}

// GetTrips lists trips, optionally filtered by status.
func GetTrips(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		trips, err := st.ListTrips(c.Request.Context(), c.Query("status"))
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch trips"})
			return
		}
		c.JSON(200, gin.H{"trips": trips, "count": len(trips)})
	}
}

// GetTrip returns one trip with its full seat map.
func GetTrip(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid trip ID"})
			return
		}

		trip, err := st.GetTripWithSeats(c.Request.Context(), uint(id))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, trip)
	}
}

// Legal trip status transitions, keyed by target status.
var tripTransitions = map[string]string{
	models.TripStatusOngoing:   models.TripStatusPending,
	models.TripStatusCompleted: models.TripStatusOngoing,
	models.TripStatusCancelled: models.TripStatusPending,
}

// UpdateTripStatus moves a trip along its lifecycle with a compare-and-set
// on the expected current status. Drivers start and complete their own
// trips; admins may also cancel.
func UpdateTripStatus(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid trip ID"})
			return
		}

		var input struct {
			Status string `json:"status" binding:"required,oneof=ongoing completed cancelled"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		trip, err := st.GetTrip(ctx, uint(id))
		if err != nil {
			respondError(c, err)
			return
		}

		switch userType {
		case string(models.UserTypeAdmin):
		case string(models.UserTypeDriver):
			if trip.DriverID != userID {
				c.JSON(403, gin.H{"error": "Not the driver of this trip"})
				return
			}
			if input.Status == models.TripStatusCancelled {
				c.JSON(403, gin.H{"error": "Only admins can cancel trips"})
				return
			}
		default:
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		from := tripTransitions[input.Status]
		won, err := st.TransitionTrip(ctx, uint(id), from, input.Status)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to update trip status"})
			return
		}
		if !won {
			c.JSON(409, gin.H{"error": "Trip is not in a state allowing this transition"})
			return
		}

		c.JSON(200, gin.H{
			"message": "Trip status updated",
			"tripId":  trip.ID,
			"status":  input.Status,
		})
	}
}
