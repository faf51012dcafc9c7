package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/models"
	"github.com/mwangikev/transitgo-backend/internal/services"
	"github.com/mwangikev/transitgo-backend/internal/store"
	"github.com/mwangikev/transitgo-backend/pkg/utils"
)

// ReportPosition ingests one driver position report: overwrite the bus's
// last known position, broadcast it to observers, then run the deviation
// check. The report is acknowledged even when alerting cannot complete.
func ReportPosition(st *store.Store, detector *services.DeviationDetector, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can report positions"})
			return
		}

		var input struct {
			BusID uint     `json:"busId"`
			Lat   *float64 `json:"lat" binding:"required"`
			Lng   *float64 `json:"lng" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		lat, lng := *input.Lat, *input.Lng

		if !utils.ValidCoordinates(lat, lng) {
			c.JSON(400, gin.H{"error": "Invalid coordinates"})
			return
		}

		ctx := c.Request.Context()

		busID := input.BusID
		if busID == 0 {
			bus, err := st.GetBusByDriver(ctx, driverID)
			if err != nil {
				respondError(c, err)
				return
			}
			busID = bus.ID
		}

		now := time.Now()
		if err := st.UpdateBusPosition(ctx, busID, lat, lng, now); err != nil {
			if domain.IsNotFound(err) {
				c.JSON(404, gin.H{"error": "Bus not found"})
				return
			}
			c.JSON(500, gin.H{"error": "Failed to update position"})
			return
		}

		// Mirror to the position cache and pub/sub; both are best effort.
		if err := services.SetBusPosition(ctx, busID, lat, lng); err != nil {
			log.Printf("Failed to cache position for bus %d: %v", busID, err)
		}
		if err := services.PublishBusPosition(ctx, busID, lat, lng); err != nil {
			log.Printf("Failed to publish position for bus %d: %v", busID, err)
		}

		// Broadcast unconditionally; duplicate broadcasts are acceptable.
		hub.Publish(services.TopicTripPositions, services.PositionUpdate{
			BusID:     busID,
			Lat:       lat,
			Lng:       lng,
			Timestamp: now.Unix(),
		})

		// The corridor check must not fail the report. Use a detached
		// context so a client disconnect cannot abort alerting midway.
		if err := detector.Evaluate(context.Background(), busID, lat, lng); err != nil {
			log.Printf("Deviation evaluation for bus %d failed: %v", busID, err)
		}

		c.JSON(200, gin.H{
			"message": "Position updated successfully",
			"position": gin.H{
				"lat": lat,
				"lng": lng,
			},
		})
	}
}
