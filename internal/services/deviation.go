package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mwangikev/transitgo-backend/internal/domain"
	"github.com/mwangikev/transitgo-backend/internal/models"
	"github.com/mwangikev/transitgo-backend/pkg/utils"
)

// FleetReader is the slice of the store the detector needs.
type FleetReader interface {
	OngoingTripForBus(ctx context.Context, busID uint) (*models.Trip, error)
	SetBusAddress(ctx context.Context, busID uint, address string) error
}

// DeviationDetector runs the corridor check for each position report and
// debounces alerts through the trip's deviation flag. The flag is the only
// episode state, so every instance of the service behaves consistently; a
// flag lost to a store restart costs at worst one duplicate alert.
type DeviationDetector struct {
	Fleet    FleetReader
	Flags    FlagStore
	Geocoder Geocoder
	Hub      *Hub
	Notifier *Notifier

	// RadiusMeters defaults to the 300 m corridor.
	RadiusMeters float64
	// FlagTTL bounds a flag orphaned by a trip that never recovers.
	FlagTTL time.Duration
}

func NewDeviationDetector(fleet FleetReader, flags FlagStore, geocoder Geocoder, hub *Hub, notifier *Notifier) *DeviationDetector {
	return &DeviationDetector{
		Fleet:        fleet,
		Flags:        flags,
		Geocoder:     geocoder,
		Hub:          hub,
		Notifier:     notifier,
		RadiusMeters: utils.CorridorRadiusMeters,
		FlagTTL:      24 * time.Hour,
	}
}

// Evaluate runs the deviation state machine for one position report.
// Missing dependencies (no ongoing trip, no corridor, unresolved company or
// driver) abort silently; deviation is reevaluated on the next report.
func (d *DeviationDetector) Evaluate(ctx context.Context, busID uint, lat, lng float64) error {
	trip, err := d.Fleet.OngoingTripForBus(ctx, busID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	if trip.Route == nil || len(trip.Route.Waypoints) == 0 {
		return nil
	}

	onRoute := utils.WithinCorridor(lat, lng, trip.Route.Waypoints, d.RadiusMeters)
	flagKey := DeviationFlagKey(trip.ID)

	flagged, err := d.Flags.Exists(ctx, flagKey)
	if err != nil {
		return err
	}

	switch {
	case onRoute && flagged:
		// Back inside the corridor: the episode is over.
		log.Printf("Trip %d back on route, clearing deviation flag", trip.ID)
		return d.Flags.Delete(ctx, flagKey)

	case onRoute && !flagged:
		return nil

	case !onRoute && flagged:
		// Already alerted for this episode.
		return nil

	default: // off-route, not yet flagged
		return d.alert(ctx, trip, busID, lat, lng, flagKey)
	}
}

func (d *DeviationDetector) alert(ctx context.Context, trip *models.Trip, busID uint, lat, lng float64, flagKey string) error {
	company := trip.Route.Company
	driver := trip.Driver
	if company == nil || driver == nil {
		// Cannot attribute the alert; skip this report and retry on the
		// next one.
		log.Printf("Trip %d off route but company/driver unresolved, skipping alert", trip.ID)
		return nil
	}

	plate := ""
	if trip.Bus != nil {
		plate = trip.Bus.Plate
	}

	alert := DeviationAlert{
		TripID:     trip.ID,
		BusID:      busID,
		BusPlate:   plate,
		RouteName:  trip.Route.Name,
		DriverName: driver.Username,
		CompanyID:  company.ID,
		Lat:        lat,
		Lng:        lng,
		Link:       trackingLink(trip.ID),
	}

	if d.Hub != nil {
		d.Hub.Publish(TopicDeviationAlerts, alert)
	}

	address, err := d.Geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		log.Printf("Reverse geocode for trip %d failed: %v", trip.ID, err)
		address = PlaceholderAddress(lat, lng)
	}
	alert.Address = address

	if err := d.Fleet.SetBusAddress(ctx, busID, address); err != nil {
		log.Printf("Failed to persist address for bus %d: %v", busID, err)
	}

	if d.Notifier != nil {
		d.Notifier.DeviationAlert(alert, company.ContactEmail)
	}

	// Flag last: a crash before this point re-alerts rather than silently
	// losing the episode.
	if err := d.Flags.Set(ctx, flagKey, d.FlagTTL); err != nil {
		return err
	}
	log.Printf("Deviation alert sent for trip %d (bus %d) at (%.5f, %.5f)", trip.ID, busID, lat, lng)
	return nil
}

func trackingLink(tripID uint) string {
	base := os.Getenv("BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return fmt.Sprintf("%s/tracking/trips/%d", base, tripID)
}
