package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Geocoder resolves coordinates to a human-readable address, best effort.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// NominatimGeocoder uses the OpenStreetMap Nominatim reverse endpoint.
type NominatimGeocoder struct {
	BaseURL string
	HTTP    *http.Client
}

func NewNominatimGeocoder() *NominatimGeocoder {
	base := os.Getenv("NOMINATIM_URL")
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	return &NominatimGeocoder{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))

	req, err := http.NewRequestWithContext(ctx, "GET", g.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "transitgo-backend")

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode failed: status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.DisplayName == "" {
		return "", fmt.Errorf("reverse geocode returned no address")
	}
	return body.DisplayName, nil
}

// PlaceholderAddress is used when geocoding fails; alerts still carry the
// raw coordinates.
func PlaceholderAddress(lat, lng float64) string {
	return fmt.Sprintf("Unknown location (%.5f, %.5f)", lat, lng)
}
