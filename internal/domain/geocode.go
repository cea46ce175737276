package domain

import (
	"context"
	"log/slog"
)

// EnrichStation attempts to attach a place name to a station. If geocoder
// is nil the station is returned untouched; failures are logged and
// recorded in GeoSource.
func EnrichStation(ctx context.Context, station Station, geocoder Geocoder, logger *slog.Logger) Station {
	if geocoder == nil {
		return station
	}
	if station.Lat == 0 && station.Lon == 0 {
		station.GeoSource = "original"
		return station
	}

	result, err := geocoder.ReverseGeocode(ctx, station.Lat, station.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"station_id", station.ID,
			"lat", station.Lat,
			"lon", station.Lon,
			"error", err,
		)
		station.GeoSource = "failed"
		return station
	}
	if result.FormattedAddress == "" {
		station.GeoSource = "original"
		return station
	}
	station.PlaceName = result.PlaceName
	if station.PlaceName == "" {
		station.PlaceName = result.FormattedAddress
	}
	station.GeoSource = "reverse"
	return station
}
