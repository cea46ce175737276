package main

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/snow-drought-index/internal/adapter/output"
	"github.com/couchcryptid/snow-drought-index/internal/config"
	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/geo"
)

// prepareDataset narrows a loaded dataset to the stations the run should
// process: daily resampling, coordinate corrections, station id and basin
// selection, then the optional basin mean pseudo-station.
func prepareDataset(d *domain.Dataset, cfg *config.Config, logger *slog.Logger) (*domain.Dataset, error) {
	if domain.IsSubDaily(d.Times) || domain.HasMissingDates(d.Times) {
		logger.Info("resampling observations to a contiguous daily axis", "steps", len(d.Times))
		d = domain.ResampleDataset(d)
	}

	if cfg.CoordinatesFile != "" {
		updates, err := output.ReadCoordinatesFile(cfg.CoordinatesFile)
		if err != nil {
			return nil, err
		}
		n := domain.UpdateCoordinates(d.Stations, updates)
		logger.Info("station coordinates updated", "stations", n, "entries", len(updates))
	}

	if len(cfg.StationIDs) > 0 {
		d = domain.FilterStations(d, cfg.StationIDs)
		logger.Info("stations selected by id", "requested", len(cfg.StationIDs), "found", d.Len())
	}

	if cfg.BasinFile != "" {
		basins, err := geo.LoadBasins(cfg.BasinFile, cfg.BasinIDField)
		if err != nil {
			return nil, err
		}
		inside, err := geo.ExtractStationsInBasin(d.Stations, basins, cfg.BasinID, cfg.BufferKm)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(inside))
		for i, s := range inside {
			ids[i] = s.ID
		}
		d = domain.FilterStations(d, ids)
		for i := range d.Stations {
			d.Stations[i].Basin = cfg.BasinID
		}
		logger.Info("stations extracted for basin", "basin", cfg.BasinID, "buffer_km", cfg.BufferKm, "stations", d.Len())
	}

	low := 0
	for _, a := range domain.DatasetAvailability(d) {
		if a < cfg.MinAvailability {
			low++
		}
	}
	logger.Info("dataset prepared", "stations", d.Len(), "days", len(d.Times), "below_availability", low)

	if cfg.BasinMean {
		usable := domain.FilterByAvailability(d, cfg.MinAvailability)
		if usable.Len() > 0 {
			if err := d.Append(domain.BasinMeanSeries(usable, cfg.BasinID)); err != nil {
				return nil, err
			}
		}
	}

	if d.Len() == 0 {
		return nil, fmt.Errorf("%w: no stations selected", domain.ErrInsufficientData)
	}
	return d, nil
}

// preparePrecipitation aligns a precipitation dataset with the prepared SWE
// stations: daily accumulation, the same station selection, and a basin
// mean over the selected stations when the SWE run has one.
func preparePrecipitation(p *domain.Dataset, swe *domain.Dataset, cfg *config.Config, logger *slog.Logger) (*domain.Dataset, error) {
	meanID := domain.BasinMeanID(cfg.BasinID)
	ids := make([]string, 0, swe.Len())
	for _, s := range swe.Stations {
		if cfg.BasinMean && s.ID == meanID {
			continue
		}
		ids = append(ids, s.ID)
	}

	out := domain.PreparePrecipitation(p, ids)
	if cfg.BasinMean && out.Len() > 0 {
		if err := out.Append(domain.BasinMeanSeries(out, cfg.BasinID)); err != nil {
			return nil, err
		}
	}
	logger.Info("precipitation prepared", "stations", out.Len(), "of", len(ids), "days", len(out.Times), "units", out.Units)
	return out, nil
}
