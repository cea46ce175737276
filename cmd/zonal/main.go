// Command zonal mosaics DEM tiles and writes per-basin elevation statistics
// and elevation bands as CSV.
//
// Usage:
//
//	go run ./cmd/zonal \
//	  -dem data/mock/dem_1.nc,data/mock/dem_2.nc \
//	  -basins data/mock/basins.geojson \
//	  -edges 1500,2000,2500 \
//	  -out zonal.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/snow-drought-index/internal/adapter/netcdf"
	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/geo"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	demFiles := flag.String("dem", "", "comma-separated DEM NetCDF tiles")
	demVar := flag.String("dem-var", "elevation", "DEM variable name")
	basinFile := flag.String("basins", "", "basin GeoJSON or shapefile")
	idField := flag.String("id-field", "Station_ID", "basin id attribute")
	edgesFlag := flag.String("edges", "1500,2000,2500", "comma-separated elevation band edges (m)")
	sweFile := flag.String("swe", "", "optional SWE NetCDF used to count stations per basin")
	sweVar := flag.String("swe-var", "snw", "SWE variable name")
	mosaicOut := flag.String("mosaic-out", "", "optional path for the merged DEM")
	out := flag.String("out", "", "CSV output path (default stdout)")
	flag.Parse()

	if *demFiles == "" || *basinFile == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -dem, -basins")
	}

	edges, err := parseEdges(*edgesFlag)
	if err != nil {
		return err
	}
	bands, err := domain.ElevationBands(edges)
	if err != nil {
		return err
	}

	var tiles []*geo.Grid
	for _, path := range strings.Split(*demFiles, ",") {
		g, err := netcdf.LoadGrid(strings.TrimSpace(path), *demVar)
		if err != nil {
			return err
		}
		tiles = append(tiles, g)
	}
	dem, err := geo.Mosaic(tiles...)
	if err != nil {
		return err
	}
	log.Printf("mosaic: %d tiles -> %dx%d cells", len(tiles), dem.NX, dem.NY)
	if *mosaicOut != "" {
		if err := netcdf.WriteGrid(*mosaicOut, *demVar, dem); err != nil {
			return err
		}
	}

	basins, err := geo.LoadBasins(*basinFile, *idField)
	if err != nil {
		return err
	}

	var stations []domain.Station
	if *sweFile != "" {
		d, err := netcdf.LoadDataset(*sweFile, *sweVar)
		if err != nil {
			return err
		}
		stations = d.Stations
	}

	summaries := geo.SummarizeBasins(dem, basins, bands, stations)

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeCSV(w, summaries); err != nil {
		return err
	}
	log.Printf("basins: %d", len(summaries))
	return nil
}

func parseEdges(s string) ([]float64, error) {
	var edges []float64
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -edges value %q", p)
		}
		edges = append(edges, v)
	}
	return edges, nil
}

func writeCSV(w io.Writer, summaries []geo.BasinSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"basin_id", "name", "cells", "min", "max", "mean", "median", "elevation_band", "stations"}); err != nil {
		return err
	}
	for _, s := range summaries {
		err := cw.Write([]string{
			s.BasinID,
			s.Name,
			strconv.Itoa(s.Stats.Count),
			formatFloat(s.Stats.Min),
			formatFloat(s.Stats.Max),
			formatFloat(s.Stats.Mean),
			formatFloat(s.Stats.Median),
			s.Band,
			strconv.Itoa(s.Stations),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
