package csvfile

import (
	"context"
	"fmt"
	"io"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/series"
)

// Source reads the sensor and station listings from disk.
// It implements pipeline.Extractor.
type Source struct {
	SensorsPath  string
	StationsPath string
}

// Extract reads both listings.
func (s Source) Extract(ctx context.Context) ([]domain.Sensor, []domain.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sensors, err := readPath(s.SensorsPath, ReadSensors)
	if err != nil {
		return nil, nil, fmt.Errorf("read sensors: %w", err)
	}
	stations, err := readPath(s.StationsPath, ReadStations)
	if err != nil {
		return nil, nil, fmt.Errorf("read stations: %w", err)
	}
	return sensors, stations, nil
}

// Listing reads the raw piezometer listing and writes the selected sensors.
// It implements pipeline.SensorSource and pipeline.SensorSink.
type Listing struct {
	ListingPath  string
	SelectedPath string
}

// ExtractSensors reads the raw listing.
func (l Listing) ExtractSensors(ctx context.Context) ([]domain.Sensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sensors, err := readPath(l.ListingPath, ReadSensorListing)
	if err != nil {
		return nil, fmt.Errorf("read sensor listing: %w", err)
	}
	return sensors, nil
}

// LoadSensors writes the selected sensors.
func (l Listing) LoadSensors(ctx context.Context, sensors []domain.Sensor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writePath(l.SelectedPath, func(w io.Writer) error {
		return WriteSensors(w, sensors)
	})
}

// Sink writes the association, consistent and furthest-N files of a run.
// Empty paths are skipped. It implements pipeline.Loader.
type Sink struct {
	AssociationsPath string
	ConsistentPath   string
	FurthestPath     string
}

// Load writes each configured file.
func (s Sink) Load(ctx context.Context, run domain.Run) error {
	outputs := []struct {
		path         string
		assocs       []domain.Association
		withDistance bool
	}{
		{s.AssociationsPath, run.Associations, false},
		{s.ConsistentPath, run.Consistent, false},
		{s.FurthestPath, run.Furthest, true},
	}
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := writePath(o.path, func(w io.Writer) error {
			return WriteAssociations(w, o.assocs, o.withDistance)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SeriesSource reads level readings, one or more weather files and the
// associations produced by an earlier run.
// It implements pipeline.SeriesSource.
type SeriesSource struct {
	LevelsPath       string
	WeatherPaths     []string
	AssociationsPath string
}

// ExtractSeries reads all inputs. Weather files are concatenated in order.
func (s SeriesSource) ExtractSeries(ctx context.Context) ([]series.LevelReading, []series.WeatherReading, []domain.Association, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	levels, err := readPath(s.LevelsPath, ReadLevels)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read levels: %w", err)
	}
	var weather []series.WeatherReading
	for _, p := range s.WeatherPaths {
		w, err := readPath(p, ReadWeather)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read weather: %w", err)
		}
		weather = append(weather, w...)
	}
	assocs, err := readPath(s.AssociationsPath, ReadAssociations)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read associations: %w", err)
	}
	return levels, weather, assocs, nil
}

// SeriesSink writes the joined and the prepared observations. An empty
// ObservationsPath skips the joined file.
// It implements pipeline.SeriesSink.
type SeriesSink struct {
	ObservationsPath string
	PreparedPath     string
	MaxLag           int
}

// LoadSeries writes both files.
func (s SeriesSink) LoadSeries(ctx context.Context, joined, prepared []series.Observation) error {
	if s.ObservationsPath != "" {
		err := writePath(s.ObservationsPath, func(w io.Writer) error {
			return WriteObservations(w, joined)
		})
		if err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writePath(s.PreparedPath, func(w io.Writer) error {
		return WritePrepared(w, prepared, s.MaxLag)
	})
}
