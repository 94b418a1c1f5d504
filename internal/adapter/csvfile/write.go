package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/series"
)

// AssociationHeader is the column order of association files.
var AssociationHeader = []string{
	"code_bss", "nom_de_piezometre", "date_debut_mesure", "date_fin_mesure", "nb_mesures_piezo",
	"station_id", "station_name", "piezometre_lat", "piezometre_lon", "station_lat", "station_lon",
}

// ObservationHeader is the column order of joined observation files.
var ObservationHeader = []string{
	"code_bss", "date_mesure", "niveau_nappe_eau", "profondeur_nappe", "nom_piezo",
	"station_name", "RR", "TX", "TN", "TM",
}

// SensorHeader is the column order of selected sensor listings. It is read
// back by ReadSensors.
var SensorHeader = []string{
	"code_bss", "nom_departement", "libelle_pe", "nom_commune", "x", "y",
	"noms_masse_eau_edl", "nb_mesures_piezo", "date_debut_mesure", "date_fin_mesure", "date_maj",
}

// WriteSensors writes one row per sensor.
func WriteSensors(w io.Writer, sensors []domain.Sensor) error {
	return writeRows(w, SensorHeader, len(sensors), func(i int) []string {
		s := sensors[i]
		return []string{
			s.ID,
			s.Department,
			s.Name,
			s.Commune,
			formatFloat(s.Geo.Lon),
			formatFloat(s.Geo.Lat),
			s.AquiferBody,
			strconv.Itoa(s.MeasurementCount),
			s.StartDate,
			s.EndDate,
			s.UpdatedAt,
		}
	})
}

// WriteAssociations writes one row per association. withDistance appends a
// distance_km column.
func WriteAssociations(w io.Writer, assocs []domain.Association, withDistance bool) error {
	header := AssociationHeader
	if withDistance {
		header = append(append([]string{}, AssociationHeader...), "distance_km")
	}
	return writeRows(w, header, len(assocs), func(i int) []string {
		a := assocs[i]
		row := []string{
			a.Sensor.ID,
			a.Sensor.Name,
			a.Sensor.StartDate,
			a.Sensor.EndDate,
			strconv.Itoa(a.Sensor.MeasurementCount),
			a.Station.ID,
			a.Station.Name,
			formatFloat(a.Sensor.Geo.Lat),
			formatFloat(a.Sensor.Geo.Lon),
			formatFloat(a.Station.Geo.Lat),
			formatFloat(a.Station.Geo.Lon),
		}
		if withDistance {
			row = append(row, formatFloat(a.DistanceKm))
		}
		return row
	})
}

// WriteObservations writes joined observations with their measured values only.
func WriteObservations(w io.Writer, obs []series.Observation) error {
	return writeRows(w, ObservationHeader, len(obs), func(i int) []string {
		return observationFields(obs[i])
	})
}

// PreparedHeader returns the column order of prepared observation files for
// the given number of lags.
func PreparedHeader(maxLag int) []string {
	h := append([]string{}, ObservationHeader...)
	h = append(h, "rain_class", "level_class", "rainy", "shower_type")
	for _, w := range series.RainWindows {
		h = append(h, fmt.Sprintf("rr_sum_%dd", w))
	}
	for _, w := range series.RainWindows {
		h = append(h, fmt.Sprintf("rainy_days_%dd", w))
	}
	for lag := 1; lag <= maxLag; lag++ {
		h = append(h,
			fmt.Sprintf("RR_lag_%d", lag),
			fmt.Sprintf("TX_lag_%d", lag),
			fmt.Sprintf("TN_lag_%d", lag),
		)
	}
	return h
}

// WritePrepared writes observations with their classes and derived features.
// Rows without features leave the feature columns empty.
func WritePrepared(w io.Writer, obs []series.Observation, maxLag int) error {
	header := PreparedHeader(maxLag)
	return writeRows(w, header, len(obs), func(i int) []string {
		o := obs[i]
		row := make([]string, 0, len(header))
		row = append(row, observationFields(o)...)
		row = append(row, o.RainClass, o.LevelClass)

		f := o.Features
		if f == nil {
			for len(row) < len(header) {
				row = append(row, "")
			}
			return row
		}

		row = append(row, strconv.FormatBool(f.Rainy), f.ShowerType)
		for _, win := range series.RainWindows {
			row = append(row, formatFloat(f.RainSum[win]))
		}
		for _, win := range series.RainWindows {
			row = append(row, strconv.Itoa(f.RainyDays[win]))
		}
		for lag := 0; lag < maxLag; lag++ {
			if lag >= len(f.Lags) {
				row = append(row, "", "", "")
				continue
			}
			l := f.Lags[lag]
			row = append(row, formatFloat(l.RR), formatFloat(l.TX), formatFloat(l.TN))
		}
		return row
	})
}

func observationFields(o series.Observation) []string {
	return []string{
		o.SensorID,
		o.Date.Format(time.DateOnly),
		formatFloat(o.Level),
		formatFloat(o.Depth),
		o.SensorName,
		o.StationName,
		formatFloat(o.RR),
		formatFloat(o.TX),
		formatFloat(o.TN),
		formatFloat(o.TM),
	}
}

func writeRows(w io.Writer, header []string, n int, row func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// writePath creates path and hands it to write.
func writePath(path string, write func(io.Writer) error) (err error) {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
