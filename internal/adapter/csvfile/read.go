package csvfile

import (
	"fmt"
	"io"
	"math"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/series"
)

// Input column names. Alternatives cover the raw Hub'Eau and Météo-France
// exports as well as files re-saved by earlier pipeline steps.
var (
	colSensorID    = alias{"code_bss"}
	colSensorName  = alias{"libelle_pe", "nom_de_piezometre", "nom_piezo"}
	colStartDate   = alias{"date_debut_mesure"}
	colEndDate     = alias{"date_fin_mesure"}
	colCount       = alias{"nb_mesures_piezo"}
	colDepartment  = alias{"nom_departement"}
	colCommune     = alias{"nom_commune"}
	colAquifer     = alias{"noms_masse_eau_edl"}
	colUpdatedAt   = alias{"date_maj"}
	colSensorLat   = alias{"y", "piezometre_lat", "piézomètre_lat"}
	colSensorLon   = alias{"x", "piezometre_lon", "piézomètre_lon"}
	colStationID   = alias{"Id_station", "station_id", "NUM_POSTE"}
	colStationName = alias{"Nom_usuel", "station_name", "NOM_USUEL"}
	colStationLat  = alias{"Latitude", "station_lat", "LAT"}
	colStationLon  = alias{"Longitude", "station_lon", "LON"}
	colDistance    = alias{"distance_km", "distance"}

	colLevelDate = alias{"date_mesure"}
	colLevel     = alias{"niveau_nappe_eau"}
	colDepth     = alias{"profondeur_nappe"}
	colLevelName = alias{"nom_piezo", "libelle_pe"}

	colWeatherStation = alias{"NOM_USUEL", "station_name", "Nom_usuel"}
	colWeatherDate    = alias{"AAAAMMJJ", "DATE", "date_mesure"}
	colRR             = alias{"RR"}
	colTX             = alias{"TX"}
	colTN             = alias{"TN"}
	colTM             = alias{"TM"}
)

// alias lists the accepted header names for one field, preferred name first.
type alias []string

// columns maps a field's preferred name to its index, -1 when absent.
type columns map[string]int

func (c columns) of(a alias) int { return c[a[0]] }

// resolve looks up every mandatory column, then the optional ones.
func (t *table) resolve(required, optional []alias) (columns, error) {
	c := make(columns, len(required)+len(optional))
	for _, names := range required {
		i, err := t.require(names...)
		if err != nil {
			return nil, err
		}
		c[names[0]] = i
	}
	for _, names := range optional {
		i, ok := t.column(names...)
		if !ok {
			i = -1
		}
		c[names[0]] = i
	}
	return c, nil
}

// ReadSensors parses a piezometer listing. Coordinates are read from x
// (longitude) and y (latitude) and must be present on every row.
func ReadSensors(r io.Reader, name string) ([]domain.Sensor, error) {
	return readSensors(r, name, (*table).geo)
}

// ReadSensorListing parses the raw Hub'Eau piezometer listing. Unlike
// ReadSensors, blank coordinates are kept as NaN so the listing can be
// narrowed before any row is rejected.
func ReadSensorListing(r io.Reader, name string) ([]domain.Sensor, error) {
	return readSensors(r, name, (*table).optionalGeo)
}

func readSensors(r io.Reader, name string, geo func(*table, int, int, int) (domain.Geo, error)) ([]domain.Sensor, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	c, err := t.resolve(
		[]alias{colSensorID, colSensorLat, colSensorLon},
		[]alias{colSensorName, colStartDate, colEndDate, colCount, colDepartment, colCommune, colAquifer, colUpdatedAt},
	)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Sensor, 0, len(t.rows))
	for n, row := range t.rows {
		s := domain.Sensor{
			ID:          t.text(row, c.of(colSensorID)),
			Name:        t.text(row, c.of(colSensorName)),
			StartDate:   t.text(row, c.of(colStartDate)),
			EndDate:     t.text(row, c.of(colEndDate)),
			Department:  t.text(row, c.of(colDepartment)),
			Commune:     t.text(row, c.of(colCommune)),
			AquiferBody: t.text(row, c.of(colAquifer)),
			UpdatedAt:   t.text(row, c.of(colUpdatedAt)),
		}
		if s.MeasurementCount, err = t.count(n, c.of(colCount), colCount[0]); err != nil {
			return nil, err
		}
		if s.Geo, err = geo(t, n, c.of(colSensorLat), c.of(colSensorLon)); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ReadStations parses a weather station listing.
func ReadStations(r io.Reader, name string) ([]domain.Station, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	c, err := t.resolve(
		[]alias{colStationName, colStationLat, colStationLon},
		[]alias{colStationID},
	)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Station, 0, len(t.rows))
	for n, row := range t.rows {
		st := domain.Station{
			ID:   t.text(row, c.of(colStationID)),
			Name: t.text(row, c.of(colStationName)),
		}
		if st.Geo, err = t.geo(n, c.of(colStationLat), c.of(colStationLon)); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// ReadAssociations parses an associations file as written by WriteAssociations.
// Without a distance column the distance is recomputed from the coordinates.
func ReadAssociations(r io.Reader, name string) ([]domain.Association, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	c, err := t.resolve(
		[]alias{colSensorID, colStationName},
		[]alias{
			colSensorName, colStartDate, colEndDate, colCount, colStationID,
			colSensorLat, colSensorLon, colStationLat, colStationLon, colDistance,
		},
	)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Association, 0, len(t.rows))
	for n, row := range t.rows {
		a := domain.Association{
			Sensor: domain.Sensor{
				ID:        t.text(row, c.of(colSensorID)),
				Name:      t.text(row, c.of(colSensorName)),
				StartDate: t.text(row, c.of(colStartDate)),
				EndDate:   t.text(row, c.of(colEndDate)),
			},
			Station: domain.Station{
				ID:   t.text(row, c.of(colStationID)),
				Name: t.text(row, c.of(colStationName)),
			},
		}
		if a.Sensor.MeasurementCount, err = t.count(n, c.of(colCount), colCount[0]); err != nil {
			return nil, err
		}
		if a.Sensor.Geo, err = t.optionalGeo(n, c.of(colSensorLat), c.of(colSensorLon)); err != nil {
			return nil, err
		}
		if a.Station.Geo, err = t.optionalGeo(n, c.of(colStationLat), c.of(colStationLon)); err != nil {
			return nil, err
		}
		if a.DistanceKm, err = t.float(n, c.of(colDistance), colDistance[0]); err != nil {
			return nil, err
		}
		if math.IsNaN(a.DistanceKm) {
			a.DistanceKm = a.Sensor.Geo.DistanceKm(a.Station.Geo)
		}
		out = append(out, a)
	}
	return out, nil
}

// ReadLevels parses daily water-table readings. Rows whose date cannot be
// parsed are skipped.
func ReadLevels(r io.Reader, name string) ([]series.LevelReading, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	c, err := t.resolve(
		[]alias{colSensorID, colLevelDate, colLevel},
		[]alias{colDepth, colLevelName},
	)
	if err != nil {
		return nil, err
	}

	out := make([]series.LevelReading, 0, len(t.rows))
	for n, row := range t.rows {
		date, ok := domain.ParseDate(t.text(row, c.of(colLevelDate)))
		if !ok {
			continue
		}
		lv := series.LevelReading{
			SensorID:   t.text(row, c.of(colSensorID)),
			SensorName: t.text(row, c.of(colLevelName)),
			Date:       date,
		}
		if lv.Level, err = t.float(n, c.of(colLevel), colLevel[0]); err != nil {
			return nil, err
		}
		if lv.Depth, err = t.float(n, c.of(colDepth), colDepth[0]); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, nil
}

// ReadWeather parses daily station climatology. Rows whose date cannot be
// parsed are skipped.
func ReadWeather(r io.Reader, name string) ([]series.WeatherReading, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	c, err := t.resolve(
		[]alias{colWeatherStation, colWeatherDate},
		[]alias{colRR, colTX, colTN, colTM},
	)
	if err != nil {
		return nil, err
	}

	out := make([]series.WeatherReading, 0, len(t.rows))
	for n, row := range t.rows {
		date, ok := domain.ParseDate(t.text(row, c.of(colWeatherDate)))
		if !ok {
			continue
		}
		w := series.WeatherReading{
			StationName: t.text(row, c.of(colWeatherStation)),
			Date:        date,
		}
		for _, f := range []struct {
			dst   *float64
			names alias
		}{
			{&w.RR, colRR}, {&w.TX, colTX}, {&w.TN, colTN}, {&w.TM, colTM},
		} {
			if *f.dst, err = t.float(n, c.of(f.names), f.names[0]); err != nil {
				return nil, err
			}
		}
		out = append(out, w)
	}
	return out, nil
}

// geo parses a mandatory coordinate pair. An empty or non-finite latitude or
// longitude is an error naming the line and column.
func (t *table) geo(n, latCol, lonCol int) (domain.Geo, error) {
	lat, err := t.coordinate(n, latCol)
	if err != nil {
		return domain.Geo{}, err
	}
	lon, err := t.coordinate(n, lonCol)
	if err != nil {
		return domain.Geo{}, err
	}
	return domain.Geo{Lat: lat, Lon: lon}, nil
}

func (t *table) coordinate(n, col int) (float64, error) {
	header := t.header(col)
	v, err := t.float(n, col, header)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s:%d: column %q: missing or invalid coordinate %q",
			t.name, t.lines[n], header, t.text(t.rows[n], col))
	}
	return v, nil
}

// optionalGeo parses a coordinate pair whose columns may be absent. Empty
// cells stay NaN.
func (t *table) optionalGeo(n, latCol, lonCol int) (domain.Geo, error) {
	lat, err := t.float(n, latCol, t.header(latCol))
	if err != nil {
		return domain.Geo{}, err
	}
	lon, err := t.float(n, lonCol, t.header(lonCol))
	if err != nil {
		return domain.Geo{}, err
	}
	return domain.Geo{Lat: lat, Lon: lon}, nil
}

func (t *table) header(col int) string {
	for name, i := range t.cols {
		if i == col {
			return name
		}
	}
	return fmt.Sprintf("#%d", col+1)
}

// readPath opens path and hands it to read.
func readPath[T any](path string, read func(io.Reader, string) ([]T, error)) ([]T, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f, path)
}
