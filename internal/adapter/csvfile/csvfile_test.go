package csvfile

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/series"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hubeauSensors = "\ufeffcode_bss;libelle_pe;x;y;nb_mesures_piezo;date_debut_mesure;date_fin_mesure\n" +
	"BSS002JJYA;Lattes - Mas de Saporta;3,9;43,6;1096.0;2020-01-01;2022-12-31\n" +
	"BSS002KXRQ;Frontignan;3.75;43.45;;2019-05-01;\n"

func TestReadSensors_SemicolonAndDecimalComma(t *testing.T) {
	sensors, err := ReadSensors(strings.NewReader(hubeauSensors), "piezometres.csv")
	require.NoError(t, err)
	require.Len(t, sensors, 2)

	assert.Equal(t, domain.Sensor{
		ID:               "BSS002JJYA",
		Name:             "Lattes - Mas de Saporta",
		StartDate:        "2020-01-01",
		EndDate:          "2022-12-31",
		MeasurementCount: 1096,
		Geo:              domain.Geo{Lat: 43.6, Lon: 3.9},
	}, sensors[0])
	assert.Equal(t, 0, sensors[1].MeasurementCount)
	assert.Empty(t, sensors[1].EndDate)
}

func TestReadSensors_MalformedNumberNamesLineAndColumn(t *testing.T) {
	in := "code_bss,libelle_pe,x,y\n" +
		"BSS1,A,3.9,43.6\n" +
		"BSS2,B,3.9,north\n"

	_, err := ReadSensors(strings.NewReader(in), "piezo.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "piezo.csv:3")
	assert.Contains(t, err.Error(), `"y"`)
	assert.Contains(t, err.Error(), "north")
}

func TestReadSensors_MissingColumn(t *testing.T) {
	_, err := ReadSensors(strings.NewReader("code_bss,x\nBSS1,3.9\n"), "piezo.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "y"`)
}

func TestReadSensors_Empty(t *testing.T) {
	_, err := ReadSensors(strings.NewReader(""), "piezo.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestReadStations(t *testing.T) {
	in := "Id_station,Nom_usuel,Latitude,Longitude\n" +
		"34154001,MONTPELLIER-AEROPORT,43.5762,3.963\n" +
		"\n" +
		"34301002,SETE,43.397,3.692\n"

	stations, err := ReadStations(strings.NewReader(in), "stations_meteo.csv")
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, domain.Station{ID: "34154001", Name: "MONTPELLIER-AEROPORT", Geo: domain.Geo{Lat: 43.5762, Lon: 3.963}}, stations[0])
	assert.Equal(t, "SETE", stations[1].Name)
}

func TestReadStations_RejectsMissingCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		row     string
		column  string
		wantVal string
	}{
		{name: "blank latitude", row: "999,BROKEN,,3.9", column: `"Latitude"`, wantVal: `""`},
		{name: "blank pair", row: "999,BROKEN,,", column: `"Latitude"`, wantVal: `""`},
		{name: "blank longitude", row: "999,BROKEN,43.6,", column: `"Longitude"`, wantVal: `""`},
		{name: "not a number", row: "999,BROKEN,NaN,3.9", column: `"Latitude"`, wantVal: `"NaN"`},
		{name: "infinite", row: "999,BROKEN,43.6,+Inf", column: `"Longitude"`, wantVal: `"+Inf"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := "Id_station,Nom_usuel,Latitude,Longitude\n" +
				"34154001,MONTPELLIER-AEROPORT,43.5762,3.963\n" +
				tt.row + "\n"

			_, err := ReadStations(strings.NewReader(in), "stations_meteo.csv")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "stations_meteo.csv:3")
			assert.Contains(t, err.Error(), tt.column)
			assert.Contains(t, err.Error(), tt.wantVal)
		})
	}
}

func TestReadSensors_RejectsBlankCoordinate(t *testing.T) {
	in := "code_bss,libelle_pe,x,y\n" +
		"BSS1,A,3.9,\n"

	_, err := ReadSensors(strings.NewReader(in), "piezo.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `piezo.csv:2: column "y": missing or invalid coordinate`)
}

func TestReadAssociations_BlankCoordinatesStayMissing(t *testing.T) {
	in := "code_bss,station_name,piezometre_lat,piezometre_lon,station_lat,station_lon,distance_km\n" +
		"BSS1,SETE,,,,,4.2\n"

	assocs, err := ReadAssociations(strings.NewReader(in), "associations.csv")
	require.NoError(t, err)
	require.Len(t, assocs, 1)
	assert.True(t, math.IsNaN(assocs[0].Station.Geo.Lat))
	assert.InDelta(t, 4.2, assocs[0].DistanceKm, 1e-12)
}

const hubeauListing = "code_bss;nom_departement;libelle_pe;nom_commune;x;y;noms_masse_eau_edl;nb_mesures_piezo;date_debut_mesure;date_fin_mesure;date_maj\n" +
	"BSS002JJYA;Hérault;Lattes - Mas de Saporta;Lattes;3,9;43,6;Alluvions du Lez;7300;2000-01-01;2020-01-01;Tue Oct 08 09:12:02 CEST 2024\n" +
	"BSS002KXRQ;Hérault;Frontignan;Frontignan;;;Calcaires du pli de Montpellier;900;2019-05-01;2022-01-01;\n"

func TestReadSensorListing(t *testing.T) {
	sensors, err := ReadSensorListing(strings.NewReader(hubeauListing), "stations_piezometres.csv")
	require.NoError(t, err)
	require.Len(t, sensors, 2)

	assert.Equal(t, domain.Sensor{
		ID:               "BSS002JJYA",
		Name:             "Lattes - Mas de Saporta",
		StartDate:        "2000-01-01",
		EndDate:          "2020-01-01",
		MeasurementCount: 7300,
		Geo:              domain.Geo{Lat: 43.6, Lon: 3.9},
		Department:       "Hérault",
		Commune:          "Lattes",
		AquiferBody:      "Alluvions du Lez",
		UpdatedAt:        "Tue Oct 08 09:12:02 CEST 2024",
	}, sensors[0])
	assert.False(t, sensors[1].Geo.Finite(), "blank coordinates stay missing")

	_, err = ReadSensors(strings.NewReader(hubeauListing), "stations_piezometres.csv")
	require.Error(t, err, "the association reader still rejects them")
}

func TestListing_SelectedFileReadsBack(t *testing.T) {
	dir := t.TempDir()
	listingPath := filepath.Join(dir, "stations_piezometres.csv")
	selectedPath := filepath.Join(dir, "out", "piezometres.csv")
	require.NoError(t, os.WriteFile(listingPath, []byte(hubeauListing), 0o600))

	l := Listing{ListingPath: listingPath, SelectedPath: selectedPath}
	listing, err := l.ExtractSensors(context.Background())
	require.NoError(t, err)

	selected := domain.SelectSensors(listing, domain.DefaultDepartment)
	require.NoError(t, l.LoadSensors(context.Background(), selected))

	f, err := os.Open(selectedPath)
	require.NoError(t, err)
	defer f.Close()
	back, err := ReadSensors(f, selectedPath)
	require.NoError(t, err)
	assert.Equal(t, selected, back)

	_, err = Listing{ListingPath: filepath.Join(dir, "missing.csv")}.ExtractSensors(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read sensor listing")
}

func TestReadWeather_MeteoFranceExport(t *testing.T) {
	in := "NUM_POSTE;NOM_USUEL;LAT;LON;AAAAMMJJ;RR;TN;TX;TM\n" +
		"34154001;MONTPELLIER-AEROPORT;43.5762;3.963;20230301;2,5;4.1;15.2;9.6\n" +
		"34154001;MONTPELLIER-AEROPORT;43.5762;3.963;20230302;;3.0;14.0;8.5\n" +
		"34154001;MONTPELLIER-AEROPORT;43.5762;3.963;2023XX03;1;1;1;1\n"

	weather, err := ReadWeather(strings.NewReader(in), "Q_34_latest.csv")
	require.NoError(t, err)
	require.Len(t, weather, 2)

	first := weather[0]
	assert.Equal(t, "MONTPELLIER-AEROPORT", first.StationName)
	assert.Equal(t, time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 2.5, first.RR)
	assert.Equal(t, 15.2, first.TX)
	assert.Equal(t, 4.1, first.TN)
	assert.Equal(t, 9.6, first.TM)
	assert.True(t, math.IsNaN(weather[1].RR))
}

func TestReadLevels(t *testing.T) {
	in := "code_bss,date_mesure,niveau_nappe_eau,profondeur_nappe,nom_piezo\n" +
		"BSS1,2023-03-01,12.4,3.1,Lattes\n" +
		"BSS1,not a date,12.5,3.0,Lattes\n" +
		"BSS1,2023-03-03,,2.9,Lattes\n"

	levels, err := ReadLevels(strings.NewReader(in), "chroniques_piezo.csv")
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "Lattes", levels[0].SensorName)
	assert.Equal(t, 12.4, levels[0].Level)
	assert.True(t, math.IsNaN(levels[1].Level))
	assert.Equal(t, 2.9, levels[1].Depth)
}

func TestReadAssociations_LegacyColumns(t *testing.T) {
	in := "code_bss,nom_de_piezometre,station_id,station_name,piézomètre_lat,piézomètre_lon,station_lat,station_lon\n" +
		"BSS1,Lattes,34154001,MONTPELLIER-AEROPORT,43.6,3.9,43.61,3.91\n"

	assocs, err := ReadAssociations(strings.NewReader(in), "piezometres_association_stations.csv")
	require.NoError(t, err)
	require.Len(t, assocs, 1)
	assert.Equal(t, "MONTPELLIER-AEROPORT", assocs[0].Station.Name)
	assert.InDelta(t, domain.HaversineKm(43.6, 3.9, 43.61, 3.91), assocs[0].DistanceKm, 1e-12)
}

func fixtureRun() domain.Run {
	near := domain.Association{
		Sensor: domain.Sensor{
			ID: "BSS1", Name: "Lattes", StartDate: "2020-01-01", EndDate: "2020-01-10",
			MeasurementCount: 10, Geo: domain.Geo{Lat: 43.6, Lon: 3.9},
		},
		Station: domain.Station{ID: "34154001", Name: "MONTPELLIER-AEROPORT", Geo: domain.Geo{Lat: 43.61, Lon: 3.91}},
	}
	near.DistanceKm = near.Sensor.Geo.DistanceKm(near.Station.Geo)
	return domain.Run{
		ID:           "run-1",
		Associations: []domain.Association{near},
		Consistent:   []domain.Association{near},
		Furthest:     []domain.Association{near},
	}
}

func TestSink_WritesReadableFiles(t *testing.T) {
	dir := t.TempDir()
	sink := Sink{
		AssociationsPath: filepath.Join(dir, "out", "associations.csv"),
		FurthestPath:     filepath.Join(dir, "out", "furthest.csv.gz"),
	}
	run := fixtureRun()

	require.NoError(t, sink.Load(context.Background(), run))

	back, err := readPath(sink.AssociationsPath, ReadAssociations)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, run.Associations[0].Sensor, back[0].Sensor)
	assert.Equal(t, run.Associations[0].Station, back[0].Station)

	raw, err := os.ReadFile(sink.AssociationsPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), strings.Join(AssociationHeader, ",")+"\n"))

	f, err := os.Open(sink.FurthestPath)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(content), ",distance_km\n")

	_, err = os.Stat(filepath.Join(dir, "out", "consistent.csv"))
	assert.True(t, os.IsNotExist(err), "empty path is skipped")
}

func TestSource_Extract(t *testing.T) {
	dir := t.TempDir()
	sensorsPath := filepath.Join(dir, "piezo.csv.gz")
	stationsPath := filepath.Join(dir, "stations.csv")

	w, err := createFile(sensorsPath)
	require.NoError(t, err)
	_, err = io.WriteString(w, hubeauSensors)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(stationsPath, []byte("Id_station,Nom_usuel,Latitude,Longitude\n1,A,43.61,3.91\n"), 0o600))

	sensors, stations, err := Source{SensorsPath: sensorsPath, StationsPath: stationsPath}.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, sensors, 2)
	assert.Len(t, stations, 1)

	_, _, err = Source{SensorsPath: filepath.Join(dir, "missing.csv"), StationsPath: stationsPath}.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read sensors")
}

func TestWritePrepared(t *testing.T) {
	o := series.Observation{
		SensorID: "BSS1", SensorName: "Lattes", StationName: "SETE",
		Date:  time.Date(2023, time.March, 2, 0, 0, 0, 0, time.UTC),
		Level: 0.5, Depth: 3, RR: 4, TX: 15, TN: 5, TM: 10,
		RainClass: series.RainLight, LevelClass: series.LevelHigh,
		Features: &series.Features{
			Rainy:      true,
			ShowerType: series.ShowerModerate,
			RainSum:    map[int]float64{3: 4, 7: 4, 15: 4},
			RainyDays:  map[int]int{3: 1, 7: 1, 15: 1},
			Lags:       []series.Lag{{RR: 0, TX: 14, TN: math.NaN()}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePrepared(&buf, []series.Observation{o}, 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	header := strings.Split(lines[0], ",")
	assert.Equal(t, PreparedHeader(2), header)
	assert.Equal(t, "TN_lag_2", header[len(header)-1])
	assert.Equal(t,
		"BSS1,2023-03-02,0.5,3,Lattes,SETE,4,15,5,10,light,high,true,moderate,4,4,4,1,1,1,0,14,,,,",
		lines[1])
}

func TestWriteObservations(t *testing.T) {
	var buf bytes.Buffer
	err := WriteObservations(&buf, []series.Observation{{
		SensorID: "BSS1", SensorName: "Lattes", StationName: "SETE",
		Date:  time.Date(2023, time.March, 2, 0, 0, 0, 0, time.UTC),
		Level: 0.5, Depth: math.NaN(), RR: 0, TX: 15.25, TN: -1, TM: 7,
	}})
	require.NoError(t, err)
	assert.Equal(t,
		strings.Join(ObservationHeader, ",")+"\nBSS1,2023-03-02,0.5,,Lattes,SETE,0,15.25,-1,7\n",
		buf.String())
}
