package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/observability"
	"github.com/couchcryptid/piezo-meteo-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSensorSource struct {
	sensors []domain.Sensor
	err     error
}

func (m *mockSensorSource) ExtractSensors(_ context.Context) ([]domain.Sensor, error) {
	return m.sensors, m.err
}

type mockSensorSink struct {
	sensors []domain.Sensor
	err     error
}

func (m *mockSensorSink) LoadSensors(_ context.Context, sensors []domain.Sensor) error {
	m.sensors = sensors
	return m.err
}

func listedSensor(id, dept, body, start string, count int) domain.Sensor {
	return domain.Sensor{
		ID: id, Department: dept, AquiferBody: body,
		StartDate: start, EndDate: "2024-01-01", MeasurementCount: count,
		Geo: domain.Geo{Lat: 43.6, Lon: 3.9},
	}
}

func TestSelectJob_Run(t *testing.T) {
	src := &mockSensorSource{sensors: []domain.Sensor{
		listedSensor("recent", "Hérault", "Alluvions du Lez", "2020-01-01", 1400),
		listedSensor("old", "Hérault", "Alluvions du Lez", "2001-01-01", 8000),
		listedSensor("karst", "Hérault", "Calcaires du pli de Montpellier", "2010-01-01", 5000),
		listedSensor("gard", "Gard", "Alluvions du Gardon", "2001-01-01", 8000),
	}}
	sink := &mockSensorSink{}
	metrics := observability.NewMetricsForTesting()

	job := pipeline.NewSelectJob(src, sink, domain.DefaultDepartment, discardLogger(), metrics)
	n, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	require.Len(t, sink.sensors, 2)
	assert.Equal(t, "old", sink.sensors[0].ID)
	assert.Equal(t, "karst", sink.sensors[1].ID)
	assert.InDelta(t, 4, value(t, metrics.SensorsRead), 0)
	assert.InDelta(t, 2, value(t, metrics.SensorsKept), 0)
}

func TestSelectJob_Run_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     *mockSensorSource
		sink    *mockSensorSink
		wantErr string
	}{
		{
			name:    "extract",
			src:     &mockSensorSource{err: errors.New(`missing column "code_bss"`)},
			sink:    &mockSensorSink{},
			wantErr: "extract listing",
		},
		{
			name:    "load",
			src:     &mockSensorSource{sensors: []domain.Sensor{listedSensor("a", "Hérault", "x", "2020-01-01", 1)}},
			sink:    &mockSensorSink{err: errors.New("disk full")},
			wantErr: "load selection: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetricsForTesting()
			job := pipeline.NewSelectJob(tt.src, tt.sink, domain.DefaultDepartment, discardLogger(), metrics)

			n, err := job.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Zero(t, n)
			assert.InDelta(t, 0, value(t, metrics.SensorsKept), 0)
		})
	}
}
