package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/couchcryptid/piezo-meteo-etl/internal/series"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all job and service settings, populated from environment variables.
type Config struct {
	// Listing selection. Its output is SensorsCSV.
	SensorListingCSV string
	SelectDepartment string

	// Association inputs and outputs.
	SensorsCSV      string
	StationsCSV     string
	AssociationsCSV string
	ConsistentCSV   string
	FurthestCSV     string
	FurthestCount   int
	SpatialIndex    bool

	// Series preparation.
	LevelsCSV       string
	WeatherCSV      []string
	ObservationsCSV string
	PreparedCSV     string
	MaxLag          int
	Normalization   series.Scaling
	OutlierSigma    float64

	// Optional sinks. Each is disabled when left unset.
	SQLitePath   string
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	MQTTBroker   string
	MQTTClientID string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	furthest, err := parseInt("FURTHEST_COUNT", domain.DefaultFurthestCount, 0)
	if err != nil {
		return nil, err
	}
	maxLag, err := parseInt("MAX_LAG", series.DefaultMaxLag, 0)
	if err != nil {
		return nil, err
	}
	sigma, err := parsePositiveFloat("OUTLIER_SIGMA", series.DefaultOutlierSigma)
	if err != nil {
		return nil, err
	}
	spatial, err := parseBool("SPATIAL_INDEX", false)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}
	scaling, err := series.ParseScaling(sharedcfg.EnvOrDefault("NORMALIZATION", string(series.ScalingZScore)))
	if err != nil {
		return nil, fmt.Errorf("invalid NORMALIZATION: %w", err)
	}

	cfg := &Config{
		SensorListingCSV: sharedcfg.EnvOrDefault("SENSOR_LISTING_CSV", "stations_piezometres.csv"),
		SelectDepartment: sharedcfg.EnvOrDefault("SELECT_DEPARTMENT", domain.DefaultDepartment),

		SensorsCSV:      sharedcfg.EnvOrDefault("SENSORS_CSV", "selected_piezometres.csv"),
		StationsCSV:     sharedcfg.EnvOrDefault("STATIONS_CSV", "stations_meteo.csv"),
		AssociationsCSV: sharedcfg.EnvOrDefault("ASSOCIATIONS_CSV", "piezometres_association_stations.csv"),
		ConsistentCSV:   sharedcfg.EnvOrDefault("CONSISTENT_CSV", "piezometres_association_consistent.csv"),
		FurthestCSV:     sharedcfg.EnvOrDefault("FURTHEST_CSV", "piezometres_association_stations_cleaned.csv"),
		FurthestCount:   furthest,
		SpatialIndex:    spatial,

		LevelsCSV:       sharedcfg.EnvOrDefault("LEVELS_CSV", "chroniques_piezo.csv"),
		WeatherCSV:      splitList(sharedcfg.EnvOrDefault("WEATHER_CSV", "filtered_stations.csv")),
		ObservationsCSV: sharedcfg.EnvOrDefault("OBSERVATIONS_CSV", "combined_chroniques.csv"),
		PreparedCSV:     sharedcfg.EnvOrDefault("PREPARED_CSV", "data_prepared.csv"),
		MaxLag:          maxLag,
		Normalization:   scaling,
		OutlierSigma:    sigma,

		SQLitePath:   os.Getenv("SQLITE_PATH"),
		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "piezometre-associations"),
		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTClientID: sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "piezo-etl"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.SensorsCSV == "" {
		return nil, errors.New("SENSORS_CSV is required")
	}
	if cfg.StationsCSV == "" {
		return nil, errors.New("STATIONS_CSV is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// PrepareOptions returns the series preparation settings.
func (c *Config) PrepareOptions() series.Options {
	return series.Options{
		OutlierSigma: c.OutlierSigma,
		Scaling:      c.Normalization,
		MaxLag:       c.MaxLag,
	}
}

func parseInt(key string, def, minValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < minValue {
		return 0, fmt.Errorf("invalid %s: %q (must be an integer >= %d)", key, s, minValue)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q (must be a positive number)", key, s)
	}
	return f, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
