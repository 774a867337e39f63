package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/radar-imagery/internal/radar"
	"github.com/i474232898/radar-imagery/internal/radar/nexrad"
)

var validate = validator.New()

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// CycleInterval is the fixed delay between generation cycles.
	CycleInterval time.Duration `validate:"gte=1s"`

	OutputDir string `validate:"required"`
	ImageSize int    `validate:"gte=64,lte=8192"`

	Render radar.RenderOptions

	// Stations to render, in processing order.
	Stations []radar.StationConfig `validate:"required,min=1,dive"`

	// Remote archive.
	Bucket       string        `validate:"required"`
	Region       string        `validate:"required"`
	StoreTimeout time.Duration `validate:"gte=1s"`

	LogLevel string `validate:"oneof=debug info warn warning error"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	interval, err := time.ParseDuration(getenvDefault("CYCLE_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CYCLE_INTERVAL: %w", err)
	}
	cfg.CycleInterval = interval

	timeout, err := time.ParseDuration(getenvDefault("STORE_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	cfg.StoreTimeout = timeout

	def := radar.DefaultRenderOptions()
	if cfg.Render.Floor, err = getenvFloat("REFLECTIVITY_FLOOR", def.Floor); err != nil {
		return nil, err
	}
	if cfg.Render.DisplayMin, err = getenvFloat("DISPLAY_MIN", def.DisplayMin); err != nil {
		return nil, err
	}
	if cfg.Render.DisplayMax, err = getenvFloat("DISPLAY_MAX", def.DisplayMax); err != nil {
		return nil, err
	}
	if cfg.Render.Step, err = getenvFloat("DISPLAY_STEP", def.Step); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.OutputDir = getenvDefault("OUTPUT_DIR", "static/radar")
	cfg.ImageSize = getenvInt("IMAGE_SIZE", 1024)
	cfg.Bucket = getenvDefault("NEXRAD_BUCKET", nexrad.DefaultBucket)
	cfg.Region = getenvDefault("NEXRAD_REGION", "us-east-1")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))

	table, err := stationTable(os.Getenv("STATIONS_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Stations, err = pickStations(table, os.Getenv("RADAR_STATIONS"))
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the display range.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	r := c.Render
	if r.DisplayMin >= r.DisplayMax {
		return fmt.Errorf("invalid configuration: DISPLAY_MIN %v must be below DISPLAY_MAX %v", r.DisplayMin, r.DisplayMax)
	}
	if r.Step <= 0 {
		return errors.New("invalid configuration: DISPLAY_STEP must be positive")
	}
	return nil
}

type stationsFile struct {
	Stations []radar.StationConfig `yaml:"stations"`
}

// stationTable returns the built-in stations, with entries from path added or
// replacing built-ins of the same ID.
func stationTable(path string) ([]radar.StationConfig, error) {
	table := radar.DefaultStations()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read STATIONS_FILE: %w", err)
	}
	var file stationsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse STATIONS_FILE %s: %w", path, err)
	}

	index := make(map[string]int, len(table))
	for i, st := range table {
		index[st.ID] = i
	}
	for _, st := range file.Stations {
		st.ID = strings.ToUpper(strings.TrimSpace(st.ID))
		if i, ok := index[st.ID]; ok {
			table[i] = st
			continue
		}
		index[st.ID] = len(table)
		table = append(table, st)
	}
	return table, nil
}

// pickStations selects stations from a comma-separated list of codes. An
// empty list selects the whole table.
func pickStations(table []radar.StationConfig, list string) ([]radar.StationConfig, error) {
	if strings.TrimSpace(list) == "" {
		return table, nil
	}

	var ids []string
	for _, id := range strings.Split(list, ",") {
		if id = strings.ToUpper(strings.TrimSpace(id)); id != "" {
			ids = append(ids, id)
		}
	}
	selected, unknown := radar.SelectStations(table, ids)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown stations in RADAR_STATIONS: %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
