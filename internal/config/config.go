package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BBox represents a geographic bounding box filter
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Overlaps checks if a lon/lat rectangle touches the bounding box
func (b *BBox) Overlaps(minLon, minLat, maxLon, maxLat float64) bool {
	if !b.IsSet {
		return true
	}
	return maxLon >= b.MinLon && minLon <= b.MaxLon && maxLat >= b.MinLat && minLat <= b.MaxLat
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// DatabaseConfig holds PostgreSQL/PostGIS connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`

	// Applied to the session running the spatial-linking pass.
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ImportConfig holds settings for the import pipeline
type ImportConfig struct {
	BatchSize     int    `yaml:"batch_size"`
	BBoxFilter    string `yaml:"bbox"`
	CreateTables  bool   `yaml:"create_tables"`
	CreateIndexes bool   `yaml:"create_indexes"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"`
}

// HTTPConfig holds settings for serve mode
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Config holds the global configuration for the importer
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`

	MetricsInterval time.Duration `yaml:"metrics_interval"`

	// Parsed form of Import.BBoxFilter, populated by Finalize
	BBox *BBox `yaml:"-"`
}

// DefaultBatchSize is the number of features accumulated per bulk insert
const DefaultBatchSize = 500

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			Name:             "geoimport",
			User:             "postgres",
			Password:         "",
			Schema:           "public",
			SSLMode:          "disable",
			MaxConns:         8,
			StatementTimeout: 10 * time.Minute,
		},
		Import: ImportConfig{
			BatchSize:     DefaultBatchSize,
			CreateIndexes: true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8088",
			ShutdownTimeout: 10 * time.Second,
		},
		MetricsInterval: 30 * time.Second,
	}
}

// Load reads a YAML config file over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.Name, c.Database.User, c.Database.SSLMode,
	)
	if c.Database.Password != "" {
		connStr += fmt.Sprintf(" password=%s", c.Database.Password)
	}
	return connStr
}

// Finalize parses derived fields and checks that the configuration is valid
func (c *Config) Finalize() error {
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("max_conns must be at least 1")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	bbox, err := ParseBBox(c.Import.BBoxFilter)
	if err != nil {
		return err
	}
	c.BBox = bbox

	return nil
}
