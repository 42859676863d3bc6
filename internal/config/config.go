// Package config loads the ontologycore configuration: defaults, then an
// optional YAML file, then ONTOLOGYCORE_* environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ontologycore/internal/blob"
	"ontologycore/internal/termcache"
	"ontologycore/internal/terminology"
)

// StorageDriver identifies a catalog backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMariaDB  StorageDriver = "mariadb"  // MariaDB / MySQL server
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ONTOLOGYCORE_"

// Config is the complete service configuration.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Blob        BlobConfig        `yaml:"blob"`
	Terminology TerminologyConfig `yaml:"terminology"`
	Events      EventsConfig      `yaml:"events"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
}

// StorageConfig selects the catalog backend.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	MariaDBDSN  string        `yaml:"mariadb_dsn"`
}

// BlobConfig selects where ontology dumps are read from.
type BlobConfig struct {
	Driver blob.Driver   `yaml:"driver"`
	FSRoot string        `yaml:"fs_root"`
	S3     blob.S3Config `yaml:"s3"`
}

// TerminologyConfig configures the remote terminology service and the
// term cache in front of it.
type TerminologyConfig struct {
	APIURL         string        `yaml:"api_url"`
	SelectEndpoint string        `yaml:"select_endpoint"`
	SearchEndpoint string        `yaml:"search_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheSize      int           `yaml:"cache_size"`
	Ontologies     []string      `yaml:"ontologies"`
}

// EventsConfig configures NATS forwarding. An empty URL disables it.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: StorageSQLite, SQLitePath: "ontologycore.db"},
		Blob:    BlobConfig{Driver: blob.DriverFilesystem, FSRoot: "./dumps"},
		Terminology: TerminologyConfig{
			APIURL:         terminology.DefaultAPIURL,
			SelectEndpoint: terminology.DefaultSelectEndpoint,
			SearchEndpoint: terminology.DefaultSearchEndpoint,
			Timeout:        terminology.DefaultTimeout,
			CacheSize:      termcache.DefaultLimit,
			Ontologies:     append([]string(nil), terminology.DefaultOntologies...),
		},
		Events:  EventsConfig{Subject: "ontologycore.events"},
		Metrics: MetricsConfig{Namespace: "ontologycore"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load layers the file at path (skipped when empty) and the process
// environment over the defaults, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ONTOLOGYCORE_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "STORAGE_DRIVER"); ok {
		c.Storage.Driver = StorageDriver(v)
	}
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("MARIADB_DSN", &c.Storage.MariaDBDSN)

	if v, ok := lookup(EnvPrefix + "BLOB_DRIVER"); ok {
		c.Blob.Driver = blob.Driver(v)
	}
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	if v, ok := lookup(EnvPrefix + "BLOB_S3_PATH_STYLE"); ok {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}

	str("TERMINOLOGY_API_URL", &c.Terminology.APIURL)
	str("TERMINOLOGY_SELECT_ENDPOINT", &c.Terminology.SelectEndpoint)
	str("TERMINOLOGY_SEARCH_ENDPOINT", &c.Terminology.SearchEndpoint)
	if v, ok := lookup(EnvPrefix + "TERMINOLOGY_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTERMINOLOGY_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Terminology.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "TERMINOLOGY_CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTERMINOLOGY_CACHE_SIZE: %w", EnvPrefix, err)
		}
		c.Terminology.CacheSize = n
	}
	if v, ok := lookup(EnvPrefix + "TERMINOLOGY_ONTOLOGIES"); ok {
		c.Terminology.Ontologies = splitList(v)
	}

	str("NATS_URL", &c.Events.NATSURL)
	str("NATS_SUBJECT", &c.Events.Subject)
	str("METRICS_NAMESPACE", &c.Metrics.Namespace)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	return nil
}

// Validate rejects unknown drivers and unusable limits.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageMariaDB:
	default:
		return fmt.Errorf("unknown storage driver %s", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %s", c.Blob.Driver)
	}
	if c.Terminology.CacheSize <= 0 {
		return fmt.Errorf("terminology.cache_size must be positive, got %d", c.Terminology.CacheSize)
	}
	if c.Terminology.Timeout < 0 {
		return fmt.Errorf("terminology.timeout must not be negative")
	}
	if len(c.Terminology.Ontologies) == 0 {
		return fmt.Errorf("terminology.ontologies must not be empty")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
