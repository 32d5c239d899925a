package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// Defaults shared by the commands.
const (
	DefaultWeatherURL = "https://api.weatherapi.com/v1/history.json"
	DefaultLocation   = "59.3293,18.0686"
	DefaultSchoolsURL = "https://data.tomelilla.se/rowstore/dataset/3617552e-4c28-4a46-9b74-ac8bbbfee33f"
)

// Database drivers.
const (
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	DriverClickHouse = "clickhouse"
	DriverMemory     = "memory"
	DriverRedis      = "redis"
)

// Common holds the logging settings every command reads.
type Common struct {
	LogLevel  string
	LogFormat string
}

// Server holds the settings of the long-running HTTP services.
type Server struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// Weather holds the WeatherAPI settings.
type Weather struct {
	Common
	APIKey       string
	APIURL       string
	Location     string
	Date         string // empty means today (UTC)
	FetchTimeout time.Duration
	DataDir      string
}

// Ingest holds the ingest API settings.
type Ingest struct {
	Weather
	Server

	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string

	// Optional raw mirror; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	RawTopic     string
}

// ClickHouse holds the ClickHouse connection settings.
type ClickHouse struct {
	Addr     []string
	Database string
	User     string
	Password string
}

// ELT holds the schools ELT job settings.
type ELT struct {
	Common
	SchoolsURL   string
	FetchTimeout time.Duration

	WarehouseDriver string
	ClickHouse      ClickHouse
	DatabaseURL     string
	SQLitePath      string

	RawDataset    string
	RawTable      string
	TargetDataset string
	TargetTable   string

	PushgatewayURL string
}

// Words holds the word service settings.
type Words struct {
	Common
	Server
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// LoadDotEnv loads a .env file into the environment when one exists.
// Variables already set take precedence.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadWeather reads the WeatherAPI settings used by weather-fetch.
func LoadWeather() (*Weather, error) {
	common := loadCommon()

	timeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	cfg := &Weather{
		Common:       common,
		APIKey:       os.Getenv("API_KEY"),
		APIURL:       envOrDefault("API_URL", DefaultWeatherURL),
		Location:     envOrDefault("LOCATION", DefaultLocation),
		Date:         os.Getenv("DATE"),
		FetchTimeout: timeout,
		DataDir:      envOrDefault("DATA_DIR", "."),
	}

	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Key: "API_KEY"}
	}
	if cfg.Date != "" {
		if _, err := time.Parse(time.DateOnly, cfg.Date); err != nil {
			return nil, &domain.ConfigError{Key: "DATE", Reason: "must be YYYY-MM-DD"}
		}
	}
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, &domain.ConfigError{Key: "API_URL", Reason: err.Error()}
	}
	return cfg, nil
}

// LoadIngest reads the ingest API settings.
func LoadIngest() (*Ingest, error) {
	weather, err := LoadWeather()
	if err != nil {
		return nil, err
	}
	server, err := loadServer(":8000")
	if err != nil {
		return nil, err
	}

	cfg := &Ingest{
		Weather:        *weather,
		Server:         server,
		DatabaseDriver: envOrDefault("DATABASE_DRIVER", DriverPostgres),
		SQLitePath:     envOrDefault("SQLITE_PATH", "weather.db"),
		KafkaBrokers:   parseBrokers(os.Getenv("KAFKA_BROKERS")),
		RawTopic:       envOrDefault("RAW_TOPIC", "raw-weather"),
	}

	switch cfg.DatabaseDriver {
	case DriverPostgres:
		dsn, err := postgresDSN()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	case DriverSQLite, DriverMemory:
	default:
		return nil, &domain.ConfigError{Key: "DATABASE_DRIVER", Reason: fmt.Sprintf("unsupported driver %q", cfg.DatabaseDriver)}
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.RawTopic == "" {
		return nil, &domain.ConfigError{Key: "RAW_TOPIC"}
	}
	return cfg, nil
}

// LoadELT reads the schools ELT job settings.
func LoadELT() (*ELT, error) {
	timeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	cfg := &ELT{
		Common:          loadCommon(),
		SchoolsURL:      envOrDefault("SCHOOLS_URL", DefaultSchoolsURL),
		FetchTimeout:    timeout,
		WarehouseDriver: envOrDefault("WAREHOUSE_DRIVER", DriverClickHouse),
		SQLitePath:      envOrDefault("SQLITE_PATH", "warehouse.db"),
		RawDataset:      envOrDefault("RAW_DATASET", "raw_data"),
		RawTable:        envOrDefault("RAW_TABLE", "sample_data"),
		TargetDataset:   envOrDefault("TARGET_DATASET", "processed_data"),
		TargetTable:     envOrDefault("TARGET_TABLE", "schools_structured"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
	}

	switch cfg.WarehouseDriver {
	case DriverClickHouse:
		cfg.ClickHouse = ClickHouse{
			Addr:     parseBrokers(envOrDefault("CLICKHOUSE_ADDR", "localhost:9000")),
			Database: envOrDefault("CLICKHOUSE_DATABASE", "default"),
			User:     envOrDefault("CLICKHOUSE_USER", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		}
		if len(cfg.ClickHouse.Addr) == 0 {
			return nil, &domain.ConfigError{Key: "CLICKHOUSE_ADDR"}
		}
	case DriverPostgres:
		dsn, err := postgresDSN()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	case DriverSQLite, DriverMemory:
	default:
		return nil, &domain.ConfigError{Key: "WAREHOUSE_DRIVER", Reason: fmt.Sprintf("unsupported driver %q", cfg.WarehouseDriver)}
	}

	for key, v := range map[string]string{
		"RAW_DATASET":    cfg.RawDataset,
		"RAW_TABLE":      cfg.RawTable,
		"TARGET_DATASET": cfg.TargetDataset,
		"TARGET_TABLE":   cfg.TargetTable,
	} {
		if !isIdentifier(v) {
			return nil, &domain.ConfigError{Key: key, Reason: "must contain only letters, digits and underscores"}
		}
	}
	if _, err := url.ParseRequestURI(cfg.SchoolsURL); err != nil {
		return nil, &domain.ConfigError{Key: "SCHOOLS_URL", Reason: err.Error()}
	}
	return cfg, nil
}

// LoadWords reads the word service settings.
func LoadWords() (*Words, error) {
	server, err := loadServer(":5001")
	if err != nil {
		return nil, err
	}

	cfg := &Words{
		Common:        loadCommon(),
		Server:        server,
		Backend:       envOrDefault("WORDS_BACKEND", DriverMemory),
		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisKey:      envOrDefault("REDIS_KEY", "words"),
	}

	if s := os.Getenv("REDIS_DB"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, &domain.ConfigError{Key: "REDIS_DB", Reason: "must be a non-negative integer"}
		}
		cfg.RedisDB = n
	}

	switch cfg.Backend {
	case DriverMemory:
	case DriverRedis:
		if cfg.RedisAddr == "" {
			return nil, &domain.ConfigError{Key: "REDIS_ADDR"}
		}
	default:
		return nil, &domain.ConfigError{Key: "WORDS_BACKEND", Reason: fmt.Sprintf("unsupported backend %q", cfg.Backend)}
	}
	return cfg, nil
}

func loadCommon() Common {
	return Common{
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}
}

func loadServer(defaultAddr string) (Server, error) {
	timeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return Server{}, err
	}
	return Server{
		HTTPAddr:        envOrDefault("HTTP_ADDR", defaultAddr),
		ShutdownTimeout: timeout,
	}, nil
}

// postgresDSN returns DATABASE_URL, or builds one from the POSTGRES_* variables.
func postgresDSN() (string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return "", &domain.ConfigError{Key: "POSTGRES_USER"}
	}
	db := os.Getenv("POSTGRES_DB")
	if db == "" {
		return "", &domain.ConfigError{Key: "POSTGRES_DB"}
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, os.Getenv("POSTGRES_PASSWORD")),
		Host:     envOrDefault("POSTGRES_HOST", "db") + ":" + envOrDefault("POSTGRES_PORT", "5432"),
		Path:     "/" + db,
		RawQuery: "sslmode=" + envOrDefault("POSTGRES_SSLMODE", "disable"),
	}
	return u.String(), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, &domain.ConfigError{Key: key, Reason: "not a duration"}
	}
	if d <= 0 {
		return 0, &domain.ConfigError{Key: key, Reason: "must be positive"}
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
