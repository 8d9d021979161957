// Package config wczytuje konfigurację serwera z opcjonalnego pliku YAML
// i nadpisuje ją zmiennymi środowiskowymi.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"digilib/internal/lending"
	"digilib/internal/models"
)

// DefaultPath to plik konfiguracji czytany gdy DIGILIB_CONFIG nie jest ustawione
const DefaultPath = "config.yaml"

// Sterowniki magazynu
const (
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

// Config to pełna konfiguracja serwera
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	StoreDriver string `yaml:"storeDriver"`
	SQLitePath  string `yaml:"sqlitePath"`
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	EventStream   string `yaml:"eventStream"`

	JWTSecret               string `yaml:"jwtSecret"`
	FirebaseCredentialsPath string `yaml:"firebaseCredentialsPath"`
	FirebaseCredentialsJSON string `yaml:"firebaseCredentialsJSON"`

	LoanDays          int           `yaml:"loanDays"`
	FineRatePerDay    int64         `yaml:"fineRatePerDay"` // W groszach
	ExtensionDays     int           `yaml:"extensionDays"`
	HoldPolicy        string        `yaml:"holdPolicy"`
	HoldGraceDays     int           `yaml:"holdGraceDays"`
	HoldSweepInterval time.Duration `yaml:"holdSweepInterval"`

	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

// Default zwraca konfigurację domyślną
func Default() Config {
	p := lending.DefaultPolicy()
	return Config{
		Port:              "8080",
		LogLevel:          "info",
		StoreDriver:       DriverMemory,
		SQLitePath:        "digilib.db",
		EventStream:       "digilib:events",
		LoanDays:          p.LoanDays,
		FineRatePerDay:    int64(p.FineRatePerDay),
		ExtensionDays:     p.ExtensionDays,
		HoldPolicy:        string(p.HoldPolicy),
		HoldGraceDays:     p.HoldGraceDays,
		HoldSweepInterval: time.Hour,
		RateLimit:         120,
		RateWindow:        time.Minute,
	}
}

// Load czyta plik path (pusty oznacza DIGILIB_CONFIG albo config.yaml).
// Brak pliku nie jest błędem. Zmienne środowiskowe mają pierwszeństwo.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = os.Getenv("DIGILIB_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("błąd parsowania konfiguracji %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("błąd odczytu konfiguracji: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"PORT":                      &cfg.Port,
		"LOG_LEVEL":                 &cfg.LogLevel,
		"STORE_DRIVER":              &cfg.StoreDriver,
		"SQLITE_PATH":               &cfg.SQLitePath,
		"DATABASE_URL":              &cfg.DatabaseURL,
		"REDIS_ADDR":                &cfg.RedisAddr,
		"REDIS_PASSWORD":            &cfg.RedisPassword,
		"EVENT_STREAM":              &cfg.EventStream,
		"JWT_SECRET":                &cfg.JWTSecret,
		"FIREBASE_CREDENTIALS_PATH": &cfg.FirebaseCredentialsPath,
		"FIREBASE_CREDENTIALS_JSON": &cfg.FirebaseCredentialsJSON,
		"HOLD_POLICY":               &cfg.HoldPolicy,
	}
	for name, dst := range str {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"LOAN_DAYS":       &cfg.LoanDays,
		"EXTENSION_DAYS":  &cfg.ExtensionDays,
		"HOLD_GRACE_DAYS": &cfg.HoldGraceDays,
		"RATE_LIMIT":      &cfg.RateLimit,
	}
	for name, dst := range ints {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s musi być liczbą całkowitą: %w", name, err)
		}
		*dst = n
	}

	if v := strings.TrimSpace(os.Getenv("FINE_RATE_PER_DAY")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: FINE_RATE_PER_DAY musi być liczbą całkowitą: %w", err)
		}
		cfg.FineRatePerDay = n
	}

	durations := map[string]*time.Duration{
		"RATE_WINDOW":         &cfg.RateWindow,
		"HOLD_SWEEP_INTERVAL": &cfg.HoldSweepInterval,
	}
	for name, dst := range durations {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*dst = d
	}
	return nil
}

// Policy zwraca regulamin wypożyczeń
func (c Config) Policy() lending.Policy {
	return lending.Policy{
		LoanDays:       c.LoanDays,
		FineRatePerDay: models.Money(c.FineRatePerDay),
		ExtensionDays:  c.ExtensionDays,
		HoldPolicy:     lending.HoldPolicy(c.HoldPolicy),
		HoldGraceDays:  c.HoldGraceDays,
	}
}

// Validate sprawdza spójność konfiguracji
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port jest wymagany")
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: sqlitePath jest wymagane dla sterownika sqlite")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: databaseURL jest wymagane dla sterownika postgres (DATABASE_URL)")
		}
	case DriverFirestore:
		if c.FirebaseCredentialsPath == "" && c.FirebaseCredentialsJSON == "" {
			return errors.New("config: sterownik firestore wymaga FIREBASE_CREDENTIALS_PATH albo FIREBASE_CREDENTIALS_JSON")
		}
	default:
		return fmt.Errorf("config: nieznany sterownik magazynu %q", c.StoreDriver)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.HoldSweepInterval <= 0 {
		return errors.New("config: holdSweepInterval musi być dodatni")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("config: rateLimit i rateWindow muszą być dodatnie")
	}
	return nil
}
