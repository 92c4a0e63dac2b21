package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds process-wide settings read from the environment (and .env).
type Config struct {
	Port         string
	DBDriver     string
	DBPath       string
	DatabaseURL  string
	SeedPath     string
	Provider     string
	ORSKey       string
	ORSBaseURL   string
	Country      string
	NominatimURL string
	OSRMURL      string
	MockFixture  string
	ETALimit     int
	ETAWindow    time.Duration
	Parallelism  int
	DefaultStart string

	// SessionIdleTTL is how long an untouched run keeps its planning session.
	SessionIdleTTL time.Duration
}

// LoadDotEnv reads .env into the process environment when present.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found (using environment variables)")
	}
}

// Load assembles a Config from the environment, applying defaults.
func Load() Config {
	return Config{
		Port:         Get("PORT", "8080"),
		DBDriver:     Get("DB_DRIVER", "sqlite"),
		DBPath:       Get("DB_PATH", "data/app.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SeedPath:     Get("SEED_PATH", "data/seeds/runs.json"),
		Provider:     Get("ORACLE_PROVIDER", "ors"),
		ORSKey:       os.Getenv("ORS_API_KEY"),
		ORSBaseURL:   os.Getenv("ORS_BASE_URL"),
		Country:      os.Getenv("GEOCODE_COUNTRY"),
		NominatimURL: os.Getenv("NOMINATIM_BASE_URL"),
		OSRMURL:      os.Getenv("OSRM_BASE_URL"),
		MockFixture:  Get("MOCK_FIXTURE", "data/seeds/oracle.json"),
		ETALimit:     GetInt("ETA_RATE_LIMIT", 50),
		ETAWindow:    GetDuration("ETA_RATE_WINDOW", time.Minute),
		Parallelism:  GetInt("SEQUENCER_PARALLELISM", 1),
		DefaultStart: Get("DEFAULT_START", "09:00"),

		SessionIdleTTL: GetDuration("SESSION_IDLE_TTL", 30*time.Minute),
	}
}

// StartOn returns the wall-clock time hhmm ("09:00") on day's date in
// day's location. Invalid input falls back to 09:00.
func StartOn(day time.Time, hhmm string) time.Time {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		log.Warn().Str("value", hhmm).Msg("invalid start time, using 09:00")
		t = time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC)
	}

	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	v := Get(key, "")
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer setting, using default")
		return fallback
	}
	return n
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	v := Get(key, "")
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration setting, using default")
		return fallback
	}
	return d
}
