package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	// Attendance backend API.
	APIBaseURL string

	// Session persistence: "file" or "redis".
	SessionBackend string
	SessionFile    string
	RedisAddr      string

	// Camera device (IP camera snapshot endpoint).
	CameraURL   string
	JPEGQuality int

	// Location source: "http" (gpsd-style endpoint) or "static".
	GeoMode    string
	GeoURL     string
	GeoTimeout time.Duration
	StaticLat  float64
	StaticLon  float64

	// Expected station position, used only for drift warnings.
	SiteLat     float64
	SiteLon     float64
	SiteRadiusM float64

	HistoryDBPath string
	ExportDir     string

	RateLimitPerMin int
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() App {
	_ = godotenv.Load()

	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:5000/api"),
		SessionBackend:  getEnv("SESSION_BACKEND", "file"),
		SessionFile:     getEnv("SESSION_FILE", "kiosk-session.json"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		CameraURL:       getEnv("CAMERA_URL", "http://localhost:8081/snapshot.jpg"),
		JPEGQuality:     intEnv("JPEG_QUALITY", 90),
		GeoMode:         getEnv("GEO_MODE", "static"),
		GeoURL:          getEnv("GEO_URL", "http://localhost:2948/fix"),
		GeoTimeout:      durationEnv("GEO_TIMEOUT", 10*time.Second),
		StaticLat:       floatEnv("STATIC_LAT", 0),
		StaticLon:       floatEnv("STATIC_LON", 0),
		SiteLat:         floatEnv("SITE_LAT", 0),
		SiteLon:         floatEnv("SITE_LON", 0),
		SiteRadiusM:     floatEnv("SITE_RADIUS_M", 0),
		HistoryDBPath:   getEnv("HISTORY_DB_PATH", "kiosk-history.db"),
		ExportDir:       getEnv("EXPORT_DIR", "."),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func floatEnv(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var parsed float64
		if _, err := fmt.Sscanf(val, "%g", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid float for %s, using fallback %g", key, fallback)
	}
	return fallback
}
