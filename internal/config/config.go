package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
// An empty Endpoint disables archiving of original uploads.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RedisConfig holds the settings of the key-value store backing the rate limiter.
// An empty Addr falls back to the in-process limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MongoConfig holds the settings of the page view audit trail.
// An empty URI disables the audit trail.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// AuthConfig holds the verification settings for bearer tokens issued by the auth service.
type AuthConfig struct {
	JWTSecret string
	AdminRole string
}

// RenderConfig controls the conversion pipeline and the on-disk page store.
type RenderConfig struct {
	PrivateRoot    string
	OriginalsDir   string
	RenderedDir    string
	PdfinfoBin     string
	PdftoppmBin    string
	SofficeBin     string
	DPI            int
	PageWorkers    int
	CommandTimeout time.Duration
	IngestWorkers  int
	IngestQueue    int
	IngestTimeout  time.Duration
	// StaleAfter is how long a document may stay processing before it is failed.
	StaleAfter     time.Duration
	StaleSweep     time.Duration
}

// RateLimitConfig controls request throttling per client.
type RateLimitConfig struct {
	RPS    float64
	Burst  int
	Window time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	TimeZone  string
	LogLevel  string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	Auth      AuthConfig
	Render    RenderConfig
	RateLimit RateLimitConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	root := getEnv("PRIVATE_ROOT", "private")
	ingestTimeout := getEnvDuration("INGEST_TIMEOUT", 15*time.Minute)
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		TimeZone: getEnv("APP_TIMEZONE", "UTC"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Database:   getEnv("MONGODB_DATABASE", "docvault"),
			Collection: getEnv("MONGODB_VIEWS_COLLECTION", "document_views"),
			Timeout:    getEnvDuration("MONGODB_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			AdminRole: getEnv("AUTH_ADMIN_ROLE", "admin"),
		},
		Render: RenderConfig{
			PrivateRoot:    root,
			OriginalsDir:   getEnv("ORIGINALS_DIR", filepath.Join(root, "original")),
			RenderedDir:    getEnv("RENDERED_DIR", filepath.Join(root, "rendered")),
			PdfinfoBin:     getEnv("PDFINFO_BIN", "pdfinfo"),
			PdftoppmBin:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			SofficeBin:     getEnv("SOFFICE_BIN", "soffice"),
			DPI:            getEnvInt("RENDER_DPI", 150),
			PageWorkers:    getEnvInt("RENDER_PAGE_WORKERS", 0),
			CommandTimeout: getEnvDuration("RENDER_COMMAND_TIMEOUT", 60*time.Second),
			IngestWorkers:  getEnvInt("INGEST_WORKERS", 2),
			IngestQueue:    getEnvInt("INGEST_QUEUE_SIZE", 32),
			IngestTimeout:  ingestTimeout,
			StaleAfter:     getEnvDuration("INGEST_STALE_AFTER", 2*ingestTimeout),
			StaleSweep:     getEnvDuration("INGEST_STALE_SWEEP", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RPS:    getEnvFloat("RATE_LIMIT_RPS", 100.0/60.0),
			Burst:  getEnvInt("RATE_LIMIT_BURST", 20),
			Window: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

// Location resolves the configured time zone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s", "2m") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
