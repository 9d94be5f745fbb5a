package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// CORS policy for the HTTP surface. "*" allows any origin (the
	// original deployment default); WS origin policy is configured
	// separately on the gateway.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("BEACON_HTTP_ADDR", "0.0.0.0:2000"),
		LogLevel:  EnvString("BEACON_LOG_LEVEL", "info"),
		LogFormat: EnvString("BEACON_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("BEACON_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("BEACON_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("BEACON_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("BEACON_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("BEACON_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("BEACON_DATABASE_URL", ""),
		DBSchema:    EnvString("BEACON_DB_SCHEMA", "beacon"),
		DBMaxConns:  EnvInt32("BEACON_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("BEACON_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("BEACON_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvCSV("BEACON_CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowCredentials: EnvBool("BEACON_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("BEACON_CORS_MAX_AGE_SECONDS", 600),
	}
}
