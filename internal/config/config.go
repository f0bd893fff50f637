package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Public base URL of this API as seen by the map front-end.
	APIBaseURL string

	// Hierarchy backing store: "mongo" or "postgres"
	HierarchySource string
	MongoURI        string
	MongoDatabase   string
	// Optional unless HierarchySource is "postgres"; without it operator
	// accounts and PostGIS boundaries are unavailable.
	DatabaseURL string
	BunDebug    bool
	// Province assigned to records that carry none
	DefaultProvince string

	// Geo boundary sources per level, e.g. "kabupaten=data/geo/kab.geojson,up3=postgis:app.up3_boundaries"
	GeoSources   map[string]string
	GeoAliasFile string

	RefreshInterval time.Duration

	// Feed cache (disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FeedCacheTTL  time.Duration

	// JWT / keys
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration

	// LDAP
	LDAPServer     string
	LDAPBaseDN     string
	LDAPUserDomain string

	AllowedOrigins []string
}

// Load loads environment variables and returns a Config struct
func Load() *Config {
	_ = godotenv.Load()

	accessTTLMin, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "15"))
	refreshTTLDays, _ := strconv.Atoi(getEnv("REFRESH_TOKEN_DAYS", "10"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	allowedOrigins := strings.Split(
		getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		",",
	)

	return &Config{
		Port:              getEnv("APP_PORT", "8780"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", ""),
		APIBaseURL:        NormalizeBaseURL(getEnv("API_BASE_URL", "http://localhost:8780")),
		HierarchySource:   strings.ToLower(getEnv("HIERARCHY_SOURCE", "mongo")),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "sipeta"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		BunDebug:          getEnvAsBool("BUNDEBUG", false),
		DefaultProvince:   getEnv("DEFAULT_PROVINCE", "Aceh"),
		GeoSources:        ParseGeoSources(getEnv("GEO_SOURCES", "kabupaten=data/geo/kabupaten.geojson")),
		GeoAliasFile:      getEnv("GEO_ALIAS_FILE", ""),
		RefreshInterval:   getEnvAsDuration("REFRESH_INTERVAL", 0),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASS", ""),
		RedisDB:           redisDB,
		FeedCacheTTL:      getEnvAsDuration("FEED_CACHE_TTL", 10*time.Minute),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "keys/jwt_private.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "keys/jwt_public.pem"),
		JWTIssuer:         getEnv("JWT_ISSUER", "sipeta"),
		AccessTokenTTL:    time.Duration(accessTTLMin) * time.Minute,      // default 15m
		RefreshTokenTTL:   time.Duration(refreshTTLDays) * 24 * time.Hour, // default 10d
		LDAPServer:        getEnv("LDAP_SERVER", "ldap://localhost:10389"),
		LDAPBaseDN:        getEnv("LDAP_BASE_DN", ""),
		LDAPUserDomain:    getEnv("LDAP_USER_DOMAIN", ""),
		AllowedOrigins:    allowedOrigins,
	}
}

// NormalizeBaseURL strips one or more trailing slashes so callers can append
// "/path" without producing "//".
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// ParseGeoSources parses "level=path" pairs separated by commas. Entries
// without "=" are ignored.
func ParseGeoSources(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		level, path, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		level = strings.ToLower(strings.TrimSpace(level))
		path = strings.TrimSpace(path)
		if level == "" || path == "" {
			continue
		}
		out[level] = path
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("invalid bool for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("invalid duration for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}
