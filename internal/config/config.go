package config

import (
	"crypto/rsa"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port        string
	StoreDriver string
	DatabaseURL string
	LockTimeout time.Duration

	RedisAddress  string
	RedisPassword string
	RedisChannel  string

	JWTPrivateKey   *rsa.PrivateKey
	JWTPublicKey    *rsa.PublicKey
	SessionTokenTTL time.Duration

	CORSAllowedOrigins []string

	MaxAttempts  int
	RetryBackoff time.Duration

	LogLevel  string
	LogFormat string
}

// LoadDotEnv reads .env into the environment when the file exists. Values
// already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func Load() *Config {
	LoadDotEnv()

	privateKey, err := loadPrivateKey(getEnv("PRIVATE_KEY_PATH", "/etc/certs/private.pem"))
	if err != nil {
		panic("Failed to load private key: " + err.Error())
	}
	publicKey, err := loadPublicKey(getEnv("PUBLIC_KEY_PATH", "/etc/certs/public.pem"))
	if err != nil {
		panic("Failed to load public key: " + err.Error())
	}

	driver := getEnv("STORE_DRIVER", StoreDriverPostgres)
	dbURL := os.Getenv("DB_CONNECTION_STRING")
	switch driver {
	case StoreDriverPostgres:
		if dbURL == "" {
			panic("DB_CONNECTION_STRING environment variable is required")
		}
	case StoreDriverMemory:
	default:
		panic("STORE_DRIVER must be postgres or memory, got " + driver)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		StoreDriver: driver,
		DatabaseURL: dbURL,
		LockTimeout: getDuration("DB_LOCK_TIMEOUT", 3*time.Second),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  getEnv("REDIS_CHANNEL", "ptm-queue:notifications"),

		JWTPrivateKey:   privateKey,
		JWTPublicKey:    publicKey,
		SessionTokenTTL: getDuration("SESSION_TOKEN_TTL", 12*time.Hour),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		MaxAttempts:  getInt("SCHEDULER_MAX_ATTEMPTS", 5),
		RetryBackoff: getDuration("SCHEDULER_RETRY_BACKOFF", 25*time.Millisecond),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		panic(key + " must be a positive integer, got " + v)
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(key + " must be a duration like 3s, got " + v)
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(keyData)
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(keyData)
}
