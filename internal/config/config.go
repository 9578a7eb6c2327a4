package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// devJWTSecret is only acceptable outside of production.
const devJWTSecret = "dev-secret-change-in-production"

// Config holds everything the service reads from its environment.
type Config struct {
	Port       string
	Env        string
	GinLogging bool

	// PublicBaseURL is the address clients use to reach the service. Links in emails point
	// there. When empty, the Host header of the request is used.
	PublicBaseURL string
	// TrustedProxies lists the proxy addresses or CIDRs whose X-Forwarded-For header is
	// believed. Empty means the peer address is the client.
	TrustedProxies []string

	Database Database
	Tokens   Tokens
	Mail     Mail
	Storage  Storage
	Limits   Limits
}

// Database holds the MySQL connection parameters.
type Database struct {
	Host     string
	User     string
	Password string
	Name     string
}

// Tokens configures signing and lifetimes of the issued JWTs.
type Tokens struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	EmailTTL   time.Duration
}

// Mail configures the SMTP relay used for confirmation emails.
type Mail struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Storage configures the S3 compatible bucket holding avatars.
type Storage struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicBaseURL   string
	AvatarFolder    string
}

// Limits configures request throttling of the contact list. An empty RedisURL selects the
// in-process limiter.
type Limits struct {
	RedisURL string
	Times    int
	Window   time.Duration
}

// Load builds a Config from environment variables, falling back to development defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		GinLogging: !strings.EqualFold(os.Getenv("GIN_LOGGING"), "off"),

		PublicBaseURL:  os.Getenv("PUBLIC_BASE_URL"),
		TrustedProxies: getList("TRUSTED_PROXIES"),

		Database: Database{
			Host:     getEnv("DBHOST", "localhost:3306"),
			User:     getEnv("DBUSER", "root"),
			Password: os.Getenv("DBPWD"),
			Name:     getEnv("DBNAME", "contacts"),
		},
		Tokens: Tokens{
			Secret:     getEnv("JWT_SECRET", devJWTSecret),
			AccessTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			EmailTTL:   getDuration("EMAIL_TOKEN_TTL", 7*24*time.Hour),
		},
		Mail: Mail{
			Server:   getEnv("MAIL_SERVER", "localhost"),
			Port:     getInt("MAIL_PORT", 465),
			Username: os.Getenv("MAIL_USERNAME"),
			Password: os.Getenv("MAIL_PASSWORD"),
			From:     getEnv("MAIL_FROM", "noreply@localhost"),
			FromName: getEnv("MAIL_FROM_NAME", "Contacts API"),
		},
		Storage: Storage{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "avatars"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			UsePathStyle:    os.Getenv("S3_USE_PATH_STYLE") == "true",
			PublicBaseURL:   getEnv("AVATAR_BASE_URL", "http://localhost:9000/avatars"),
			AvatarFolder:    getEnv("AVATAR_FOLDER", "avatars"),
		},
		Limits: Limits{
			RedisURL: os.Getenv("REDIS_URL"),
			Times:    getInt("RATE_LIMIT_TIMES", 2),
			Window:   getDuration("RATE_LIMIT_WINDOW", 5*time.Second),
		},
	}

	if cfg.Env == "production" && cfg.Tokens.Secret == devJWTSecret {
		return Config{}, errors.New("JWT_SECRET must be set in production environment")
	}
	for _, proxy := range cfg.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return Config{}, fmt.Errorf("TRUSTED_PROXIES: %q is neither an IP nor a CIDR", proxy)
		}
	}
	if cfg.Limits.Times < 1 || cfg.Limits.Window <= 0 {
		return Config{}, errors.New("RATE_LIMIT_TIMES and RATE_LIMIT_WINDOW must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getList splits a comma separated variable, dropping empty entries.
func getList(key string) []string {
	var list []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
