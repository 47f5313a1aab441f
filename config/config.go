package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, loaded from the environment with an
// optional .env overlay for development.
type Config struct {
	Server   Server
	Auth     Auth
	Database Database
	SMTP     SMTP
	Google   Google
	Uploads  Uploads
	Log      Log
}

type Log struct {
	Env   string
	Level string
}

type Server struct {
	Host    string
	Port    int
	BaseURL string
}

func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Auth struct {
	SigningKey           string
	SigningMethod        string
	ContextKey           string
	TokenExpiration      int
	AdminTokenExpiration int
	TokenLookup          string
	AuthScheme           string
	Issuer               string
	Audience             []string
	AutoApproveOnVerify  bool
}

// GetSigningKey and friends satisfy the root auth Config interface.
func (a Auth) GetSigningKey() string { return a.SigningKey }
func (a Auth) GetSigningMethod() string { return a.SigningMethod }
func (a Auth) GetContextKey() string { return a.ContextKey }
func (a Auth) GetTokenExpiration() int { return a.TokenExpiration }
func (a Auth) GetAdminTokenExpiration() int { return a.AdminTokenExpiration }
func (a Auth) GetTokenLookup() string { return a.TokenLookup }
func (a Auth) GetAuthScheme() string { return a.AuthScheme }
func (a Auth) GetIssuer() string { return a.Issuer }
func (a Auth) GetAudience() []string { return a.Audience }

type Database struct {
	Driver                string
	Server                string
	DSN                   string
	Debug                 bool
	PingTimeoutExpression string
}

// Getters below satisfy the persistence client's config contract.
func (d Database) GetDriver() string   { return d.Driver }
func (d Database) GetServer() string   { return d.Server }
func (d Database) GetDatabase() string { return d.DSN }
func (d Database) GetDSN() string      { return d.DSN }
func (d Database) GetDebug() bool      { return d.Debug }

// GetOtelIdentifier returns empty, which disables the persistence
// client's OpenTelemetry query hook.
func (d Database) GetOtelIdentifier() string { return "" }

func (d Database) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(d.PingTimeoutExpression)
	if err != nil {
		return 5 * time.Second
	}
	return dur
}

type SMTP struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string
	InsecureSkipVerify bool
}

type Google struct {
	ClientID string
}

type Uploads struct {
	Root string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := &Config{
		Server: Server{
			Host:    getEnv("HOST", "0.0.0.0"),
			Port:    getEnvInt("PORT", 5000),
			BaseURL: getEnv("BASE_URL", "http://localhost:5000"),
		},
		Auth: Auth{
			SigningKey:    os.Getenv("JWT_SECRET"),
			SigningMethod: getEnv("JWT_SIGNING_METHOD", "HS256"),
			ContextKey:    getEnv("JWT_CONTEXT_KEY", "user"),
			// user tokens live 7 days, admin tokens 1 day, both in hours
			TokenExpiration:      getEnvInt("TOKEN_EXPIRATION_HOURS", 168),
			AdminTokenExpiration: getEnvInt("ADMIN_TOKEN_EXPIRATION_HOURS", 24),
			TokenLookup:          getEnv("JWT_TOKEN_LOOKUP", "header:Authorization"),
			AuthScheme:           getEnv("JWT_AUTH_SCHEME", "Bearer"),
			Issuer:               getEnv("JWT_ISSUER", "workisready"),
			Audience:             getEnvList("JWT_AUDIENCE"),
			AutoApproveOnVerify:  getEnvBool("AUTO_APPROVE_ON_EMAIL_VERIFY", true),
		},
		Database: Database{
			Driver:                getEnv("DB_DRIVER", "sqlite"),
			Server:                os.Getenv("DB_SERVER"),
			DSN:                   getEnv("DB_DSN", "file:marketplace.db?cache=shared&_pragma=foreign_keys(1)"),
			Debug:                 getEnvBool("DB_DEBUG", false),
			PingTimeoutExpression: getEnv("DB_PING_TIMEOUT", "5s"),
		},
		SMTP: SMTP{
			Host:               os.Getenv("SMTP_HOST"),
			Port:               getEnvInt("SMTP_PORT", 587),
			From:               os.Getenv("SMTP_FROM"),
			User:               os.Getenv("SMTP_USER"),
			Pass:               os.Getenv("SMTP_PASS"),
			TLSMode:            getEnv("SMTP_TLS_MODE", "auto"),
			InsecureSkipVerify: getEnvBool("SMTP_INSECURE_SKIP_VERIFY", false),
		},
		Google: Google{
			ClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		},
		Uploads: Uploads{
			Root: getEnv("UPLOADS_ROOT", "uploads"),
		},
		Log: Log{
			Env:   getEnv("LOG_ENV", "dev"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Auth.SigningKey == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
