package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Ledger backends selectable through LEDGER_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

type Config struct {
	Server    ServerConfig
	Ledger    LedgerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Sale      SaleConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Demo      DemoConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type LedgerConfig struct {
	Backend     string
	SQLitePath  string
	RedisPrefix string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type SaleConfig struct {
	MaxAttempts    int
	DefaultTaxRate string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// DemoConfig controls the sample store seeded at startup.
type DemoConfig struct {
	Seed          bool
	OwnerEmail    string
	OwnerPassword string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// IsDevelopment reports whether development-only routes should be mounted.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func Load() *Config {
	// Values in .env are exported before viper reads the environment so that
	// real environment variables still win.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LEDGER_BACKEND", BackendMemory)
	viper.SetDefault("SQLITE_PATH", "velvet-pos.db")
	viper.SetDefault("LEDGER_REDIS_PREFIX", "ledger")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("SALE_MAX_ATTEMPTS", 10)
	viper.SetDefault("SALE_DEFAULT_TAX_RATE", "0.08")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("DEMO_SEED", true)
	viper.SetDefault("DEMO_OWNER_EMAIL", "admin@velvet.com")
	viper.SetDefault("DEMO_OWNER_PASSWORD", "velvet-demo")

	return &Config{
		Server: ServerConfig{
			Port:     viper.GetString("SERVER_PORT"),
			Env:      viper.GetString("SERVER_ENV"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		Ledger: LedgerConfig{
			Backend:     strings.ToLower(viper.GetString("LEDGER_BACKEND")),
			SQLitePath:  viper.GetString("SQLITE_PATH"),
			RedisPrefix: viper.GetString("LEDGER_REDIS_PREFIX"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Sale: SaleConfig{
			MaxAttempts:    viper.GetInt("SALE_MAX_ATTEMPTS"),
			DefaultTaxRate: viper.GetString("SALE_DEFAULT_TAX_RATE"),
		},
		RateLimit: RateLimitConfig{
			Requests:      viper.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Demo: DemoConfig{
			Seed:          viper.GetBool("DEMO_SEED"),
			OwnerEmail:    viper.GetString("DEMO_OWNER_EMAIL"),
			OwnerPassword: viper.GetString("DEMO_OWNER_PASSWORD"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
