package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	RecordStoreAppwrite = "appwrite"
	RecordStoreMySQL    = "mysql"
)

// Config is built once in main and handed to constructors.
type Config struct {
	Env                string `validate:"required"`
	Port               string `validate:"required,numeric"`
	LogLevel           string
	RecordStoreDriver  string `validate:"oneof=appwrite mysql"`
	BackendURL         string `validate:"required,url"`
	AuthSecret         string `validate:"required"`
	CORSAllowedOrigins []string
	RedisAddress       string
	PubSubToken        string

	// Only the selected record store's section is validated.
	Appwrite    AppwriteConfig `validate:"-"`
	Database    DatabaseConfig `validate:"-"`
	RateLimit   RateLimitConfig
	Insight     InsightConfig
	ReportCache ReportCacheConfig

	// LoadTimeout bounds one fetch-then-derive cycle of a controller.
	LoadTimeout time.Duration `validate:"gt=0"`
	// OrderLimit caps how many order documents one load pulls; 0 means all.
	OrderLimit int `validate:"gte=0"`
}

type AppwriteConfig struct {
	Endpoint                 string `validate:"required,url"`
	ProjectId                string `validate:"required"`
	ApiKey                   string
	DatabaseId               string `validate:"required"`
	ProductsCollectionId     string `validate:"required"`
	PurchaseOrdersCollection string `validate:"required"`
	SalesOrdersCollection    string `validate:"required"`
	ProfilesCollectionId     string `validate:"required"`
	Timeout                  time.Duration
}

type DatabaseConfig struct {
	User            string `validate:"required"`
	Password        string
	Host            string `validate:"required"`
	Port            string
	Name            string `validate:"required"`
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	RPM     int64 `validate:"gte=0"`
	Window  time.Duration
}

type InsightConfig struct {
	Timeout       time.Duration `validate:"gt=0"`
	RatePerMinute int           `validate:"gte=0"`
}

type ReportCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

type configFile struct {
	Service struct {
		Env         string `yaml:"env"`
		Port        string `yaml:"port"`
		LogLevel    string `yaml:"log_level"`
		RecordStore string `yaml:"record_store"`
	} `yaml:"service"`
	Dependencies struct {
		BackendURL   string   `yaml:"backend_url"`
		RedisAddress string   `yaml:"redis_address"`
		CORSOrigins  []string `yaml:"cors_allowed_origins"`
		Appwrite     struct {
			Endpoint                 string `yaml:"endpoint"`
			ProjectId                string `yaml:"project_id"`
			DatabaseId               string `yaml:"database_id"`
			ProductsCollection       string `yaml:"products_collection"`
			PurchaseOrdersCollection string `yaml:"purchase_orders_collection"`
			SalesOrdersCollection    string `yaml:"sales_orders_collection"`
			ProfilesCollection       string `yaml:"profiles_collection"`
		} `yaml:"appwrite"`
		MySQL struct {
			Host string `yaml:"host"`
			Port string `yaml:"port"`
			Name string `yaml:"name"`
			User string `yaml:"user"`
		} `yaml:"mysql"`
	} `yaml:"dependencies"`
	Limits struct {
		RateLimitRPM      int64 `yaml:"rate_limit_rpm"`
		InsightPerMinute  int   `yaml:"insight_per_minute"`
		LoadTimeoutSecond int   `yaml:"load_timeout_seconds"`
		OrderLimit        int   `yaml:"order_limit"`
		ReportCacheSecond int   `yaml:"report_cache_seconds"`
	} `yaml:"limits"`
}

// Load reads .env (if present), then the optional YAML file named by
// CONFIG_FILE, then environment overrides, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load without the .env step; path may be empty.
func LoadFile(path string) (Config, error) {
	cfg := Config{
		Env:               "development",
		Port:              "8080",
		LogLevel:          "error",
		RecordStoreDriver: RecordStoreAppwrite,
		RedisAddress:      "",
		Appwrite: AppwriteConfig{
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Port:            "3306",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 300 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RPM:    300,
			Window: time.Minute,
		},
		Insight: InsightConfig{
			Timeout:       60 * time.Second,
			RatePerMinute: 30,
		},
		ReportCache: ReportCacheConfig{
			TTL: 10 * time.Minute,
		},
		LoadTimeout: 45 * time.Second,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		applyFile(&cfg, f)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	setIfNotEmpty(&cfg.Env, f.Service.Env)
	setIfNotEmpty(&cfg.Port, f.Service.Port)
	setIfNotEmpty(&cfg.LogLevel, f.Service.LogLevel)
	setIfNotEmpty(&cfg.RecordStoreDriver, strings.ToLower(f.Service.RecordStore))

	d := f.Dependencies
	setIfNotEmpty(&cfg.BackendURL, d.BackendURL)
	setIfNotEmpty(&cfg.RedisAddress, d.RedisAddress)
	if len(d.CORSOrigins) > 0 {
		cfg.CORSAllowedOrigins = trimNonEmpty(d.CORSOrigins)
	}
	setIfNotEmpty(&cfg.Appwrite.Endpoint, d.Appwrite.Endpoint)
	setIfNotEmpty(&cfg.Appwrite.ProjectId, d.Appwrite.ProjectId)
	setIfNotEmpty(&cfg.Appwrite.DatabaseId, d.Appwrite.DatabaseId)
	setIfNotEmpty(&cfg.Appwrite.ProductsCollectionId, d.Appwrite.ProductsCollection)
	setIfNotEmpty(&cfg.Appwrite.PurchaseOrdersCollection, d.Appwrite.PurchaseOrdersCollection)
	setIfNotEmpty(&cfg.Appwrite.SalesOrdersCollection, d.Appwrite.SalesOrdersCollection)
	setIfNotEmpty(&cfg.Appwrite.ProfilesCollectionId, d.Appwrite.ProfilesCollection)
	setIfNotEmpty(&cfg.Database.Host, d.MySQL.Host)
	setIfNotEmpty(&cfg.Database.Port, d.MySQL.Port)
	setIfNotEmpty(&cfg.Database.Name, d.MySQL.Name)
	setIfNotEmpty(&cfg.Database.User, d.MySQL.User)

	l := f.Limits
	if l.RateLimitRPM > 0 {
		cfg.RateLimit.RPM = l.RateLimitRPM
	}
	if l.InsightPerMinute > 0 {
		cfg.Insight.RatePerMinute = l.InsightPerMinute
	}
	if l.LoadTimeoutSecond > 0 {
		cfg.LoadTimeout = time.Duration(l.LoadTimeoutSecond) * time.Second
	}
	if l.OrderLimit > 0 {
		cfg.OrderLimit = l.OrderLimit
	}
	if l.ReportCacheSecond > 0 {
		cfg.ReportCache.TTL = time.Duration(l.ReportCacheSecond) * time.Second
	}
}

// The VITE_* names match the storefront's .env so both can share one file.
func applyEnv(cfg *Config) {
	cfg.Env = envOrDefault("ENV", cfg.Env)
	cfg.Port = envOrDefault("PORT", cfg.Port)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.RecordStoreDriver = strings.ToLower(envOrDefault("RECORD_STORE", cfg.RecordStoreDriver))
	cfg.BackendURL = strings.TrimRight(envOrDefault("VITE_BACKEND_URL", cfg.BackendURL), "/")
	cfg.AuthSecret = envOrDefault("API_SECRET", cfg.AuthSecret)
	cfg.PubSubToken = envOrDefault("PUBSUB_VERIFICATION_TOKEN", cfg.PubSubToken)
	cfg.RedisAddress = envOrDefault("REDIS_ADDRESS", cfg.RedisAddress)
	cfg.CORSAllowedOrigins = envCSV("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	cfg.Appwrite.Endpoint = strings.TrimRight(envOrDefault("VITE_APPWRITE_ENDPOINT", cfg.Appwrite.Endpoint), "/")
	cfg.Appwrite.ProjectId = envOrDefault("VITE_APPWRITE_PROJECT_ID", cfg.Appwrite.ProjectId)
	cfg.Appwrite.ApiKey = envOrDefault("VITE_APPWRITE_API_KEY", cfg.Appwrite.ApiKey)
	cfg.Appwrite.DatabaseId = envOrDefault("VITE_APPWRITE_DB_ID", cfg.Appwrite.DatabaseId)
	cfg.Appwrite.ProductsCollectionId = envOrDefault("VITE_APPWRITE_COLLECTION_ID", cfg.Appwrite.ProductsCollectionId)
	cfg.Appwrite.PurchaseOrdersCollection = envOrDefault("VITE_APPWRITE_PURCHASE_ORDERS_ID", cfg.Appwrite.PurchaseOrdersCollection)
	cfg.Appwrite.SalesOrdersCollection = envOrDefault("VITE_APPWRITE_SALES_ORDERS_ID", cfg.Appwrite.SalesOrdersCollection)
	cfg.Appwrite.ProfilesCollectionId = envOrDefault("VITE_APPWRITE_PROFILES_COLLECTION_ID", cfg.Appwrite.ProfilesCollectionId)
	cfg.Appwrite.Timeout = envSeconds("APPWRITE_TIMEOUT_SECONDS", cfg.Appwrite.Timeout)

	cfg.Database.User = envOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = envOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Host = envOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = envOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.Name = envOrDefault("DB_NAME", cfg.Database.Name)
	cfg.Database.MaxOpenConns = envInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = envSeconds("DB_CONN_MAX_LIFETIME_SECONDS", cfg.Database.ConnMaxLifetime)

	cfg.RateLimit.Enabled = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RPM = int64(envInt("RATE_LIMIT_RPM", int(cfg.RateLimit.RPM)))
	cfg.RateLimit.Window = envSeconds("RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimit.Window)

	cfg.Insight.Timeout = envSeconds("INSIGHT_TIMEOUT_SECONDS", cfg.Insight.Timeout)
	cfg.Insight.RatePerMinute = envInt("INSIGHT_RATE_PER_MINUTE", cfg.Insight.RatePerMinute)

	cfg.ReportCache.Enabled = envBool("ENABLE_REPORT_CACHE", cfg.ReportCache.Enabled)
	cfg.ReportCache.TTL = envSeconds("REPORT_CACHE_TTL_SECONDS", cfg.ReportCache.TTL)

	cfg.LoadTimeout = envSeconds("LOAD_TIMEOUT_SECONDS", cfg.LoadTimeout)
	cfg.OrderLimit = envInt("ORDER_LIMIT", cfg.OrderLimit)
}

var validate = validator.New()

// Validate checks the top-level fields and the settings of whichever record
// store is selected.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidation("config", err)
	}
	switch c.RecordStoreDriver {
	case RecordStoreAppwrite:
		if err := validate.Struct(c.Appwrite); err != nil {
			return describeValidation("appwrite", err)
		}
	case RecordStoreMySQL:
		if err := validate.Struct(c.Database); err != nil {
			return describeValidation("database", err)
		}
	}
	return nil
}

// ValidateMirror checks both store sections for tools that copy Appwrite
// documents into the MySQL mirror.
func (c Config) ValidateMirror() error {
	if err := validate.Struct(c.Appwrite); err != nil {
		return describeValidation("appwrite", err)
	}
	if err := validate.Struct(c.Database); err != nil {
		return describeValidation("database", err)
	}
	return nil
}

func describeValidation(section string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid %s configuration: %w", section, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid %s configuration: %s", section, strings.Join(fields, ", "))
}

func setIfNotEmpty(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	n := envInt(name, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
