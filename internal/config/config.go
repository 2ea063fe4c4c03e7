package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	OIDC      OIDCConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Club      ClubConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	Environment    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// OIDCConfig describes an optional Keycloak realm whose ID tokens are accepted
// in addition to locally issued access tokens.
type OIDCConfig struct {
	URL      string
	Realm    string
	ClientID string
}

// Issuer returns the realm issuer URL. Older deployments put the realm path
// in URL directly, in which case Realm is empty.
func (o OIDCConfig) Issuer() string {
	if o.URL == "" {
		return ""
	}
	if o.Realm == "" {
		return o.URL
	}
	return strings.TrimRight(o.URL, "/") + "/realms/" + o.Realm
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
	// public write endpoints (login, register, application intake)
	PublicRPS   float64
	PublicBurst int
}

type EmailConfig struct {
	Provider     string // resend | noop
	ResendAPIKey string
	From         string
	AdminAddress string
}

type ClubConfig struct {
	Name               string
	Currency           string
	TaxRate            decimal.Decimal
	InvoiceDueDays     int
	OfferTTL           time.Duration
	AttachmentMaxBytes int64
	PublicURL          string
}

type AdminConfig struct {
	Email    string
	Password string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", "*")
	viper.SetDefault("MONGODB_DATABASE", "clubhub")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 20.0)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("RATE_LIMIT_PUBLIC_RPS", 0.2)
	viper.SetDefault("RATE_LIMIT_PUBLIC_BURST", 5)
	viper.SetDefault("EMAIL_PROVIDER", "noop")
	viper.SetDefault("EMAIL_FROM", "ClubHub <noreply@clubhub.local>")
	viper.SetDefault("CLUB_NAME", "ClubHub")
	viper.SetDefault("CLUB_CURRENCY", "EUR")
	viper.SetDefault("CLUB_TAX_RATE", "0")
	viper.SetDefault("CLUB_INVOICE_DUE_DAYS", 14)
	viper.SetDefault("CLUB_OFFER_TTL_HOURS", 72)
	viper.SetDefault("CLUB_ATTACHMENT_MAX_BYTES", 10<<20)
	viper.SetDefault("CLUB_PUBLIC_URL", "http://localhost:5173")

	taxRate, err := decimal.NewFromString(viper.GetString("CLUB_TAX_RATE"))
	if err != nil {
		return nil, fmt.Errorf("CLUB_TAX_RATE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Host:           viper.GetString("SERVER_HOST"),
			Environment:    viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowedOrigins: splitList(viper.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		OIDC: OIDCConfig{
			URL:      viper.GetString("KEYCLOAK_URL"),
			Realm:    viper.GetString("KEYCLOAK_REALM"),
			ClientID: viper.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret:          viper.GetString("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			PublicRPS:     viper.GetFloat64("RATE_LIMIT_PUBLIC_RPS"),
			PublicBurst:   viper.GetInt("RATE_LIMIT_PUBLIC_BURST"),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(viper.GetString("EMAIL_PROVIDER")),
			ResendAPIKey: viper.GetString("RESEND_API_KEY"),
			From:         viper.GetString("EMAIL_FROM"),
			AdminAddress: viper.GetString("EMAIL_ADMIN_ADDRESS"),
		},
		Club: ClubConfig{
			Name:               viper.GetString("CLUB_NAME"),
			Currency:           strings.ToUpper(viper.GetString("CLUB_CURRENCY")),
			TaxRate:            taxRate,
			InvoiceDueDays:     viper.GetInt("CLUB_INVOICE_DUE_DAYS"),
			OfferTTL:           time.Duration(viper.GetInt("CLUB_OFFER_TTL_HOURS")) * time.Hour,
			AttachmentMaxBytes: viper.GetInt64("CLUB_ATTACHMENT_MAX_BYTES"),
			PublicURL:          strings.TrimRight(viper.GetString("CLUB_PUBLIC_URL"), "/"),
		},
		Admin: AdminConfig{
			Email:    viper.GetString("ADMIN_EMAIL"),
			Password: viper.GetString("ADMIN_PASSWORD"),
		},
	}

	if cfg.IsProduction() && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}
	if cfg.Email.Provider == "resend" && cfg.Email.ResendAPIKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
	}

	return cfg, nil
}

// IsProduction reports whether SERVER_ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
