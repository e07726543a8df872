package config

import (
	"strings"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Identity modes accepted by IDENTITY_MODE.
const (
	IdentityHeader = "header"
	IdentityOIDC   = "oidc"
	IdentityJWT    = "jwt"
)

// Profile policies accepted by PROFILE_POLICY.
const (
	PolicyResilient = "resilient"
	PolicyStrict    = "strict"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	Identity  IdentityConfig
	RateLimit RateLimitConfig
	Client    ClientConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
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

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

// Issuer is the realm issuer URL, or URL itself when no realm is set.
func (k KeycloakConfig) Issuer() string {
	if k.Realm == "" {
		return k.URL
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

type IdentityConfig struct {
	Mode   string
	Header string
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// ClientConfig drives the direct-access client used by farmctl.
type ClientConfig struct {
	ProfilePolicy  string
	LocalCachePath string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5173")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("STATIC_DIR", ".")
	v.SetDefault("MONGODB_URI", "mongodb://127.0.0.1:27017/sih")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 60)
	v.SetDefault("IDENTITY_MODE", IdentityHeader)
	v.SetDefault("USER_ID_HEADER", "x-user-id")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("PROFILE_POLICY", PolicyResilient)
	v.SetDefault("LOCAL_CACHE_PATH", "farmtrack-cache.db")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			StaticDir:    v.GetString("STATIC_DIR"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:      v.GetString("KEYCLOAK_URL"),
			Realm:    v.GetString("KEYCLOAK_REALM"),
			ClientID: v.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("JWT_SECRET"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		Identity: IdentityConfig{
			Mode:   strings.ToLower(strings.TrimSpace(v.GetString("IDENTITY_MODE"))),
			Header: v.GetString("USER_ID_HEADER"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Client: ClientConfig{
			ProfilePolicy:  strings.ToLower(strings.TrimSpace(v.GetString("PROFILE_POLICY"))),
			LocalCachePath: v.GetString("LOCAL_CACHE_PATH"),
		},
	}

	switch cfg.Identity.Mode {
	case IdentityHeader, IdentityOIDC, IdentityJWT:
	default:
		logger.Warnf("unknown IDENTITY_MODE %q, using %q", cfg.Identity.Mode, IdentityHeader)
		cfg.Identity.Mode = IdentityHeader
	}
	switch cfg.Client.ProfilePolicy {
	case PolicyResilient, PolicyStrict:
	default:
		logger.Warnf("unknown PROFILE_POLICY %q, using %q", cfg.Client.ProfilePolicy, PolicyResilient)
		cfg.Client.ProfilePolicy = PolicyResilient
	}

	if cfg.JWT.Secret == "" && cfg.Identity.Mode == IdentityJWT {
		logger.Warn("JWT_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}
