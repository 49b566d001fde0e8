package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	devJWTSecret = "dev-secret-change-me"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"development"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	KV        KVConfig        `yaml:"kv"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
	// TrustedProxies lists the IPs/CIDRs whose X-Forwarded-For is honoured.
	// Empty means the TCP peer address is the client.
	TrustedProxies  []string      `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:","`
	// TrustCloudflare takes the client address from CF-Connecting-IP. Only
	// enable it when the origin is reachable solely through Cloudflare.
	TrustCloudflare bool          `yaml:"trust_cloudflare" env:"TRUST_CLOUDFLARE" env-default:"false"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"./data/grubtech.db"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	Host        string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port        string `yaml:"port" env:"PGPORT" env-default:"5432"`
	User        string `yaml:"user" env:"PGUSER"`
	Password    string `yaml:"password" env:"PGPASSWORD"`
	Name        string `yaml:"name" env:"PGDATABASE"`
	SSLMode     string `yaml:"sslmode" env:"PGSSLMODE" env-default:"disable"`
}

type KVConfig struct {
	Driver          string        `yaml:"driver" env:"KV_DRIVER" env-default:"memory"`
	MongoURI        string        `yaml:"mongo_uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase   string        `yaml:"mongo_database" env:"MONGO_DATABASE" env-default:"grubtech"`
	MongoCollection string        `yaml:"mongo_collection" env:"MONGO_KV_COLLECTION" env-default:"kv"`
	PurgeInterval   time.Duration `yaml:"purge_interval" env:"KV_PURGE_INTERVAL" env-default:"5m"`
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"dev-secret-change-me"`
	AccessTTL         time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL" env-default:"15m"`
	RefreshTTL        time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL" env-default:"168h"`
	AccessCookieName  string        `yaml:"access_cookie_name" env:"AUTH_COOKIE_NAME" env-default:"grubtech_auth"`
	RefreshCookieName string        `yaml:"refresh_cookie_name" env:"REFRESH_COOKIE_NAME" env-default:"grubtech_refresh"`
	AccessCookiePath  string        `yaml:"access_cookie_path" env:"AUTH_COOKIE_PATH" env-default:"/"`
	RefreshCookiePath string        `yaml:"refresh_cookie_path" env:"REFRESH_COOKIE_PATH" env-default:"/api/auth"`
	CookieDomain      string        `yaml:"cookie_domain" env:"AUTH_COOKIE_DOMAIN"`
	CookieSecure      bool          `yaml:"cookie_secure" env:"AUTH_COOKIE_SECURE" env-default:"true"`
	CookieSameSite    string        `yaml:"cookie_samesite" env:"AUTH_COOKIE_SAMESITE" env-default:"none"`
	SetupToken        string        `yaml:"setup_token" env:"SETUP_TOKEN"`
	AdminUsername     string        `yaml:"admin_username" env:"ADMIN_USERNAME"`
	AdminPassword     string        `yaml:"admin_password" env:"ADMIN_PASSWORD"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
}

// Load reads an optional .env file, then the YAML file at path (if any), then
// the process environment. Environment variables always win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for binaries that cannot start without configuration.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic("config: " + err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("%w: unknown APP_ENV %q", ErrInvalid, c.Env)
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", ErrInvalid)
	}
	if c.IsProduction() && c.Auth.JWTSecret == devJWTSecret {
		return fmt.Errorf("%w: JWT_SECRET must be set in production", ErrInvalid)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("%w: token TTLs must be positive", ErrInvalid)
	}
	if strings.EqualFold(c.Auth.CookieSameSite, "none") && !c.Auth.CookieSecure {
		return fmt.Errorf("%w: SameSite=None requires a Secure cookie", ErrInvalid)
	}

	for _, p := range c.HTTP.TrustedProxies {
		p = strings.TrimSpace(p)
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("%w: TRUSTED_PROXIES entry %q is not an IP or CIDR", ErrInvalid, p)
		}
	}

	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: unsupported DB_DRIVER %q", ErrInvalid, c.Database.Driver)
	}
	switch c.KV.Driver {
	case "memory", "postgres", "mongo":
	default:
		return fmt.Errorf("%w: unsupported KV_DRIVER %q", ErrInvalid, c.KV.Driver)
	}
	if c.KV.Driver == "postgres" && c.Database.Driver != "postgres" {
		return fmt.Errorf("%w: KV_DRIVER=postgres requires DB_DRIVER=postgres", ErrInvalid)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// PostgresURL returns DATABASE_URL, or builds one from the PG* variables.
func (d DatabaseConfig) PostgresURL() (string, error) {
	if d.DatabaseURL != "" {
		return d.DatabaseURL, nil
	}
	if d.User == "" || d.Name == "" {
		return "", fmt.Errorf("%w: missing DATABASE_URL or PGUSER/PGDATABASE", ErrInvalid)
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
