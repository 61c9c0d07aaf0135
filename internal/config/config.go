package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr         string `env:"VITRINE_ADDR"          envDefault:":3000"`
	DataDir      string `env:"VITRINE_DATA_DIR"      envDefault:"."`
	PublicDir    string `env:"VITRINE_PUBLIC_DIR"    envDefault:"public"`
	TemplatePath string `env:"VITRINE_TEMPLATE_PATH" envDefault:"views/index.html"`
	CORSOrigin   string `env:"VITRINE_CORS_ORIGIN"   envDefault:"*"`

	// Admin credentials. An empty hash falls back to the development password.
	AdminUsername     string `env:"VITRINE_ADMIN_USERNAME"      envDefault:"admin"`
	AdminPasswordHash string `env:"VITRINE_ADMIN_PASSWORD_HASH"`

	SessionSecret string        `env:"VITRINE_SESSION_SECRET" envDefault:"vitrine-dev-secret"`
	SessionTTL    time.Duration `env:"VITRINE_SESSION_TTL"    envDefault:"24h"`
	CookieSecure  bool          `env:"VITRINE_COOKIE_SECURE"  envDefault:"false"`
	// Redis - memory sessions when empty
	RedisURL string `env:"VITRINE_REDIS_URL"`

	MaxUploadBytes int64   `env:"VITRINE_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	LoginRPS       float64 `env:"VITRINE_LOGIN_RPS"        envDefault:"1"`
	LoginBurst     int     `env:"VITRINE_LOGIN_BURST"      envDefault:"5"`
	// TrustedProxies lists addresses or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `env:"VITRINE_TRUSTED_PROXIES" envSeparator:","`

	HistoryDir string `env:"VITRINE_HISTORY_DIR"`

	// MinIO - disk uploads when the endpoint is empty
	MinioEndpoint  string `env:"VITRINE_MINIO_ENDPOINT"`
	MinioAccessKey string `env:"VITRINE_MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"VITRINE_MINIO_SECRET_KEY"`
	MinioBucket    string `env:"VITRINE_MINIO_BUCKET"     envDefault:"vitrine-uploads"`
	MinioUseSSL    bool   `env:"VITRINE_MINIO_USE_SSL"    envDefault:"false"`
	MinioPublicURL string `env:"VITRINE_MINIO_PUBLIC_URL"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("VITRINE_SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("VITRINE_MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("VITRINE_TRUSTED_PROXIES: %w", err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("VITRINE_TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func (c Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}

func (c Config) HistoryEnabled() bool {
	return c.HistoryDir != ""
}
