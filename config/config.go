package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr  string
	DBPath      string
	DatabaseURL string // when set, Postgres is used instead of SQLite
	DownloadDir string

	Solver  SolverConfig
	Session SessionConfig
	Query   QueryConfig
	Archive ArchiveConfig
	Cleanup CleanupConfig

	Portals map[string]*PortalConfig
}

type SolverConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	Attempts      int
	ManualEnabled bool
	ManualTimeout time.Duration
}

type SessionConfig struct {
	PoolSize     int
	RequestDelay time.Duration
	IdleTTL      time.Duration
	Headless     bool
}

type QueryConfig struct {
	MaxRetries int
	PageLimit  int
}

type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

type CleanupConfig struct {
	Cron         string
	Interval     time.Duration
	DocMaxAge    time.Duration
	LogRetention time.Duration // zero keeps the audit log forever
}

type PortalConfig struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	BaseURL     string          `yaml:"base_url"`
	SearchPath  string          `yaml:"search_path"`
	RateLimitMS int             `yaml:"rate_limit_ms"`
	CaseTypes   []string        `yaml:"case_types"`
	Selectors   PortalSelectors `yaml:"selectors"`
}

// RequestDelay returns the inter-request delay for this portal. A
// non-zero rate_limit_ms in the portal YAML wins over the global
// default so slower sites can be throttled individually.
func (p *PortalConfig) RequestDelay(fallback time.Duration) time.Duration {
	if p.RateLimitMS > 0 {
		return time.Duration(p.RateLimitMS) * time.Millisecond
	}
	return fallback
}

// PortalSelectors pins down the portal's markup. A layout change means
// editing the YAML, not the code.
type PortalSelectors struct {
	Form         string `yaml:"form"`
	CaseType     string `yaml:"case_type"`
	CaseNumber   string `yaml:"case_number"`
	FilingYear   string `yaml:"filing_year"`
	CaptchaImage string `yaml:"captcha_image"`
	CaptchaInput string `yaml:"captcha_input"`
	Submit       string `yaml:"submit"`
	Results      string `yaml:"results"`
	NoResults    string `yaml:"no_results"`
	NextPage     string `yaml:"next_page"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		DBPath:      getEnv("DB_PATH", "court_queries.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),
		Solver: SolverConfig{
			APIKey:        os.Getenv("SOLVER_API_KEY"),
			BaseURL:       getEnv("SOLVER_BASE_URL", "http://2captcha.com"),
			Timeout:       getEnvDuration("SOLVER_TIMEOUT", 30*time.Second),
			Attempts:      getEnvInt("CAPTCHA_ATTEMPTS", 3),
			ManualEnabled: os.Getenv("MANUAL_CAPTCHA") == "true",
			ManualTimeout: getEnvDuration("MANUAL_CAPTCHA_TIMEOUT", 2*time.Minute),
		},
		Session: SessionConfig{
			PoolSize:     clamp(getEnvInt("SESSION_POOL_SIZE", 2), 1, 5),
			RequestDelay: time.Duration(getEnvInt("REQUEST_DELAY_MS", 1500)) * time.Millisecond,
			IdleTTL:      getEnvDuration("SESSION_IDLE_TTL", 10*time.Minute),
			Headless:     getEnv("BROWSER_HEADLESS", "true") == "true",
		},
		Query: QueryConfig{
			MaxRetries: getEnvInt("MAX_RETRIES", 3),
			PageLimit:  getEnvInt("PAGE_LIMIT", 10),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			Region:          getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
		Cleanup: CleanupConfig{
			Cron:         os.Getenv("CLEANUP_CRON"),
			Interval:     getEnvDuration("CLEANUP_INTERVAL", time.Hour),
			DocMaxAge:    time.Duration(getEnvInt("DOC_MAX_AGE_DAYS", 30)) * 24 * time.Hour,
			LogRetention: time.Duration(getEnvInt("LOG_RETENTION_DAYS", 0)) * 24 * time.Hour,
		},
		Portals: make(map[string]*PortalConfig),
	}

	if err := cfg.loadPortalConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPortalConfigs() error {
	configDir := "config/portals"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(configDir, entry.Name()))
		if err != nil {
			return err
		}

		var portal PortalConfig
		if err := yaml.Unmarshal(data, &portal); err != nil {
			return err
		}

		c.Portals[portal.ID] = &portal
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
