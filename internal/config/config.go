package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// Screening Core - Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Router     RouterConfig     `yaml:"router"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	SAR        SARConfig        `yaml:"sar"`
	Compliance ComplianceConfig `yaml:"compliance"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	CrossIndex CrossIndexConfig `yaml:"cross_index"`
	Identity   IdentityConfig   `yaml:"identity"`
	CloudTasks CloudTasksConfig `yaml:"cloud_tasks"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	Interface        string   `yaml:"interface"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// DatabaseConfig for Supabase/Postgres-backed storage
type DatabaseConfig struct {
	Supabase SupabaseConfig `yaml:"supabase"`
	// AuditDSN, when set, points the append-only audit log at a direct
	// Postgres connection instead of routing audit writes through the
	// Supabase REST client.
	AuditDSN string `yaml:"audit_dsn"`
}

type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

// RouterConfig governs RequestRouter caching, retry and breaker behavior.
type RouterConfig struct {
	CacheFreshTTLSec   int     `yaml:"cache_fresh_ttl_sec"`
	CacheStaleTTLSec   int     `yaml:"cache_stale_ttl_sec"`
	MaxRetries         int     `yaml:"max_retries"`
	RetryBaseDelayMs   int     `yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs    int     `yaml:"retry_max_delay_ms"`
	BreakerFailThresh  int     `yaml:"breaker_fail_threshold"`
	BreakerHalfOpenMax int     `yaml:"breaker_half_open_max"`
	BreakerCooldownSec int     `yaml:"breaker_cooldown_sec"`
	CostBudgetUSD      float64 `yaml:"cost_budget_usd"`
}

// DispatcherConfig governs the PriorityDispatcher's global token bucket.
type DispatcherConfig struct {
	GlobalCapacity     int     `yaml:"global_capacity"`
	GlobalRefillPerSec float64 `yaml:"global_refill_per_sec"`
	BurstSize          int     `yaml:"burst_size"`
	QueueDepth         int     `yaml:"queue_depth"`
}

// SARConfig governs the Search-Assess-Refine iteration machinery.
type SARConfig struct {
	ConfidenceThreshold         float64 `yaml:"confidence_threshold"`
	FoundationConfidenceThresh  float64 `yaml:"foundation_confidence_threshold"`
	MaxIterationsPerType        int     `yaml:"max_iterations_per_type"`
	FoundationMaxIterations     int     `yaml:"foundation_max_iterations"`
	MinGainThreshold            float64 `yaml:"min_gain_threshold"`
	MaxQueriesPerGap            int     `yaml:"max_queries_per_gap"`
	MaxTotalQueries             int     `yaml:"max_total_queries"`
}

// ComplianceConfig governs default locale and consent behavior.
type ComplianceConfig struct {
	DefaultLocale          string `yaml:"default_locale"`
	ConsentExpiryDays      int    `yaml:"consent_expiry_days"`
	RequireFCRADisclosure  bool   `yaml:"require_fcra_disclosure"`
}

// WebhookConfig for outbound screening-event delivery
type WebhookConfig struct {
	WorkerCount int `yaml:"worker_count"`
}

// CrossIndexConfig for the Pub/Sub-backed CrossScreeningIndex fan-out
type CrossIndexConfig struct {
	ProjectID string `yaml:"project_id"`
	TopicID   string `yaml:"topic_id"`
	Enabled   bool   `yaml:"enabled"`
}

// IdentityConfig for SPIFFE-based provider adapter mTLS
type IdentityConfig struct {
	SocketPath  string `yaml:"socket_path"`
	TrustDomain string `yaml:"trust_domain"`
}

// CloudTasksConfig for webhook delivery via Google Cloud Tasks
type CloudTasksConfig struct {
	ProjectID  string `yaml:"project_id"`
	LocationID string `yaml:"location_id"`
	QueueID    string `yaml:"queue_id"`
	Enabled    bool   `yaml:"enabled"`
}

// =============================================================================
// Singleton Pattern with Environment Overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file (using defaults)", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from YAML file
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	// Server
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("SCREENING_ENV", c.Server.Env)
	c.Server.Interface = getEnv("SCREENING_INTERFACE", c.Server.Interface)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}

	// Database - Supabase
	c.Database.Supabase.URL = getEnv("SUPABASE_URL", c.Database.Supabase.URL)
	c.Database.Supabase.ServiceKey = getEnv("SUPABASE_SERVICE_KEY", c.Database.Supabase.ServiceKey)
	c.Database.AuditDSN = getEnv("AUDIT_DATABASE_URL", c.Database.AuditDSN)

	// Router
	if v := getEnvInt("ROUTER_CACHE_FRESH_TTL_SEC", 0); v > 0 {
		c.Router.CacheFreshTTLSec = v
	}
	if v := getEnvInt("ROUTER_CACHE_STALE_TTL_SEC", 0); v > 0 {
		c.Router.CacheStaleTTLSec = v
	}
	if v := getEnvInt("ROUTER_MAX_RETRIES", 0); v > 0 {
		c.Router.MaxRetries = v
	}
	if v := getEnvInt("ROUTER_RETRY_BASE_DELAY_MS", 0); v > 0 {
		c.Router.RetryBaseDelayMs = v
	}
	if v := getEnvInt("ROUTER_RETRY_MAX_DELAY_MS", 0); v > 0 {
		c.Router.RetryMaxDelayMs = v
	}
	if v := getEnvInt("ROUTER_BREAKER_FAIL_THRESHOLD", 0); v > 0 {
		c.Router.BreakerFailThresh = v
	}
	if v := getEnvInt("ROUTER_BREAKER_HALF_OPEN_MAX", 0); v > 0 {
		c.Router.BreakerHalfOpenMax = v
	}
	if v := getEnvInt("ROUTER_BREAKER_COOLDOWN_SEC", 0); v > 0 {
		c.Router.BreakerCooldownSec = v
	}
	if v := getEnvFloat("ROUTER_COST_BUDGET_USD", 0); v > 0 {
		c.Router.CostBudgetUSD = v
	}

	// Dispatcher
	if v := getEnvInt("DISPATCHER_GLOBAL_CAPACITY", 0); v > 0 {
		c.Dispatcher.GlobalCapacity = v
	}
	if v := getEnvFloat("DISPATCHER_GLOBAL_REFILL_PER_SEC", 0); v > 0 {
		c.Dispatcher.GlobalRefillPerSec = v
	}
	if v := getEnvInt("DISPATCHER_BURST_SIZE", 0); v > 0 {
		c.Dispatcher.BurstSize = v
	}
	if v := getEnvInt("DISPATCHER_QUEUE_DEPTH", 0); v > 0 {
		c.Dispatcher.QueueDepth = v
	}

	// SAR
	if v := getEnvFloat("SAR_CONFIDENCE_THRESHOLD", 0); v > 0 {
		c.SAR.ConfidenceThreshold = v
	}
	if v := getEnvFloat("SAR_FOUNDATION_CONFIDENCE_THRESHOLD", 0); v > 0 {
		c.SAR.FoundationConfidenceThresh = v
	}
	if v := getEnvInt("SAR_MAX_ITERATIONS_PER_TYPE", 0); v > 0 {
		c.SAR.MaxIterationsPerType = v
	}
	if v := getEnvInt("SAR_FOUNDATION_MAX_ITERATIONS", 0); v > 0 {
		c.SAR.FoundationMaxIterations = v
	}
	if v := getEnvFloat("SAR_MIN_GAIN_THRESHOLD", 0); v > 0 {
		c.SAR.MinGainThreshold = v
	}
	if v := getEnvInt("SAR_MAX_QUERIES_PER_GAP", 0); v > 0 {
		c.SAR.MaxQueriesPerGap = v
	}
	if v := getEnvInt("SAR_MAX_TOTAL_QUERIES", 0); v > 0 {
		c.SAR.MaxTotalQueries = v
	}

	// Compliance
	c.Compliance.DefaultLocale = getEnv("COMPLIANCE_DEFAULT_LOCALE", c.Compliance.DefaultLocale)
	if v := getEnvInt("COMPLIANCE_CONSENT_EXPIRY_DAYS", 0); v > 0 {
		c.Compliance.ConsentExpiryDays = v
	}
	c.Compliance.RequireFCRADisclosure = getEnvBool("COMPLIANCE_REQUIRE_FCRA_DISCLOSURE", c.Compliance.RequireFCRADisclosure)

	// Webhooks
	if v := getEnvInt("WEBHOOK_WORKERS", 0); v > 0 {
		c.Webhook.WorkerCount = v
	}

	// Cross-screening index (Pub/Sub)
	if projectID := getEnv("GCP_PROJECT_ID", ""); projectID != "" {
		c.CrossIndex.ProjectID = projectID
		c.CloudTasks.ProjectID = projectID // share project
	}
	c.CrossIndex.TopicID = getEnv("CROSS_INDEX_TOPIC_ID", c.CrossIndex.TopicID)
	c.CrossIndex.Enabled = getEnvBool("CROSS_INDEX_ENABLED", c.CrossIndex.Enabled)

	// Identity (SPIFFE)
	c.Identity.SocketPath = getEnv("SPIFFE_SOCKET_PATH", c.Identity.SocketPath)
	c.Identity.TrustDomain = getEnv("SPIFFE_TRUST_DOMAIN", c.Identity.TrustDomain)

	// Cloud Tasks
	c.CloudTasks.LocationID = getEnv("CLOUD_TASKS_LOCATION", c.CloudTasks.LocationID)
	c.CloudTasks.QueueID = getEnv("CLOUD_TASKS_QUEUE", c.CloudTasks.QueueID)
	c.CloudTasks.Enabled = getEnvBool("CLOUD_TASKS_ENABLED", c.CloudTasks.Enabled)

	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}

	if c.Router.CacheFreshTTLSec == 0 {
		c.Router.CacheFreshTTLSec = 3600
	}
	if c.Router.CacheStaleTTLSec == 0 {
		c.Router.CacheStaleTTLSec = 86400
	}
	if c.Router.MaxRetries == 0 {
		c.Router.MaxRetries = 3
	}
	if c.Router.RetryBaseDelayMs == 0 {
		c.Router.RetryBaseDelayMs = 200
	}
	if c.Router.RetryMaxDelayMs == 0 {
		c.Router.RetryMaxDelayMs = 5000
	}
	if c.Router.BreakerFailThresh == 0 {
		c.Router.BreakerFailThresh = 5
	}
	if c.Router.BreakerHalfOpenMax == 0 {
		c.Router.BreakerHalfOpenMax = 2
	}
	if c.Router.BreakerCooldownSec == 0 {
		c.Router.BreakerCooldownSec = 30
	}

	if c.Dispatcher.GlobalCapacity == 0 {
		c.Dispatcher.GlobalCapacity = 100
	}
	if c.Dispatcher.GlobalRefillPerSec == 0 {
		c.Dispatcher.GlobalRefillPerSec = 20
	}
	if c.Dispatcher.BurstSize == 0 {
		c.Dispatcher.BurstSize = 25
	}
	if c.Dispatcher.QueueDepth == 0 {
		c.Dispatcher.QueueDepth = 500
	}

	if c.SAR.ConfidenceThreshold == 0 {
		c.SAR.ConfidenceThreshold = 0.85
	}
	if c.SAR.FoundationConfidenceThresh == 0 {
		c.SAR.FoundationConfidenceThresh = 0.90
	}
	if c.SAR.MaxIterationsPerType == 0 {
		c.SAR.MaxIterationsPerType = 3
	}
	if c.SAR.FoundationMaxIterations == 0 {
		c.SAR.FoundationMaxIterations = 4
	}
	if c.SAR.MinGainThreshold == 0 {
		c.SAR.MinGainThreshold = 0.05
	}
	if c.SAR.MaxQueriesPerGap == 0 {
		c.SAR.MaxQueriesPerGap = 3
	}
	if c.SAR.MaxTotalQueries == 0 {
		c.SAR.MaxTotalQueries = 15
	}

	if c.Compliance.DefaultLocale == "" {
		c.Compliance.DefaultLocale = "US"
	}
	if c.Compliance.ConsentExpiryDays == 0 {
		c.Compliance.ConsentExpiryDays = 365
	}

	if c.Webhook.WorkerCount == 0 {
		c.Webhook.WorkerCount = 4
	}

	if c.CrossIndex.TopicID == "" {
		c.CrossIndex.TopicID = "screening-events"
	}

	if c.Identity.TrustDomain == "" {
		c.Identity.TrustDomain = "spiffe://screening-core.local"
	}

	if c.CloudTasks.LocationID == "" {
		c.CloudTasks.LocationID = "us-central1"
	}
	if c.CloudTasks.QueueID == "" {
		c.CloudTasks.QueueID = "screening-webhooks"
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
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

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetPort() string {
	if c.Server.Port == "" {
		return "8080"
	}
	return c.Server.Port
}

// GetSupabaseURL returns the Supabase URL
func (c *Config) GetSupabaseURL() string {
	return c.Database.Supabase.URL
}

// GetSupabaseKey returns the Supabase service key
func (c *Config) GetSupabaseKey() string {
	return c.Database.Supabase.ServiceKey
}
