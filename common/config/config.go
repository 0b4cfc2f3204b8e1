package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Glyph8/navermapCrawling/common"
	"github.com/rs/zerolog/log"
)

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	*result = s
}

func loadEnvUint(key string, result *uint) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return
	}
	*result = uint(n)
}

func loadEnvInt(key string, result *int) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvBool(key string, result *bool) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return
	}
	*result = b
}

func loadEnvDuration(key string, result *time.Duration) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return
	}
	*result = d
}

// loadEnvList reads a separator-delimited list, dropping empty entries
func loadEnvList(key, sep string, result *[]string) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*result = items
}

/* Configuration */

/* PgSQL Configuration */
type pgSqlConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Database string `json:"database"`
	SslMode  string `json:"ssl_mode"`
	User     string `json:"user"`
	Password string `json:"-"`
}

func (p pgSqlConfig) ConnStr() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s", p.Host, p.Port, p.User, p.Password, p.Database, p.SslMode)
}

func defaultPgSql() pgSqlConfig {
	return pgSqlConfig{
		Enabled:  false,
		Host:     "localhost",
		Port:     5432,
		Database: "navermap",
		User:     "",
		Password: "",
		SslMode:  "disable",
	}
}

func (p *pgSqlConfig) loadFromEnv() {
	loadEnvBool("POSTGRES_ENABLED", &p.Enabled)
	loadEnvString("POSTGRES_HOST", &p.Host)
	loadEnvUint("POSTGRES_PORT", &p.Port)
	loadEnvString("POSTGRES_DB_NAME", &p.Database)
	loadEnvString("POSTGRES_SSLMODE", &p.SslMode)
	loadEnvString("POSTGRES_USERNAME", &p.User)
	loadEnvString("POSTGRES_PASSWORD", &p.Password)
}

/* Listen Configuration */

type listenConfig struct {
	Host string `json:"host"`
	Port uint   `json:"port"`
}

func (l listenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

func defaultListenConfig() listenConfig {
	return listenConfig{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

func (l *listenConfig) loadFromEnv() {
	loadEnvString("LISTEN_HOST", &l.Host)
	loadEnvUint("LISTEN_PORT", &l.Port)
}

type natsConfig struct {
	Enabled          bool
	Host             string
	Port             uint
	Username         string
	Password         string `json:"-"`
	JetStreamEnabled bool
	PortMonitoring   uint
	// Stream holds crawl requests and collected records
	Stream string
}

func (c *natsConfig) loadFromEnv() {
	loadEnvBool("NATS_ENABLED", &c.Enabled)
	c.Host = getEnv("NATS_HOST", c.Host)
	loadEnvUint("NATS_PORT", &c.Port)
	c.Username = getEnv("NATS_USER", c.Username)
	c.Password = getEnv("NATS_PASSWORD", c.Password)
	loadEnvBool("NATS_JETSTREAM_ENABLED", &c.JetStreamEnabled)
	loadEnvUint("NATS_PORT_MONITORING", &c.PortMonitoring)
	loadEnvString("NATS_STREAM", &c.Stream)
}

func (c *natsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

func defaultNatsConfig() natsConfig {
	return natsConfig{
		Enabled:          false,
		Host:             "localhost",
		Port:             4222,
		Username:         "",
		Password:         "",
		JetStreamEnabled: true,
		PortMonitoring:   8222,
		Stream:           "NAVERMAP",
	}
}

type securityConfig struct {
	BackendApiKey string `json:"-"`
	ServerSalt    string `json:"-"`
}

func (s *securityConfig) loadFromEnv() {
	s.BackendApiKey = getEnv("BACKEND_API_KEY", "")
	s.ServerSalt = getEnv("SERVER_SALT", "")
}

func defaultSecurityConfig() securityConfig {
	return securityConfig{
		BackendApiKey: "",
		ServerSalt:    "",
	}
}

type redisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
	// DedupTTL is how long a collected place is remembered by the dedup sink
	DedupTTL time.Duration `json:"dedup_ttl"`
}

func (r *redisConfig) loadFromEnv() {
	loadEnvBool("REDIS_ENABLED", &r.Enabled)
	loadEnvString("REDIS_HOST", &r.Host)
	loadEnvUint("REDIS_PORT", &r.Port)
	loadEnvString("REDIS_PASSWORD", &r.Password)
	loadEnvInt("REDIS_DB", &r.DB)
	loadEnvDuration("REDIS_DEDUP_TTL", &r.DedupTTL)
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		Enabled:  false,
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
		DedupTTL: 7 * 24 * time.Hour,
	}
}

type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
	Bucket          string
	// Prefix is prepended to every uploaded object name
	Prefix string
}

// Enabled reports whether uploads are configured
func (g GCSConfig) Enabled() bool {
	return g.Bucket != ""
}

func (g *GCSConfig) loadFromEnv() {
	g.ProjectID = getEnv("GCS_PROJECT_ID", g.ProjectID)
	g.CredentialsFile = getEnv("GCS_CREDENTIALS_FILE", g.CredentialsFile)
	g.Bucket = getEnv("GCS_STORAGE_BUCKET", g.Bucket)
	g.Prefix = getEnv("GCS_PREFIX", g.Prefix)
}

func defaultGcsConfig() GCSConfig {
	return GCSConfig{
		ProjectID:       "",
		CredentialsFile: "",
		Bucket:          "",
		Prefix:          "navermap",
	}
}

type logConfig struct {
	Level      string `json:"level"`
	Pretty     bool   `json:"pretty"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	// Database stores info and above in the crawl_logs table when Postgres is enabled
	Database bool `json:"database"`
}

func (l *logConfig) loadFromEnv() {
	loadEnvString("LOG_LEVEL", &l.Level)
	loadEnvBool("LOG_PRETTY", &l.Pretty)
	loadEnvString("LOG_FILE", &l.File)
	loadEnvInt("LOG_MAX_SIZE_MB", &l.MaxSizeMB)
	loadEnvInt("LOG_MAX_BACKUPS", &l.MaxBackups)
	loadEnvInt("LOG_MAX_AGE_DAYS", &l.MaxAgeDays)
	loadEnvBool("LOG_DATABASE", &l.Database)
}

func defaultLogConfig() logConfig {
	return logConfig{
		Level:      "info",
		Pretty:     true,
		File:       "",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Database:   true,
	}
}

type browserConfig struct {
	ControlURL        string        `json:"control_url"`
	Bin               string        `json:"bin"`
	Headless          bool          `json:"headless"`
	Stealth           bool          `json:"stealth"`
	Incognito         bool          `json:"incognito"`
	NavigationTimeout time.Duration `json:"navigation_timeout"`
	PollInterval      time.Duration `json:"poll_interval"`
	Flags             []string      `json:"flags"`
}

func (b *browserConfig) loadFromEnv() {
	loadEnvString("BROWSER_CONTROL_URL", &b.ControlURL)
	loadEnvString("BROWSER_BIN", &b.Bin)
	loadEnvBool("BROWSER_HEADLESS", &b.Headless)
	loadEnvBool("BROWSER_STEALTH", &b.Stealth)
	loadEnvBool("BROWSER_INCOGNITO", &b.Incognito)
	loadEnvDuration("BROWSER_NAVIGATION_TIMEOUT", &b.NavigationTimeout)
	loadEnvDuration("BROWSER_POLL_INTERVAL", &b.PollInterval)
	loadEnvList("BROWSER_FLAGS", " ", &b.Flags)
}

func defaultBrowserConfig() browserConfig {
	return browserConfig{
		Headless:          true,
		Stealth:           true,
		Incognito:         true,
		NavigationTimeout: 30 * time.Second,
		PollInterval:      200 * time.Millisecond,
	}
}

type crawlConfig struct {
	Site       string   `json:"site"`
	Schema     string   `json:"schema"`
	Regions    []string `json:"regions"`
	Categories []string `json:"categories"`
	// Workers is how many searches run in parallel, each in its own browser context
	Workers      int `json:"workers"`
	MaxScrolls   int `json:"max_scrolls"`
	StallLimit   int `json:"stall_limit"`
	MaxPages     int `json:"max_pages"`
	MaxItems     int `json:"max_items"`
	RegionTokens int `json:"region_tokens"`
	Retries      int `json:"retries"`

	SearchTimeout  time.Duration `json:"search_timeout"`
	LocatorTimeout time.Duration `json:"locator_timeout"`
	FrameTimeout   time.Duration `json:"frame_timeout"`
	DetailTimeout  time.Duration `json:"detail_timeout"`
	ScrollSettle   time.Duration `json:"scroll_settle"`
	PageSettle     time.Duration `json:"page_settle"`
	// UnitTimeout bounds one (region, category) search end to end
	UnitTimeout time.Duration `json:"unit_timeout"`
}

func (c *crawlConfig) loadFromEnv() {
	loadEnvString("CRAWL_SITE", &c.Site)
	loadEnvString("CRAWL_SCHEMA", &c.Schema)
	loadEnvList("CRAWL_REGIONS", ",", &c.Regions)
	loadEnvList("CRAWL_CATEGORIES", ",", &c.Categories)
	loadEnvInt("CRAWL_WORKERS", &c.Workers)
	loadEnvInt("CRAWL_MAX_SCROLLS", &c.MaxScrolls)
	loadEnvInt("CRAWL_STALL_LIMIT", &c.StallLimit)
	loadEnvInt("CRAWL_MAX_PAGES", &c.MaxPages)
	loadEnvInt("CRAWL_MAX_ITEMS", &c.MaxItems)
	loadEnvInt("CRAWL_REGION_TOKENS", &c.RegionTokens)
	loadEnvInt("CRAWL_RETRIES", &c.Retries)
	loadEnvDuration("CRAWL_SEARCH_TIMEOUT", &c.SearchTimeout)
	loadEnvDuration("CRAWL_LOCATOR_TIMEOUT", &c.LocatorTimeout)
	loadEnvDuration("CRAWL_FRAME_TIMEOUT", &c.FrameTimeout)
	loadEnvDuration("CRAWL_DETAIL_TIMEOUT", &c.DetailTimeout)
	loadEnvDuration("CRAWL_SCROLL_SETTLE", &c.ScrollSettle)
	loadEnvDuration("CRAWL_PAGE_SETTLE", &c.PageSettle)
	loadEnvDuration("CRAWL_UNIT_TIMEOUT", &c.UnitTimeout)
}

func defaultCrawlConfig() crawlConfig {
	return crawlConfig{
		Site:   "navermap",
		Schema: "place",
		Regions: []string{
			"서울시 광진구 중곡동",
			"서울시 광진구 능동",
			"서울시 광진구 구의동",
			"서울시 광진구 광장동",
			"서울시 광진구 자양동",
			"서울시 광진구 화양동",
			"서울시 광진구 군자동",
		},
		Categories:     []string{"카페", "스터디카페", "보드게임카페", "영화관", "공원", "스포츠시설"},
		Workers:        1,
		MaxScrolls:     10,
		StallLimit:     3,
		MaxPages:       5,
		MaxItems:       0,
		RegionTokens:   2,
		Retries:        1,
		SearchTimeout:  10 * time.Second,
		LocatorTimeout: 3 * time.Second,
		FrameTimeout:   5 * time.Second,
		DetailTimeout:  5 * time.Second,
		ScrollSettle:   2 * time.Second,
		PageSettle:     3 * time.Second,
		UnitTimeout:    30 * time.Minute,
	}
}

type outputConfig struct {
	Dir     string `json:"dir"`
	CSV     bool   `json:"csv"`
	Summary bool   `json:"summary"`
}

func (o *outputConfig) loadFromEnv() {
	loadEnvString("OUTPUT_DIR", &o.Dir)
	loadEnvBool("OUTPUT_CSV", &o.CSV)
	loadEnvBool("OUTPUT_SUMMARY", &o.Summary)
}

func defaultOutputConfig() outputConfig {
	return outputConfig{
		Dir:     "crawling_results",
		CSV:     true,
		Summary: true,
	}
}

type Config struct {
	Listen   listenConfig
	PgSql    pgSqlConfig
	Security securityConfig
	Nats     natsConfig
	Redis    redisConfig
	GCS      GCSConfig
	Log      logConfig
	Browser  browserConfig
	Crawl    crawlConfig
	Output   outputConfig
}

func (c *Config) LoadFromEnv() {
	c.Listen.loadFromEnv()
	c.PgSql.loadFromEnv()
	c.Security.loadFromEnv()
	c.Nats.loadFromEnv()
	c.Redis.loadFromEnv()
	c.GCS.loadFromEnv()
	c.Log.loadFromEnv()
	c.Browser.loadFromEnv()
	c.Crawl.loadFromEnv()
	c.Output.loadFromEnv()

	log.Debug().
		Bool("postgres", c.PgSql.Enabled).
		Bool("redis", c.Redis.Enabled).
		Bool("nats", c.Nats.Enabled).
		Bool("gcs", c.GCS.Enabled()).
		Msg("Config loaded")
}

func DefaultConfig() Config {
	return Config{
		Listen:   defaultListenConfig(),
		PgSql:    defaultPgSql(),
		Security: defaultSecurityConfig(),
		Nats:     defaultNatsConfig(),
		Redis:    defaultRedisConfig(),
		GCS:      defaultGcsConfig(),
		Log:      defaultLogConfig(),
		Browser:  defaultBrowserConfig(),
		Crawl:    defaultCrawlConfig(),
		Output:   defaultOutputConfig(),
	}
}

// Validate rejects settings the crawler cannot run with
func (c Config) Validate() error {
	switch {
	case c.Crawl.Workers < 1:
		return fmt.Errorf("%w: CRAWL_WORKERS must be at least 1, got %d", common.ErrInvalidConfig, c.Crawl.Workers)
	case c.Crawl.MaxScrolls < 0 || c.Crawl.MaxPages < 0 || c.Crawl.MaxItems < 0:
		return fmt.Errorf("%w: crawl limits cannot be negative", common.ErrInvalidConfig)
	case c.Crawl.SearchTimeout <= 0 || c.Crawl.LocatorTimeout <= 0 || c.Crawl.FrameTimeout <= 0 || c.Crawl.DetailTimeout <= 0:
		return fmt.Errorf("%w: crawl timeouts must be positive", common.ErrInvalidConfig)
	case c.Output.Dir == "" && (c.Output.CSV || c.Output.Summary):
		return fmt.Errorf("%w: OUTPUT_DIR is required when csv or summary output is on", common.ErrInvalidConfig)
	case c.Nats.Enabled && c.Nats.Stream == "":
		return fmt.Errorf("%w: NATS_STREAM is required when NATS is enabled", common.ErrInvalidConfig)
	}
	return nil
}
