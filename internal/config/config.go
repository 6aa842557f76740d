package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "NEWS_CRAWLER_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	listenAddrEnv  = "NEWS_CRAWLER_ADDR"
	exportDirEnv   = "NEWS_CRAWLER_EXPORT_DIR"
	runTTLEnv      = "NEWS_CRAWLER_RUN_TTL"
)

// Duration wraps time.Duration so YAML values like "24h" parse directly.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds high-level settings required across the application.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Logging   LoggingConfig     `yaml:"logging"`
	Database  DatabaseConfig    `yaml:"database"`
	Crawler   CrawlerConfig     `yaml:"crawler"`
	Registry  RegistryConfig    `yaml:"registry"`
	Retrainer RetrainerConfig   `yaml:"retrainer"`
	Export    ExportConfig      `yaml:"export"`
	Sites     []SiteConfig      `yaml:"sites"`
	Aliases   map[string]string `yaml:"aliases"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig controls slog verbosity and format.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// CrawlerConfig bounds crawl concurrency and per-source behavior.
type CrawlerConfig struct {
	Workers           int      `yaml:"workers"`
	SourceTimeout     Duration `yaml:"sourceTimeout"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond"`
	Burst             int      `yaml:"burst"`
	CandidateBudget   int      `yaml:"candidateBudget"`
	AdvancedBudget    int      `yaml:"advancedBudget"`
	ExcerptLimit      int      `yaml:"excerptLimit"`
	WechatSearchURL   string   `yaml:"wechatSearchUrl"`
	WechatMaxResults  int      `yaml:"wechatMaxResults"`
	MinTitleLength    int      `yaml:"minTitleLength"`
	MinExcerptLength  int      `yaml:"minExcerptLength"`
}

// RegistryConfig governs run retention. Runs still open after RunTTL become
// expired and ineligible for review.
type RegistryConfig struct {
	RunTTL        Duration `yaml:"runTtl"`
	SweepInterval Duration `yaml:"sweepInterval"`
}

// RetrainerConfig controls when the classifier is retrained.
type RetrainerConfig struct {
	MinExamples int `yaml:"minExamples"`
}

// ExportConfig locates the durable CSV artifact directory.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// SiteConfig describes a single site: where its channel pages live and which
// URL shapes count as article pages.
type SiteConfig struct {
	Name            string   `yaml:"name"`
	Domain          string   `yaml:"domain"`
	ChannelPages    []string `yaml:"channelPages"`
	ArticlePatterns []string `yaml:"articlePatterns"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}
	if len(cfg.Aliases) == 0 {
		cfg.Aliases = defaultConfig().Aliases
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(exportDirEnv); v != "" {
		c.Export.Dir = v
	}

	if v := os.Getenv(runTTLEnv); v != "" {
		if parsed, err := time.ParseDuration(v); err != nil {
			log.Printf("config: invalid %s=%q: %v (keeping %s)", runTTLEnv, v, err, c.Registry.RunTTL.Std())
		} else {
			c.Registry.RunTTL = Duration(parsed)
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.ShutdownTimeout != 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.JSON {
		base.Logging.JSON = true
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Crawler.Workers > 0 {
		base.Crawler.Workers = override.Crawler.Workers
	}
	if override.Crawler.SourceTimeout != 0 {
		base.Crawler.SourceTimeout = override.Crawler.SourceTimeout
	}
	if override.Crawler.RequestsPerSecond > 0 {
		base.Crawler.RequestsPerSecond = override.Crawler.RequestsPerSecond
	}
	if override.Crawler.Burst > 0 {
		base.Crawler.Burst = override.Crawler.Burst
	}
	if override.Crawler.CandidateBudget > 0 {
		base.Crawler.CandidateBudget = override.Crawler.CandidateBudget
	}
	if override.Crawler.AdvancedBudget > 0 {
		base.Crawler.AdvancedBudget = override.Crawler.AdvancedBudget
	}
	if override.Crawler.ExcerptLimit > 0 {
		base.Crawler.ExcerptLimit = override.Crawler.ExcerptLimit
	}
	if override.Crawler.WechatSearchURL != "" {
		base.Crawler.WechatSearchURL = override.Crawler.WechatSearchURL
	}
	if override.Crawler.WechatMaxResults > 0 {
		base.Crawler.WechatMaxResults = override.Crawler.WechatMaxResults
	}
	if override.Crawler.MinTitleLength > 0 {
		base.Crawler.MinTitleLength = override.Crawler.MinTitleLength
	}
	if override.Crawler.MinExcerptLength > 0 {
		base.Crawler.MinExcerptLength = override.Crawler.MinExcerptLength
	}

	if override.Registry.RunTTL != 0 {
		base.Registry.RunTTL = override.Registry.RunTTL
	}
	if override.Registry.SweepInterval != 0 {
		base.Registry.SweepInterval = override.Registry.SweepInterval
	}

	if override.Retrainer.MinExamples > 0 {
		base.Retrainer.MinExamples = override.Retrainer.MinExamples
	}

	if override.Export.Dir != "" {
		base.Export.Dir = override.Export.Dir
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}
	if len(override.Aliases) > 0 {
		base.Aliases = override.Aliases
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:5000",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Crawler: CrawlerConfig{
			Workers:           4,
			SourceTimeout:     Duration(25 * time.Second),
			RequestsPerSecond: 4,
			Burst:             4,
			CandidateBudget:   30,
			AdvancedBudget:    60,
			ExcerptLimit:      240,
			WechatSearchURL:   "https://weixin.sogou.com/weixin?type=2&query=",
			WechatMaxResults:  30,
			MinTitleLength:    6,
			MinExcerptLength:  30,
		},
		Registry: RegistryConfig{
			RunTTL:        Duration(24 * time.Hour),
			SweepInterval: Duration(time.Hour),
		},
		Retrainer: RetrainerConfig{MinExamples: 20},
		Export:    ExportConfig{Dir: "exports"},
		Sites:     defaultSites(),
		Aliases:   defaultAliases(),
	}
}

func defaultSites() []SiteConfig {
	return []SiteConfig{
		{
			Name:   "dayoo",
			Domain: "dayoo.com",
			ChannelPages: []string{
				"https://news.dayoo.com/guangzhou/139995.shtml",
				"https://news.dayoo.com/finance/139999.shtml",
			},
			ArticlePatterns: []string{
				`/h5/html5/20\d{2}-\d{2}/\d{2}/content[_\d]+\.htm`,
				`/pc/html/20\d{2}-\d{2}/\d{2}/content[_\d]+\.htm`,
				`/20\d{2}-\d{2}/\d{2}/content[_\d]+\.htm`,
			},
		},
		{
			Name:   "southcn",
			Domain: "southcn.com",
			ChannelPages: []string{
				"https://www.southcn.com/node_1_2.shtml",
			},
			ArticlePatterns: []string{
				`/content/20\d{2}-\d{2}/\d{2}/content_\d+\.htm`,
				`/20\d{2}-\d{2}/\d{2}/content_\d+\.htm`,
			},
		},
		{
			Name:   "ycwb",
			Domain: "ycwb.com",
			ChannelPages: []string{
				"https://news.ycwb.com/node_3232.htm",
			},
			ArticlePatterns: []string{
				`/20\d{2}-\d{2}/\d{2}/content_\d+\.htm[l]?`,
				`/20\d{2}-\d{2}/\d{2}/\d+\.htm[l]?`,
			},
		},
		{
			Name:   "people",
			Domain: "people.com.cn",
			ChannelPages: []string{
				"http://society.people.com.cn/",
			},
			ArticlePatterns: []string{
				`/n\d/20\d{2}/\d{4}/c\d+-\d+\.html`,
				`/20\d{2}/\d{2}/\d{2}/c\d+-\d+\.html`,
			},
		},
		{
			Name:   "xinhuanet",
			Domain: "xinhuanet.com",
			ChannelPages: []string{
				"http://www.news.cn/politics/",
			},
			ArticlePatterns: []string{
				`/20\d{2}-\d{2}/\d{2}/c_.*?\.htm`,
				`/20\d{2}-\d{2}/\d{2}/\w+_\d+\.htm`,
			},
		},
	}
}

func defaultAliases() map[string]string {
	return map[string]string{
		"大洋网":  "dayoo.com",
		"广州日报": "dayoo.com",
		"南方日报": "southcn.com",
		"南方+":  "southcn.com",
		"羊城晚报": "ycwb.com",
		"人民网":  "people.com.cn",
		"新华网":  "xinhuanet.com",
	}
}
