// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SBCORPUS_FETCH_BATCH_SIZE.
const EnvPrefix = "SBCORPUS"

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	Files   FilesConfig   `mapstructure:"files"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Compile CompileConfig `mapstructure:"compile"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

// LoggingConfig toggles zap development features and the optional file tee.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
}

// Storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// StorageConfig selects where stores and corpora are persisted.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// FilesConfig names the objects written by each stage.
type FilesConfig struct {
	ArticleList string `mapstructure:"article_list"`
	Articles    string `mapstructure:"articles"`
	Corpus      string `mapstructure:"corpus"`
}

// ListingSelectors locate archive entries and the pagination controls.
type ListingSelectors struct {
	Entry      string `mapstructure:"entry"`
	TitleLink  string `mapstructure:"title_link"`
	Byline     string `mapstructure:"byline"`
	BylineItem string `mapstructure:"byline_item"`
	Consent    string `mapstructure:"consent"`
	LoadMore   string `mapstructure:"load_more"`
}

// HarvestConfig drives the archive pagination stage.
type HarvestConfig struct {
	ArchiveRoot    string           `mapstructure:"archive_root"`
	Years          []int            `mapstructure:"years"`
	Months         []int            `mapstructure:"months"`
	RefreshAfter   int              `mapstructure:"refresh_after"`
	SkipAfter      int              `mapstructure:"skip_after"`
	ClickDelay     time.Duration    `mapstructure:"click_delay"`
	ClickWait      time.Duration    `mapstructure:"click_wait"`
	YearDelay      time.Duration    `mapstructure:"year_delay"`
	MaxClicks      int              `mapstructure:"max_clicks"`
	NavTimeout     time.Duration    `mapstructure:"nav_timeout"`
	ConsentTimeout time.Duration    `mapstructure:"consent_timeout"`
	Headless       bool             `mapstructure:"headless"`
	UserAgent      string           `mapstructure:"user_agent"`
	Selectors      ListingSelectors `mapstructure:"selectors"`
}

// ArticleSelectors locate the parts of an article page.
type ArticleSelectors struct {
	Hero    string `mapstructure:"hero"`
	Summary string `mapstructure:"summary"`
	Author  string `mapstructure:"author"`
	Body    string `mapstructure:"body"`
}

// FetchConfig drives the content stage.
type FetchConfig struct {
	Timeout             time.Duration    `mapstructure:"timeout"`
	UserAgent           string           `mapstructure:"user_agent"`
	RespectRobots       bool             `mapstructure:"respect_robots"`
	BatchSize           int              `mapstructure:"batch_size"`
	MaxAttempts         int              `mapstructure:"max_attempts"`
	BackoffInitial      time.Duration    `mapstructure:"backoff_initial"`
	BackoffMax          time.Duration    `mapstructure:"backoff_max"`
	RatePerSecond       float64          `mapstructure:"rate_per_second"`
	Burst               int              `mapstructure:"burst"`
	ReadabilityFallback bool             `mapstructure:"readability_fallback"`
	Selectors           ArticleSelectors `mapstructure:"selectors"`
}

// CompileConfig holds the default author filter; empty means every author.
type CompileConfig struct {
	Author string `mapstructure:"author"`
}

// MetricsConfig enables the metrics/progress HTTP server when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// NotifyConfig enables checkpoint notifications when both fields are set.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether checkpoint notifications should be published.
func (n NotifyConfig) Enabled() bool {
	return n.ProjectID != "" && n.Topic != ""
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied Viper instance, so CLI flags bound
// with BindPFlag take part in the lookup.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "scraped_data")
	v.SetDefault("files.article_list", "article_list.json")
	v.SetDefault("files.articles", "articles.json")
	v.SetDefault("files.corpus", "corpus.txt")
	v.SetDefault("harvest.archive_root", "https://www.barcablaugranes.com/archives/")
	v.SetDefault("harvest.years", []int{2019})
	v.SetDefault("harvest.months", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	v.SetDefault("harvest.refresh_after", 3)
	v.SetDefault("harvest.skip_after", 7)
	v.SetDefault("harvest.click_delay", 2*time.Second)
	v.SetDefault("harvest.click_wait", 2*time.Second)
	v.SetDefault("harvest.year_delay", 5*time.Second)
	v.SetDefault("harvest.max_clicks", 0)
	v.SetDefault("harvest.nav_timeout", 30*time.Second)
	v.SetDefault("harvest.consent_timeout", 10*time.Second)
	v.SetDefault("harvest.headless", true)
	v.SetDefault("harvest.user_agent", "sbcorpus/0.1")
	v.SetDefault("harvest.selectors.entry", "div.c-entry-box--compact__body")
	v.SetDefault("harvest.selectors.title_link", "h2.c-entry-box--compact__title a")
	v.SetDefault("harvest.selectors.byline", "div.c-byline")
	v.SetDefault("harvest.selectors.byline_item", "span.c-byline__item")
	v.SetDefault("harvest.selectors.consent", `//*[@id="accept-privacy-consent"]/div`)
	v.SetDefault("harvest.selectors.load_more", ".c-archives-load-more__button")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.user_agent", "sbcorpus/0.1")
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.batch_size", 500)
	v.SetDefault("fetch.max_attempts", 2)
	v.SetDefault("fetch.backoff_initial", 250*time.Millisecond)
	v.SetDefault("fetch.backoff_max", 2*time.Second)
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.readability_fallback", false)
	v.SetDefault("fetch.selectors.hero", "div.c-entry-hero")
	v.SetDefault("fetch.selectors.summary", "h2.c-entry-summary")
	v.SetDefault("fetch.selectors.author", "span.c-byline__author-name")
	v.SetDefault("fetch.selectors.body", "div.c-entry-content")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, memory, gcs", c.Storage.Backend)
	}
	if c.Files.ArticleList == "" || c.Files.Articles == "" || c.Files.Corpus == "" {
		return fmt.Errorf("files.article_list, files.articles and files.corpus must be set")
	}
	if u, err := url.Parse(c.Harvest.ArchiveRoot); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("harvest.archive_root must be an absolute URL")
	}
	for _, m := range c.Harvest.Months {
		if m < 1 || m > 12 {
			return fmt.Errorf("harvest.months contains %d; months run 1-12", m)
		}
	}
	if c.Harvest.RefreshAfter <= 0 {
		return fmt.Errorf("harvest.refresh_after must be > 0")
	}
	if c.Harvest.SkipAfter < 0 {
		return fmt.Errorf("harvest.skip_after must be >= 0")
	}
	if c.Harvest.ClickWait <= 0 {
		return fmt.Errorf("harvest.click_wait must be > 0")
	}
	if c.Harvest.MaxClicks < 0 {
		return fmt.Errorf("harvest.max_clicks must be >= 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.BatchSize <= 0 {
		return fmt.Errorf("fetch.batch_size must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Fetch.RatePerSecond < 0 {
		return fmt.Errorf("fetch.rate_per_second must be >= 0")
	}
	if c.Fetch.Selectors.Body == "" {
		return fmt.Errorf("fetch.selectors.body must be set")
	}
	if (c.Notify.ProjectID == "") != (c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set together")
	}
	return nil
}

// SearchPaths lists where Discover looks for a config file, in order.
func SearchPaths() []string {
	paths := []string{"sbcorpus.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".sbcorpus", "sbcorpus.yaml"))
	}
	return append(paths, "/etc/sbcorpus/sbcorpus.yaml")
}

// Discover returns the first existing file in paths, or "" when none exists
// and defaults plus environment overrides should be used.
func Discover(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
