// SPDX-License-Identifier: MIT

// Package config provides configuration management for sd-watcher-afk.
// Precedence is ENV > YAML file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sd-tools/sd-watcher-afk/internal/idle"
	"github.com/sd-tools/sd-watcher-afk/internal/queue"
)

// Config is the effective runtime configuration.
type Config struct {
	ServerURL string
	Timeout   time.Duration
	PollTime  time.Duration
	Testing   bool
	DataDir   string
	Listen    string
	LogLevel  string

	IdleProvider string

	QueueBackend  string
	QueueMax      int
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ClientTimeout    time.Duration
	ClientRetries    int
	ClientBackoff    time.Duration
	ClientMaxBackoff time.Duration
	ClientRateLimit  float64
	ClientRateBurst  int
	BreakerThreshold int
	BreakerReset     time.Duration

	OTLPEndpoint string

	Hostname string
	Version  string
}

// Default profiles, mirroring the shipped TOML of the original watcher:
// production waits 5 minutes before a user counts as AFK; the testing
// profile reacts within seconds and talks to the testing server port.
const (
	defaultTimeout        = 300 * time.Second
	defaultPollTime       = 5 * time.Second
	defaultTestingTimeout = 20 * time.Second
	defaultTestingPoll    = 1 * time.Second

	defaultServerURL        = "http://localhost:5600"
	defaultTestingServerURL = "http://localhost:5666"

	defaultListen = "127.0.0.1:5610"
)

// ClientName is the watcher's client identifier, suffixed in testing mode so
// test buckets never collide with real ones.
func (c Config) ClientName() string {
	if c.Testing {
		return "sd-watcher-afk-testing"
	}
	return "sd-watcher-afk"
}

// BucketID derives the bucket name from client name and hostname.
func (c Config) BucketID() string {
	return c.ClientName() + "_" + c.Hostname
}

// StatePath is where the watcher snapshot lives.
func (c Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// FileConfig is the YAML configuration structure.
type FileConfig struct {
	ServerURL string `yaml:"serverUrl,omitempty"`
	Timeout   string `yaml:"timeout,omitempty"`  // e.g. "300s"
	PollTime  string `yaml:"pollTime,omitempty"` // e.g. "5s"
	Testing   *bool  `yaml:"testing,omitempty"`
	DataDir   string `yaml:"dataDir,omitempty"`
	Listen    string `yaml:"listen,omitempty"`
	LogLevel  string `yaml:"logLevel,omitempty"`

	IdleProvider string `yaml:"idleProvider,omitempty"`

	Queue struct {
		Backend       string `yaml:"backend,omitempty"`
		MaxItems      int    `yaml:"maxItems,omitempty"`
		RedisAddr     string `yaml:"redisAddr,omitempty"`
		RedisPassword string `yaml:"redisPassword,omitempty"`
		RedisDB       int    `yaml:"redisDb,omitempty"`
	} `yaml:"queue,omitempty"`

	Client struct {
		Timeout          string  `yaml:"timeout,omitempty"`
		Retries          *int    `yaml:"retries,omitempty"`
		Backoff          string  `yaml:"backoff,omitempty"`
		MaxBackoff       string  `yaml:"maxBackoff,omitempty"`
		RateLimit        float64 `yaml:"rateLimit,omitempty"`
		RateBurst        int     `yaml:"rateBurst,omitempty"`
		BreakerThreshold int     `yaml:"breakerThreshold,omitempty"`
		BreakerReset     string  `yaml:"breakerReset,omitempty"`
	} `yaml:"client,omitempty"`

	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
}

// Loader loads configuration with ENV > file > defaults precedence.
type Loader struct {
	path    string
	version string
}

// NewLoader creates a loader. path may be empty, in which case
// $AFK_DATA/config.yaml is used when it exists.
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Load resolves the effective configuration.
func (l *Loader) Load() (Config, error) {
	file, err := l.readFile()
	if err != nil {
		return Config{}, err
	}

	// Testing mode flips the defaults, so resolve it first.
	testing := false
	if file != nil && file.Testing != nil {
		testing = *file.Testing
	}
	testing = ParseBool("AFK_TESTING", testing)

	cfg := defaults(testing)
	cfg.Version = l.version

	if file != nil {
		if err := mergeFile(&cfg, file); err != nil {
			return Config{}, err
		}
	}
	mergeEnv(&cfg)

	if cfg.Hostname == "" {
		host, err := os.Hostname()
		if err != nil {
			return Config{}, fmt.Errorf("config: hostname: %w", err)
		}
		cfg.Hostname = host
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) readFile() (*FileConfig, error) {
	path := l.path
	if path == "" {
		auto := filepath.Join(ParseString("AFK_DATA", defaultDataDir()), "config.yaml")
		if _, err := os.Stat(auto); err != nil {
			return nil, nil
		}
		path = auto
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var file FileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &file, nil
}

func defaults(testing bool) Config {
	cfg := Config{
		ServerURL:    defaultServerURL,
		Timeout:      defaultTimeout,
		PollTime:     defaultPollTime,
		Testing:      testing,
		DataDir:      defaultDataDir(),
		Listen:       defaultListen,
		LogLevel:     "info",
		IdleProvider: idle.SelectorAuto,

		QueueBackend: queue.BackendBadger,
		QueueMax:     4096,
		RedisAddr:    "localhost:6379",

		ClientTimeout:    10 * time.Second,
		ClientRetries:    2,
		ClientBackoff:    200 * time.Millisecond,
		ClientMaxBackoff: 5 * time.Second,
		ClientRateLimit:  20,
		ClientRateBurst:  10,
		BreakerThreshold: 5,
		BreakerReset:     30 * time.Second,
	}
	if testing {
		cfg.ServerURL = defaultTestingServerURL
		cfg.Timeout = defaultTestingTimeout
		cfg.PollTime = defaultTestingPoll
	}
	return cfg
}

func defaultDataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "sd-watcher-afk")
	}
	return filepath.Join(os.TempDir(), "sd-watcher-afk")
}

func mergeFile(dst *Config, src *FileConfig) error {
	setString(&dst.ServerURL, src.ServerURL)
	setString(&dst.DataDir, expandEnv(src.DataDir))
	setString(&dst.Listen, src.Listen)
	setString(&dst.LogLevel, src.LogLevel)
	setString(&dst.IdleProvider, src.IdleProvider)
	setString(&dst.OTLPEndpoint, src.OTLPEndpoint)

	if err := setDuration(&dst.Timeout, src.Timeout, "timeout"); err != nil {
		return err
	}
	if err := setDuration(&dst.PollTime, src.PollTime, "pollTime"); err != nil {
		return err
	}

	setString(&dst.QueueBackend, src.Queue.Backend)
	if src.Queue.MaxItems > 0 {
		dst.QueueMax = src.Queue.MaxItems
	}
	setString(&dst.RedisAddr, src.Queue.RedisAddr)
	setString(&dst.RedisPassword, src.Queue.RedisPassword)
	if src.Queue.RedisDB > 0 {
		dst.RedisDB = src.Queue.RedisDB
	}

	if err := setDuration(&dst.ClientTimeout, src.Client.Timeout, "client.timeout"); err != nil {
		return err
	}
	if src.Client.Retries != nil {
		dst.ClientRetries = *src.Client.Retries
	}
	if err := setDuration(&dst.ClientBackoff, src.Client.Backoff, "client.backoff"); err != nil {
		return err
	}
	if err := setDuration(&dst.ClientMaxBackoff, src.Client.MaxBackoff, "client.maxBackoff"); err != nil {
		return err
	}
	if src.Client.RateLimit > 0 {
		dst.ClientRateLimit = src.Client.RateLimit
	}
	if src.Client.RateBurst > 0 {
		dst.ClientRateBurst = src.Client.RateBurst
	}
	if src.Client.BreakerThreshold > 0 {
		dst.BreakerThreshold = src.Client.BreakerThreshold
	}
	if err := setDuration(&dst.BreakerReset, src.Client.BreakerReset, "client.breakerReset"); err != nil {
		return err
	}
	return nil
}

func mergeEnv(dst *Config) {
	dst.ServerURL = ParseString("AFK_SERVER_URL", dst.ServerURL)
	dst.Timeout = ParseDuration("AFK_TIMEOUT", dst.Timeout)
	dst.PollTime = ParseDuration("AFK_POLL_TIME", dst.PollTime)
	dst.DataDir = ParseString("AFK_DATA", dst.DataDir)
	dst.Listen = ParseString("AFK_LISTEN", dst.Listen)
	dst.LogLevel = ParseString("AFK_LOG_LEVEL", dst.LogLevel)
	dst.IdleProvider = ParseString("AFK_IDLE_PROVIDER", dst.IdleProvider)

	dst.QueueBackend = ParseString("AFK_QUEUE_BACKEND", dst.QueueBackend)
	dst.QueueMax = ParseInt("AFK_QUEUE_MAX", dst.QueueMax)
	dst.RedisAddr = ParseString("AFK_REDIS_ADDR", dst.RedisAddr)
	dst.RedisPassword = ParseString("AFK_REDIS_PASSWORD", dst.RedisPassword)
	dst.RedisDB = ParseInt("AFK_REDIS_DB", dst.RedisDB)

	dst.ClientTimeout = ParseDuration("AFK_CLIENT_TIMEOUT", dst.ClientTimeout)
	dst.ClientRetries = ParseInt("AFK_CLIENT_RETRIES", dst.ClientRetries)
	dst.ClientBackoff = ParseDuration("AFK_CLIENT_BACKOFF", dst.ClientBackoff)
	dst.ClientMaxBackoff = ParseDuration("AFK_CLIENT_MAX_BACKOFF", dst.ClientMaxBackoff)
	dst.ClientRateLimit = ParseFloat("AFK_CLIENT_RATE_LIMIT", dst.ClientRateLimit)
	dst.ClientRateBurst = ParseInt("AFK_CLIENT_RATE_BURST", dst.ClientRateBurst)
	dst.BreakerThreshold = ParseInt("AFK_BREAKER_THRESHOLD", dst.BreakerThreshold)
	dst.BreakerReset = ParseDuration("AFK_BREAKER_RESET", dst.BreakerReset)

	dst.OTLPEndpoint = ParseString("AFK_OTLP_ENDPOINT", dst.OTLPEndpoint)
	dst.Hostname = ParseString("AFK_HOSTNAME", dst.Hostname)
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func setDuration(dst *time.Duration, src, field string) error {
	if src == "" {
		return nil
	}
	d, err := time.ParseDuration(src)
	if err != nil {
		return fmt.Errorf("config: %s: %w", field, err)
	}
	*dst = d
	return nil
}

func expandEnv(s string) string {
	if s == "" {
		return ""
	}
	return os.ExpandEnv(s)
}
