package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server" validate:"required"`
	Browser    BrowserConfig    `koanf:"browser" validate:"required"`
	Locator    LocatorConfig    `koanf:"locator" validate:"required"`
	Screenshot ScreenshotConfig `koanf:"screenshot" validate:"required"`
	Content    ContentConfig    `koanf:"content" validate:"required"`
	Cache      CacheConfig      `koanf:"cache" validate:"required"`
	Relay      RelayConfig      `koanf:"relay" validate:"required"`
	Report     ReportConfig     `koanf:"report"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address           string        `koanf:"address" validate:"required"`
	PublicPrefix      string        `koanf:"public_prefix" validate:"required,startswith=/,endswith=/"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"required"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"required"`
}

// Engine selects how pages are rendered.
type Engine string

const (
	EngineChrome Engine = "chrome"
	EngineStatic Engine = "static"
)

// BrowserConfig holds settings for page rendering.
type BrowserConfig struct {
	Engine            Engine        `koanf:"engine" validate:"required,oneof=chrome static"`
	ChromePath        string        `koanf:"chrome_path" validate:"required_if=Engine chrome"`
	Headless          bool          `koanf:"headless"`
	NoSandbox         bool          `koanf:"no_sandbox"`
	NavigationTimeout time.Duration `koanf:"navigation_timeout" validate:"required"`
	MaxSessions       int64         `koanf:"max_sessions" validate:"required,min=1"`
	StaticDelay       time.Duration `koanf:"static_delay"`
}

// LocatorConfig holds the bounded waits used while looking for a video source.
type LocatorConfig struct {
	SelectorTimeout  time.Duration `koanf:"selector_timeout" validate:"required"`
	AttributeTimeout time.Duration `koanf:"attribute_timeout" validate:"required,max=5s"`
	SettleDelay      time.Duration `koanf:"settle_delay"`
}

// ScreenshotConfig holds screenshot output settings. Dir is also served
// under ServerConfig.PublicPrefix.
type ScreenshotConfig struct {
	Dir      string `koanf:"dir" validate:"required"`
	Required bool   `koanf:"required"`
}

// ContentConfig describes how content ids are derived from and mapped back to URLs.
type ContentConfig struct {
	IDPattern   string `koanf:"id_pattern" validate:"required"`
	URLTemplate string `koanf:"url_template" validate:"required,contains={contentID}"`
}

// CacheBackend selects the ContentCache store.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheSQLite CacheBackend = "sqlite"
)

// CacheConfig holds content cache settings.
type CacheConfig struct {
	Backend  CacheBackend `koanf:"backend" validate:"required,oneof=memory redis sqlite"`
	Capacity int          `koanf:"capacity" validate:"min=0"`
	Redis    RedisConfig  `koanf:"redis"`
	SQLite   SQLiteConfig `koanf:"sqlite"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Prefix   string        `koanf:"prefix"`
	TTL      time.Duration `koanf:"ttl"`
}

// SQLiteConfig holds the sqlite database location.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// RelayConfig holds upstream streaming settings.
type RelayConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	BufferSize int           `koanf:"buffer_size" validate:"required,min=4096"`
	ProxyLinks bool          `koanf:"proxy_links"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	OutputFile string `koanf:"output_file"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// ConfigFrom extracts the Config from the CLI command metadata.
func ConfigFrom(cmd *cli.Command) (*Config, error) {
	v, ok := cmd.Root().Metadata["config"]
	if !ok {
		return nil, fmt.Errorf("config not found in command metadata")
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, fmt.Errorf("config has unexpected type %T", v)
	}
	return cfg, nil
}
