package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Identity-key priorities recognized by MapBy.
const (
	MapBySupplierCode      = "supplier-code"
	MapByInternalReference = "internal-reference"
	MapByBarcode           = "barcode"
)

// Config is the application configuration: store, logging and the list of
// import configurations the run command can trigger.
type Config struct {
	Store   StoreConfig    `mapstructure:"store"`
	Log     LogConfig      `mapstructure:"log"`
	Imports []ImportConfig `mapstructure:"imports"`
}

type StoreConfig struct {
	Dialect string `mapstructure:"dialect"` // sqlite | postgres | mysql
	DSN     string `mapstructure:"dsn"`
}

type LogConfig struct {
	File    string `mapstructure:"file"`
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// FeedConfig selects how the canonical items are obtained. Format json and
// csv use the built-in transports against URL/Token; format adapter calls a
// registered adapter by name with Params as its raw configuration.
type FeedConfig struct {
	Format  string         `mapstructure:"format"` // json | csv | adapter
	URL     string         `mapstructure:"url"`
	Token   string         `mapstructure:"token"`
	Adapter string         `mapstructure:"adapter"`
	Params  map[string]any `mapstructure:"params"`
}

// ImportConfig mirrors one vendor catalog configuration.
type ImportConfig struct {
	Name   string `mapstructure:"name"`
	Vendor string `mapstructure:"vendor"`
	MapBy  string `mapstructure:"map_by"`

	Feed FeedConfig `mapstructure:"feed"`

	DefaultCategory string `mapstructure:"default_category"`
	CategoryMapPath string `mapstructure:"category_map_path"`

	Publish   bool `mapstructure:"publish"`
	ChannelID uint `mapstructure:"channel_id"`

	BatchCommit    int  `mapstructure:"batch_commit"`
	ReplaceGallery bool `mapstructure:"replace_gallery"`
	MaxGallery     int  `mapstructure:"max_gallery"`
}

// AdapterName resolves which registered fetcher serves this feed.
func (f FeedConfig) AdapterName() string {
	switch f.Format {
	case "json", "csv":
		return f.Format
	default:
		return f.Adapter
	}
}

// RawParams renders the adapter parameters as JSON for the fetcher factory.
// Transport feeds get url/token merged in so the factories see one flat
// parameter object.
func (f FeedConfig) RawParams() (json.RawMessage, error) {
	params := map[string]any{}
	for k, v := range f.Params {
		params[k] = v
	}
	if f.Format == "json" || f.Format == "csv" {
		params["url"] = f.URL
		params["token"] = f.Token
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal feed params: %w", err)
	}
	return raw, nil
}

// Validate rejects configurations that would fail the run at the fetch
// stage; these are the fatal, run-level errors of the design.
func (c ImportConfig) Validate() error {
	switch c.Feed.Format {
	case "json", "csv":
		if c.Feed.URL == "" {
			return fmt.Errorf("import %q: feed url is required for %s feeds", c.Name, c.Feed.Format)
		}
	case "adapter":
		if c.Feed.Adapter == "" {
			return fmt.Errorf("import %q: feed adapter name is required", c.Name)
		}
	default:
		return fmt.Errorf("import %q: unknown feed format %q", c.Name, c.Feed.Format)
	}
	switch c.MapBy {
	case "", MapBySupplierCode, MapByInternalReference, MapByBarcode:
	default:
		return fmt.Errorf("import %q: unknown map_by %q", c.Name, c.MapBy)
	}
	return nil
}

// Load reads the configuration file (YAML or JSON) with environment
// overrides (VENDORSYNC_*).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("vendorsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.dialect", "sqlite")
	v.SetDefault("store.dsn", "vendorsync.db")
	v.SetDefault("log.file", "vendorsync.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for i := range cfg.Imports {
		if cfg.Imports[i].MapBy == "" {
			cfg.Imports[i].MapBy = MapBySupplierCode
		}
		if cfg.Imports[i].BatchCommit <= 0 {
			cfg.Imports[i].BatchCommit = 100
		}
		if cfg.Imports[i].MaxGallery <= 0 {
			cfg.Imports[i].MaxGallery = 8
		}
	}
	return &cfg, nil
}

// Import finds one import configuration by name.
func (c *Config) Import(name string) (*ImportConfig, error) {
	for i := range c.Imports {
		if c.Imports[i].Name == name {
			return &c.Imports[i], nil
		}
	}
	return nil, fmt.Errorf("no import configuration named %q", name)
}
