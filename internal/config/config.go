// Package config loads roistat settings: defaults, then an optional config
// file, then ROISTAT_* environment variables.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go-roi-inspector/internal/batch"
	"go-roi-inspector/internal/decode"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. ROISTAT_SERVER_PORT.
const EnvPrefix = "ROISTAT"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Decode  DecodeConfig  `mapstructure:"decode"`
	Batch   batch.Options `mapstructure:"batch"`
	Storage StorageConfig `mapstructure:"storage"`
	Results ResultsConfig `mapstructure:"results"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	// RateLimit caps measure and batch requests per second; 0 disables it
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// DecodeConfig selects the decoder and carries the decode settings applied
// to every image.
type DecodeConfig struct {
	Decoder          string          `mapstructure:"decoder"`
	Command          string          `mapstructure:"command"`
	Timeout          time.Duration   `mapstructure:"timeout"`
	Settings         decode.Settings `mapstructure:",squash"`
	PreviewMaxWidth  int             `mapstructure:"preview_max_width"`
	PreviewMaxHeight int             `mapstructure:"preview_max_height"`
}

type StorageConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	Azure       AzureConfig   `mapstructure:"azure"`
}

type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Endpoint    string `mapstructure:"endpoint"`
}

// ResultsConfig points at the run database; an empty path disables persistence.
type ResultsConfig struct {
	Database string `mapstructure:"database"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Server.Host), strconv.Itoa(c.Server.Port))
}

// SetDefaults registers every key so that environment variables are seen
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("server.max_request_body_size", 10*1024*1024) // 10MB
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.rate_burst", 4)

	v.SetDefault("decode.decoder", string(decode.KindBuiltin))
	v.SetDefault("decode.command", decode.DefaultCommand)
	v.SetDefault("decode.timeout", 2*time.Minute)
	v.SetDefault("decode.bit_depth", 8)
	v.SetDefault("decode.white_balance", "camera")
	v.SetDefault("decode.wb_gains", []float64{})
	v.SetDefault("decode.gamma", "linear")
	v.SetDefault("decode.gamma_params", []float64{})
	v.SetDefault("decode.auto_brighten", false)
	// empty means the decoder's own default, see Config.DecodeDefaults
	v.SetDefault("decode.demosaic", "")
	v.SetDefault("decode.preview_max_width", 1200)
	v.SetDefault("decode.preview_max_height", 900)

	v.SetDefault("batch.extensions", batch.DefaultExtensions)
	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.continue_on_error", false)

	v.SetDefault("storage.http_timeout", 30*time.Second)
	v.SetDefault("storage.azure.account_name", "")
	v.SetDefault("storage.azure.account_key", "")
	v.SetDefault("storage.azure.endpoint", "")

	v.SetDefault("results.database", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// New returns a viper instance with defaults and environment binding but
// no config file. Callers such as the CLI bind flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration from path (TOML, YAML or JSON by extension)
// when path is not empty, applies the environment and validates.
func Load(path string) (*Config, error) {
	return LoadWithViper(New(), path)
}

// LoadWithViper is Load on a prepared viper instance.
func LoadWithViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out of range values instead of replacing them.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.MaxRequestBodySize <= 0 {
		return fmt.Errorf("server.max_request_body_size must be > 0 (got %d)", c.Server.MaxRequestBodySize)
	}
	if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateBurst < 1) {
		return fmt.Errorf("server.rate_limit must be >= 0 and server.rate_burst >= 1 when limiting (got %g, %d)",
			c.Server.RateLimit, c.Server.RateBurst)
	}
	if c.Server.RequestTimeout <= 0 || c.Decode.Timeout <= 0 || c.Storage.HTTPTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, decode=%s, http=%s)",
			c.Server.RequestTimeout, c.Decode.Timeout, c.Storage.HTTPTimeout)
	}

	switch decode.Kind(c.Decode.Decoder) {
	case decode.KindBuiltin, decode.KindExec:
	default:
		return fmt.Errorf("unknown decode.decoder %q (want %s or %s)", c.Decode.Decoder, decode.KindBuiltin, decode.KindExec)
	}
	dc, err := c.DecodeSettings()
	if err != nil {
		return fmt.Errorf("invalid decode settings: %w", err)
	}
	if decode.Kind(c.Decode.Decoder) == decode.KindBuiltin && dc.Demosaic != decode.DemosaicLinear {
		return fmt.Errorf("decode.demosaic %q needs decode.decoder=%s; the %s decoder only interpolates linearly",
			dc.Demosaic, decode.KindExec, decode.KindBuiltin)
	}
	if c.Decode.PreviewMaxWidth <= 0 || c.Decode.PreviewMaxHeight <= 0 {
		return fmt.Errorf("preview bounds must be > 0 (got %dx%d)", c.Decode.PreviewMaxWidth, c.Decode.PreviewMaxHeight)
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1 (got %d)", c.Batch.Workers)
	}
	if len(c.Batch.Extensions) == 0 {
		return fmt.Errorf("batch.extensions must not be empty")
	}

	if (c.Storage.Azure.AccountName == "") != (c.Storage.Azure.AccountKey == "") {
		return fmt.Errorf("storage.azure.account_name and storage.azure.account_key must be set together")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// DecodeDefaults is the decode section with an unset demosaic algorithm
// replaced by the configured decoder's default.
func (c *Config) DecodeDefaults() decode.Settings {
	s := c.Decode.Settings
	if strings.TrimSpace(s.Demosaic) == "" {
		s.Demosaic = string(decode.Kind(c.Decode.Decoder).DefaultDemosaic())
	}
	return s
}

// DecodeSettings parses the decode section.
func (c *Config) DecodeSettings() (decode.Config, error) {
	return c.DecodeDefaults().Config()
}

// AzureEnabled reports whether blob credentials were supplied.
func (c *Config) AzureEnabled() bool {
	return c.Storage.Azure.AccountName != ""
}
