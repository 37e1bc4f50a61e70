// Package config loads the dashboard configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultExtension = "yaml"
	defaultTagName   = "yaml"

	// DefaultEnvPrefix prefixes every environment override, e.g. SUPPLY_API_BASE_URL.
	DefaultEnvPrefix = "SUPPLY"
)

type Binder interface {
	Bind(v *viper.Viper) error
}

type Loader interface {
	Load(name, path, envPrefix string, binder Binder) (Config, error)
}

type Config struct {
	API       API       `yaml:"api"`
	Server    Server    `yaml:"server"`
	Session   Session   `yaml:"session"`
	Cache     Cache     `yaml:"cache"`
	Messaging Messaging `yaml:"messaging"`
	Metrics   Metrics   `yaml:"metrics"`

	ManifestPath string `yaml:"manifest_path"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.API, validation.Required),
		validation.Field(&c.Server),
		validation.Field(&c.Session, validation.Required),
		validation.Field(&c.Cache),
		validation.Field(&c.Messaging),
		validation.Field(&c.Metrics),
		validation.Field(&c.LogLevel, validation.Required, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
	)
}

// API is the REST backend the dashboard reads and writes.
type API struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (a API) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.BaseURL, validation.Required, is.URL),
		validation.Field(&a.TimeoutSeconds, validation.Min(0)),
	)
}

// Timeout returns the per-request timeout, zero meaning the client default.
func (a API) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Server holds the two listeners. The fiber app serves Address; chat, metrics
// and the plain net/http API share HubAddress.
type Server struct {
	Address    string `yaml:"address"`
	HubAddress string `yaml:"hub_address"`
	BasePath   string `yaml:"base_path"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
		validation.Field(&s.HubAddress, validation.When(s.HubAddress != "", validation.NotIn(s.Address).Error("must differ from address"))),
		validation.Field(&s.BasePath, validation.By(func(v any) error {
			if p, _ := v.(string); p != "" && !strings.HasPrefix(p, "/") {
				return fmt.Errorf("must start with /")
			}
			return nil
		})),
	)
}

// Session names the two on-device identity stores. The persistent one is read first.
type Session struct {
	Dir            string `yaml:"dir"`
	PersistentFile string `yaml:"persistent_file"`
	SessionFile    string `yaml:"session_file"`
}

func (s Session) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Dir, validation.Required),
		validation.Field(&s.PersistentFile, validation.Required),
		validation.Field(&s.SessionFile, validation.Required),
	)
}

// PersistentPath joins Dir and PersistentFile.
func (s Session) PersistentPath() string { return filepath.Join(s.Dir, s.PersistentFile) }

// SessionPath joins Dir and SessionFile.
func (s Session) SessionPath() string { return filepath.Join(s.Dir, s.SessionFile) }

type Cache struct {
	Dir             string `yaml:"dir"`
	ChartTTLSeconds int    `yaml:"chart_ttl_seconds"`
}

func (c Cache) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ChartTTLSeconds, validation.Min(0)),
	)
}

// ChartTTL is the rendered chart cache lifetime.
func (c Cache) ChartTTL() time.Duration {
	return time.Duration(c.ChartTTLSeconds) * time.Second
}

type Messaging struct {
	URL              string `yaml:"url"`
	TypingTTLSeconds int    `yaml:"typing_ttl_seconds"`
}

func (m Messaging) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.URL, is.RequestURL),
		validation.Field(&m.TypingTTLSeconds, validation.Min(0)),
	)
}

// TypingTTL is how long a typing signal stays visible.
func (m Messaging) TypingTTL() time.Duration {
	return time.Duration(m.TypingTTLSeconds) * time.Second
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (m Metrics) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Path, validation.When(m.Enabled, validation.Required)),
	)
}

// Defaults returns the values used when the file leaves a key unset.
func Defaults() map[string]any {
	return map[string]any{
		"api.timeout_seconds":          15,
		"server.address":               ":8080",
		"server.hub_address":           ":8081",
		"server.base_path":             "/dashboard",
		"session.dir":                  ".supply",
		"session.persistent_file":      "local.json",
		"session.session_file":         "session.json",
		"cache.dir":                    ".supply/cache",
		"cache.chart_ttl_seconds":      60,
		"messaging.typing_ttl_seconds": 3,
		"metrics.path":                 "/metrics",
		"log_level":                    "info",
		"log_format":                   "console",
	}
}

type FileParts struct {
	FileName string
	Path     string
}

func ProcessConfigPath(configFile string) (FileParts, error) {
	absolutePath, err := filepath.Abs(configFile)
	if err != nil {
		return FileParts{}, fmt.Errorf("convert to absolute path: %w", err)
	}

	fileName := filepath.Base(absolutePath)
	extension := filepath.Ext(fileName)
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	if ext != defaultExtension && ext != "yml" {
		return FileParts{}, fmt.Errorf("config file must have extension %s, got: %s", defaultExtension, extension)
	}

	return FileParts{
		FileName: fileName[:len(fileName)-len(extension)],
		Path:     filepath.Dir(absolutePath),
	}, nil
}

func NewFileSystemLoader() *FileSystemLoader {
	return &FileSystemLoader{}
}

type FileSystemLoader struct{}

func (fs *FileSystemLoader) Load(name, path, envPrefix string, b Binder) (Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetConfigType(defaultExtension)

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if b != nil {
		if err := b.Bind(v); err != nil {
			return Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var config Config
	err := v.Unmarshal(&config, func(cfg *mapstructure.DecoderConfig) {
		cfg.TagName = defaultTagName
	})
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}

// LoadFile reads configFile, applies SUPPLY_* overrides and validates the result.
func LoadFile(configFile string, b Binder) (Config, error) {
	parts, err := ProcessConfigPath(configFile)
	if err != nil {
		return Config{}, err
	}
	cfg, err := NewFileSystemLoader().Load(parts.FileName, parts.Path, DefaultEnvPrefix, b)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

type EnvBinder struct {
	binders map[string]string
}

func (e *EnvBinder) Bind(v *viper.Viper) error {
	for envVar, key := range e.binders {
		if err := v.BindEnv(key, envVar); err != nil {
			return fmt.Errorf("bind env var %s to key %s: %w", envVar, key, err)
		}
	}
	return nil
}

func NewEnvBinder(binders map[string]string) *EnvBinder {
	return &EnvBinder{
		binders: binders,
	}
}

// NewDefaultEnvBinder maps the conventional unprefixed variables onto config keys.
func NewDefaultEnvBinder() *EnvBinder {
	return NewEnvBinder(map[string]string{
		"SUPPLY_API_URL": "api.base_url",
		"CHAT_URL":       "messaging.url",
		"LOG_LEVEL":      "log_level",
	})
}
