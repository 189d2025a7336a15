package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	HTTP     HTTPConfig      `mapstructure:"http"`
	State    StateConfig     `mapstructure:"state"`
	Database DatabaseConfig  `mapstructure:"database"`
	Synonyms []SynonymConfig `mapstructure:"synonyms" validate:"unique=Name,dive"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=0,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type HTTPConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	RetryAttempts  uint          `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
}

type StateDriver string

const (
	StateDriverNone  StateDriver = "none"
	StateDriverYAML  StateDriver = "yaml"
	StateDriverMySQL StateDriver = "mysql"
)

type StateConfig struct {
	Driver    StateDriver `mapstructure:"driver" validate:"oneof=none yaml mysql"`
	Directory string      `mapstructure:"directory" validate:"required_if=Driver yaml"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

// SynonymConfig is one dynamically refreshed synonym source.
type SynonymConfig struct {
	Name         string        `mapstructure:"name" validate:"required"`
	SynonymsPath string        `mapstructure:"synonyms_path" validate:"required,location"`
	Interval     time.Duration `mapstructure:"interval"`
	// Expand defaults to true when omitted.
	Expand      *bool  `mapstructure:"expand"`
	Lenient     bool   `mapstructure:"lenient"`
	IgnoreCase  bool   `mapstructure:"ignore_case"`
	Format      string `mapstructure:"format" validate:"omitempty,oneof=solr wordnet inflection"`
	Incremental bool   `mapstructure:"incremental"`
	Callback    bool   `mapstructure:"callback"`
}

const DefaultInterval = 60 * time.Second

// ShouldExpand reports the configured expand flag, true when omitted.
func (c SynonymConfig) ShouldExpand() bool {
	return c.Expand == nil || *c.Expand
}

// IsRemote reports whether the source is fetched over HTTP.
func (c SynonymConfig) IsRemote() bool {
	return strings.HasPrefix(c.SynonymsPath, "http://") || strings.HasPrefix(c.SynonymsPath, "https://")
}

// Synonym returns the source configured with name.
func (cfg *Config) Synonym(name string) (SynonymConfig, bool) {
	for _, s := range cfg.Synonyms {
		if s.Name == name {
			return s, true
		}
	}
	return SynonymConfig{}, false
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dynsyn")
	}
	v.SetEnvPrefix("DYNSYN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.connect_timeout", 10*time.Second)
	v.SetDefault("http.probe_timeout", 15*time.Second)
	v.SetDefault("http.fetch_timeout", 60*time.Second)
	v.SetDefault("http.retry_attempts", 2)
	v.SetDefault("http.retry_delay", 500*time.Millisecond)
	v.SetDefault("http.user_agent", "dynsyn")
	v.SetDefault("state.driver", string(StateDriverNone))
	v.SetDefault("state.directory", "state")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "dynsyn")
	v.SetDefault("database.username", "user")

	// Bind database password to environment variable
	if err := v.BindEnv("database.password", "DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind DB_PASSWORD environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}
	for i := range cfg.Synonyms {
		if cfg.Synonyms[i].Interval <= 0 {
			cfg.Synonyms[i].Interval = DefaultInterval
		}
		cfg.Synonyms[i].Format = strings.ToLower(cfg.Synonyms[i].Format)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}

// secondsToDurationHook reads plain numbers as seconds, so "interval: 60" means one minute.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}
