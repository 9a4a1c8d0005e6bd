package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	ProtocolText    = "text"
	ProtocolMessage = "message"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
	EnableTCP   bool   `mapstructure:"enable_tcp"`
	StaticRoot  string `mapstructure:"static_root"`
}

type EndpointConfig struct {
	Address string `mapstructure:"address"`
	Weight  int    `mapstructure:"weight"`
}

// EffectiveWeight treats an unset weight as 1.
func (e EndpointConfig) EffectiveWeight() int {
	if e.Weight == 0 {
		return 1
	}
	return e.Weight
}

type BackendConfig struct {
	Protocol      string           `mapstructure:"protocol"`
	Timeout       time.Duration    `mapstructure:"timeout"`
	DialTimeout   time.Duration    `mapstructure:"dial_timeout"`
	MaxInFlight   int64            `mapstructure:"max_in_flight"`
	MaxReplyBytes int64            `mapstructure:"max_reply_bytes"`
	Endpoints     []EndpointConfig `mapstructure:"endpoints"`
}

type HealthCheckConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type StrategyConfig struct {
	Type         string `mapstructure:"type"`
	VirtualNodes int    `mapstructure:"virtual_nodes"`
}

type CompressionConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Quality   int  `mapstructure:"quality"`
	Window    int  `mapstructure:"window"`
	ChunkSize int  `mapstructure:"chunk_size"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Backend     BackendConfig     `mapstructure:"backend"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Compression CompressionConfig `mapstructure:"compression"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Load reads config.yaml from ./config or the working directory.
func Load() (*Config, error) {
	return LoadFrom("./config", ".")
}

// LoadFrom reads config.yaml from the first of paths that has one. A missing
// file is not an error; defaults and environment variables still apply.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "[::1]:4433")
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.cert_file", "localhost.crt")
	v.SetDefault("server.key_file", "localhost.key")
	v.SetDefault("server.enable_tcp", true)
	v.SetDefault("server.static_root", "")

	v.SetDefault("backend.protocol", ProtocolText)
	v.SetDefault("backend.timeout", "60s")
	v.SetDefault("backend.dial_timeout", "5s")
	v.SetDefault("backend.max_in_flight", 256)
	v.SetDefault("backend.max_reply_bytes", 32<<20)
	v.SetDefault("backend.endpoints", []map[string]any{
		{"address": "127.0.0.1:3000", "weight": 1},
	})

	v.SetDefault("health_check.interval", "5s")

	v.SetDefault("strategy.type", "round-robin")
	v.SetDefault("strategy.virtual_nodes", 100)

	v.SetDefault("compression.enabled", true)
	v.SetDefault("compression.quality", 6)
	v.SetDefault("compression.window", 22)
	v.SetDefault("compression.chunk_size", 64<<10)

	v.SetDefault("metrics.buffer_size", 1024)

	v.SetDefault("logging.level", LogLevelInfo)
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.CertFile, validation.Required),
					validation.Field(&sc.KeyFile, validation.Required),
				)
			}),
		),
		validation.Field(&c.Backend,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BackendConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BackendConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.Protocol,
						validation.Required,
						validation.In(ProtocolText, ProtocolMessage),
					),
					validation.Field(&bc.Timeout, validation.Required, validation.Min(time.Millisecond)),
					validation.Field(&bc.DialTimeout, validation.Required, validation.Min(time.Millisecond)),
					validation.Field(&bc.MaxInFlight, validation.Min(int64(0))),
					validation.Field(&bc.MaxReplyBytes, validation.Required, validation.Min(int64(1))),
					validation.Field(&bc.Endpoints,
						validation.Required,
						validation.Length(1, 0),
						validation.Each(validation.By(endpointRule(bc.Protocol))),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval, validation.Required, validation.Min(10*time.Millisecond)),
				)
			}),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.In("round-robin", "least-conn", "least-response", "random", "consistent-hash", "weighted-round-robin"),
					),
					validation.Field(&sc.VirtualNodes,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Compression,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CompressionConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CompressionConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.Quality, validation.Min(0), validation.Max(11)),
					validation.Field(&cc.Window, validation.Min(10), validation.Max(24)),
					validation.Field(&cc.ChunkSize, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

// validateEndpointAddress accepts host:port, or a ws:// or wss:// URL for
// message protocol backends.
func validateEndpointAddress(address string) error {
	if address == "" {
		return validation.NewError("validation_empty_address", "endpoint address cannot be empty")
	}

	if !strings.Contains(address, "://") {
		host, _, err := net.SplitHostPort(address)
		if err != nil || host == "" {
			return validation.NewError("validation_invalid_hostport", "must be in host:port format")
		}
		return validateHostPort(address)
	}

	parsedURL, err := url.Parse(address)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "ws" && parsedURL.Scheme != "wss" {
		return validation.NewError("validation_invalid_scheme", "URL must use ws or wss scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

// endpointRule validates one endpoint for protocol. URL addresses are only
// understood by message backends.
func endpointRule(protocol string) validation.RuleFunc {
	return func(value interface{}) error {
		endpoint, ok := value.(EndpointConfig)
		if !ok {
			return validation.NewError("validation_invalid_type", "must be an EndpointConfig")
		}

		if err := validateEndpointAddress(endpoint.Address); err != nil {
			return err
		}

		if protocol != ProtocolMessage && strings.Contains(endpoint.Address, "://") {
			return validation.NewError("validation_protocol_mismatch", "URL addresses require the message protocol")
		}

		if endpoint.Weight < 0 {
			return validation.NewError("validation_invalid_weight", "weight cannot be negative")
		}

		return nil
	}
}
