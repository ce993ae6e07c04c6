package config

import (
	"log/slog"
	"net"
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

// DriverSim selects the built-in simulated feed. Real vendor drivers are
// registered programmatically by the embedding service.
const DriverSim = "sim"

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type CacheConfig struct {
	TTL        string `mapstructure:"ttl"`
	MaxEntries int    `mapstructure:"max_entries"`
}

type RequestConfig struct {
	Timeout          string `mapstructure:"timeout"`
	BatchConcurrency int    `mapstructure:"batch_concurrency"`
}

type HeartbeatConfig struct {
	Interval string `mapstructure:"interval"`
}

// VendorConfig describes one market-data vendor: its failover priority,
// what it can serve, and its circuit-breaker thresholds.
type VendorConfig struct {
	Name             string   `mapstructure:"name"`
	Driver           string   `mapstructure:"driver"`
	Priority         int      `mapstructure:"priority"`
	ContentTypes     []string `mapstructure:"content_types"`
	FailureThreshold int      `mapstructure:"failure_threshold"`
	ErrorRateCeiling float64  `mapstructure:"error_rate_ceiling"`
	Cooldown         string   `mapstructure:"cooldown"`
	Timeout          string   `mapstructure:"timeout"`
	RateLimit        float64  `mapstructure:"rate_limit"`
	Burst            int      `mapstructure:"burst"`

	// Sim driver knobs.
	BasePrice float64 `mapstructure:"base_price"`
	Latency   string  `mapstructure:"latency"`
	Seed      int64   `mapstructure:"seed"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Request   RequestConfig   `mapstructure:"request"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Vendors   []VendorConfig  `mapstructure:"vendors"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("cache.ttl", "5s")
	viper.SetDefault("cache.max_entries", 10000)
	viper.SetDefault("request.timeout", "10s")
	viper.SetDefault("request.batch_concurrency", 10)
	viper.SetDefault("heartbeat.interval", "2s")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
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
		validation.Field(&c.Cache,
			validation.Required,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CacheConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CacheConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.TTL,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&cc.MaxEntries,
						validation.Min(0),
					),
				)
			}),
		),
		validation.Field(&c.Request,
			validation.Required,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RequestConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RequestConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&rc.BatchConcurrency,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Heartbeat,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HeartbeatConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HeartbeatConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Vendors,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateVendorConfig)),
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

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateVendorConfig(value interface{}) error {
	vendor, ok := value.(VendorConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a VendorConfig")
	}

	return validation.ValidateStruct(&vendor,
		validation.Field(&vendor.Name,
			validation.Required,
		),
		validation.Field(&vendor.Driver,
			validation.Required,
			validation.In(DriverSim),
		),
		validation.Field(&vendor.Priority,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&vendor.ContentTypes,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.In("EQUITY", "INDEX", "FX", "BOND")),
		),
		validation.Field(&vendor.FailureThreshold,
			validation.Min(0),
		),
		validation.Field(&vendor.ErrorRateCeiling,
			validation.Min(0.0),
			validation.Max(1.0),
		),
		validation.Field(&vendor.Cooldown,
			validation.By(validateOptionalDuration),
		),
		validation.Field(&vendor.Timeout,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&vendor.RateLimit,
			validation.Min(0.0),
		),
		validation.Field(&vendor.Burst,
			validation.Min(0),
		),
		validation.Field(&vendor.Latency,
			validation.By(validateOptionalDuration),
		),
	)
}

func validateOptionalDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if durationStr == "" {
		return nil
	}
	return validateDuration(durationStr)
}
