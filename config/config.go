package config

import (
	"log/slog"
	"net"
	"strconv"
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
	PolicyRoundRobin         = "round_robin"
	PolicyLeastConnections   = "least_connections"
	PolicyLatencyWeighted    = "latency_weighted"
	PolicyWeightedRoundRobin = "weighted_round_robin"
)

// DefaultBackends is used when no backend list is configured.
const DefaultBackends = "127.0.0.1:5001,127.0.0.1:5002"

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
}

type VirtualConfig struct {
	IP   string `mapstructure:"ip"`
	Port int    `mapstructure:"port"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
	Timeout  string `mapstructure:"timeout"`
}

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

type OpenFlowConfig struct {
	Address string `mapstructure:"address"`
}

type APIConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Virtual     VirtualConfig     `mapstructure:"virtual"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Backends    string            `mapstructure:"backends"`
	OpenFlow    OpenFlowConfig    `mapstructure:"openflow"`
	API         APIConfig         `mapstructure:"api"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// HostPort is a single backend endpoint parsed from the backend list.
type HostPort struct {
	Host string
	Port int
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("virtual.ip", "10.0.0.100")
	viper.SetDefault("virtual.port", 80)
	viper.SetDefault("backends", DefaultBackends)
	viper.SetDefault("health_check.interval", "5s")
	viper.SetDefault("health_check.timeout", "5s")
	viper.SetDefault("strategy.type", PolicyRoundRobin)
	viper.SetDefault("openflow.address", ":6653")
	viper.SetDefault("api.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)

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

// BackendAddrs parses the comma-delimited backend list into host:port pairs.
// Malformed entries are skipped with a warning; an empty configured list
// falls back to DefaultBackends. The returned slice preserves list order.
func (c *Config) BackendAddrs(log *slog.Logger) []HostPort {
	raw := c.Backends
	if strings.TrimSpace(raw) == "" {
		raw = DefaultBackends
	}

	var addrs []HostPort

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		host, portStr, err := net.SplitHostPort(entry)
		if err != nil {
			log.Warn("Skipping malformed backend entry",
				slog.String("entry", entry),
				slog.String("error", err.Error()))
			continue
		}

		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			log.Warn("Skipping backend entry with invalid port",
				slog.String("entry", entry))
			continue
		}

		addrs = append(addrs, HostPort{Host: host, Port: port})
	}

	return addrs
}

// ProbeInterval returns the parsed health check interval.
func (c *Config) ProbeInterval() (time.Duration, error) {
	return time.ParseDuration(c.HealthCheck.Interval)
}

// ProbeTimeout returns the parsed per-probe timeout.
func (c *Config) ProbeTimeout() (time.Duration, error) {
	return time.ParseDuration(c.HealthCheck.Timeout)
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
				)
			}),
		),
		validation.Field(&c.Virtual,
			validation.Required,
			validation.By(func(value interface{}) error {
				vc, ok := value.(VirtualConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a VirtualConfig")
				}
				return validation.ValidateStruct(&vc,
					validation.Field(&vc.IP,
						validation.Required,
						is.IPv4,
					),
					validation.Field(&vc.Port,
						validation.Required,
						validation.Min(1),
						validation.Max(65535),
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
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
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
						validation.In(PolicyRoundRobin, PolicyLeastConnections, PolicyLatencyWeighted, PolicyWeightedRoundRobin),
					),
				)
			}),
		),
		validation.Field(&c.OpenFlow,
			validation.Required,
			validation.By(func(value interface{}) error {
				oc, ok := value.(OpenFlowConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an OpenFlowConfig")
				}
				return validation.ValidateStruct(&oc,
					validation.Field(&oc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.API,
			validation.Required,
			validation.By(func(value interface{}) error {
				ac, ok := value.(APIConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an APIConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
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
