package formakv

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends understood by the factory.
const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

// Config consolidates store, model and logging settings.
type Config struct {
	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Model   ModelConfig   `json:"model" mapstructure:"model"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend   string         `json:"backend" mapstructure:"backend"`
	KeyPrefix string         `json:"keyPrefix" mapstructure:"keyPrefix"`
	Redis     RedisConfig    `json:"redis" mapstructure:"redis"`
	Postgres  DatabaseConfig `json:"postgres" mapstructure:"postgres"`

	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker" mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig guards the backend: after Threshold failures within
// Window, calls fail fast for OpenDuration.
type CircuitBreakerConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	Threshold    int           `json:"threshold" mapstructure:"threshold"`
	Window       time.Duration `json:"window" mapstructure:"window"`
	OpenDuration time.Duration `json:"openDuration" mapstructure:"openDuration"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	Username     string        `json:"username" mapstructure:"username"`
	Password     string        `json:"password" mapstructure:"password"`
	DB           int           `json:"db" mapstructure:"db"`
	PoolSize     int           `json:"poolSize" mapstructure:"poolSize"`
	DialTimeout  time.Duration `json:"dialTimeout" mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `json:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	Database        string        `json:"database" mapstructure:"database"`
	Username        string        `json:"username" mapstructure:"username"`
	Password        string        `json:"password" mapstructure:"password"`
	SSLMode         string        `json:"sslMode" mapstructure:"sslMode"`
	MaxConnections  int           `json:"maxConnections" mapstructure:"maxConnections"`
	MinConnections  int           `json:"minConnections" mapstructure:"minConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" mapstructure:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" mapstructure:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	TableNames      TableNames    `json:"tableNames" mapstructure:"tableNames"`
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, sslMode)
}

// TableNames names the tables the postgres store keeps hashes, lists and
// counters in.
type TableNames struct {
	Hashes   string `json:"hashes" mapstructure:"hashes"`
	Lists    string `json:"lists" mapstructure:"lists"`
	Counters string `json:"counters" mapstructure:"counters"`
}

// ModelConfig contains registry-wide model settings
type ModelConfig struct {
	IDStrategy IDStrategy `json:"idStrategy" mapstructure:"idStrategy"`
	// Location is an IANA zone name; "Local" or empty means the process zone.
	Location string `json:"location" mapstructure:"location"`
}

// LoadLocation resolves Location.
func (c ModelConfig) LoadLocation() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Location)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	Format      string `json:"format" mapstructure:"format"` // json or console
	Development bool   `json:"development" mapstructure:"development"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: StoreBackendMemory,
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				PoolSize:     10,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			Postgres: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				Database:        "formakv",
				Username:        "postgres",
				SSLMode:         "disable",
				MaxConnections:  25,
				MinConnections:  1,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
				Timeout:         30 * time.Second,
				TableNames: TableNames{
					Hashes:   "kv_hashes",
					Lists:    "kv_lists",
					Counters: "kv_counters",
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold:    5,
				Window:       time.Minute,
				OpenDuration: 30 * time.Second,
			},
		},
		Model: ModelConfig{
			IDStrategy: IDStrategySequence,
			Location:   "Local",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Store.Redis.Addr == "" {
			return &ConfigError{Field: "store.redis.addr", Message: "must not be empty"}
		}
		if c.Store.Redis.PoolSize < 0 {
			return &ConfigError{Field: "store.redis.poolSize", Message: "must not be negative"}
		}
	case StoreBackendPostgres:
		pg := c.Store.Postgres
		if pg.Host == "" {
			return &ConfigError{Field: "store.postgres.host", Message: "must not be empty"}
		}
		if pg.MaxConnections <= 0 {
			return &ConfigError{Field: "store.postgres.maxConnections", Message: "must be greater than 0"}
		}
		if pg.MinConnections > pg.MaxConnections {
			return &ConfigError{Field: "store.postgres.minConnections", Message: "must be less than or equal to maxConnections"}
		}
		if pg.TableNames.Hashes == "" || pg.TableNames.Lists == "" || pg.TableNames.Counters == "" {
			return &ConfigError{Field: "store.postgres.tableNames", Message: "all table names are required"}
		}
	default:
		return &ConfigError{Field: "store.backend", Message: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}

	if cb := c.Store.CircuitBreaker; cb.Enabled {
		if cb.Threshold <= 0 {
			return &ConfigError{Field: "store.circuitBreaker.threshold", Message: "must be greater than 0"}
		}
		if cb.Window <= 0 || cb.OpenDuration <= 0 {
			return &ConfigError{Field: "store.circuitBreaker", Message: "window and openDuration must be positive"}
		}
	}

	if strings.Contains(strings.TrimSuffix(c.Store.KeyPrefix, ":"), ":") {
		return &ConfigError{Field: "store.keyPrefix", Message: "must not contain ':'"}
	}

	switch c.Model.IDStrategy {
	case IDStrategySequence, IDStrategyUUID:
	default:
		return &ConfigError{Field: "model.idStrategy", Message: fmt.Sprintf("unknown strategy %q", c.Model.IDStrategy)}
	}
	if _, err := c.Model.LoadLocation(); err != nil {
		return &ConfigError{Field: "model.location", Message: err.Error()}
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or console"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}

// EnvPrefix prefixes every environment override, e.g. FORMAKV_STORE_BACKEND.
const EnvPrefix = "FORMAKV"

// LoadConfig layers defaults, the optional config file at path and
// FORMAKV_* environment variables, then validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.keyPrefix", d.Store.KeyPrefix)

	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.username", d.Store.Redis.Username)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)
	v.SetDefault("store.redis.poolSize", d.Store.Redis.PoolSize)
	v.SetDefault("store.redis.dialTimeout", d.Store.Redis.DialTimeout)
	v.SetDefault("store.redis.readTimeout", d.Store.Redis.ReadTimeout)
	v.SetDefault("store.redis.writeTimeout", d.Store.Redis.WriteTimeout)

	pg := d.Store.Postgres
	v.SetDefault("store.postgres.host", pg.Host)
	v.SetDefault("store.postgres.port", pg.Port)
	v.SetDefault("store.postgres.database", pg.Database)
	v.SetDefault("store.postgres.username", pg.Username)
	v.SetDefault("store.postgres.password", pg.Password)
	v.SetDefault("store.postgres.sslMode", pg.SSLMode)
	v.SetDefault("store.postgres.maxConnections", pg.MaxConnections)
	v.SetDefault("store.postgres.minConnections", pg.MinConnections)
	v.SetDefault("store.postgres.connMaxLifetime", pg.ConnMaxLifetime)
	v.SetDefault("store.postgres.connMaxIdleTime", pg.ConnMaxIdleTime)
	v.SetDefault("store.postgres.timeout", pg.Timeout)
	v.SetDefault("store.postgres.tableNames.hashes", pg.TableNames.Hashes)
	v.SetDefault("store.postgres.tableNames.lists", pg.TableNames.Lists)
	v.SetDefault("store.postgres.tableNames.counters", pg.TableNames.Counters)

	cb := d.Store.CircuitBreaker
	v.SetDefault("store.circuitBreaker.enabled", cb.Enabled)
	v.SetDefault("store.circuitBreaker.threshold", cb.Threshold)
	v.SetDefault("store.circuitBreaker.window", cb.Window)
	v.SetDefault("store.circuitBreaker.openDuration", cb.OpenDuration)

	v.SetDefault("model.idStrategy", string(d.Model.IDStrategy))
	v.SetDefault("model.location", d.Model.Location)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.development", d.Logging.Development)
}
