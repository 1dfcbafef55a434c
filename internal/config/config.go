package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Store    StoreConfig
	SQLite   SQLiteConfig
	Graph    GraphConfig
	Broker   BrokerConfig
	Callback CallbackConfig
	Logging  LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// StoreConfig selects the transaction store backend.
type StoreConfig struct {
	Driver string // memory|sqlite|neo4j
}

// SQLiteConfig describes the embedded SQLite transaction store.
type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// GraphConfig describes connectivity to the graph database (Neo4j).
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// BrokerConfig describes the AMQP broker used to announce unlocked claims.
// An empty URL disables publishing.
type BrokerConfig struct {
	URL            string
	Exchange       string
	RoutingKey     string
	PublishTimeout time.Duration
}

// CallbackConfig controls where browser callbacks are redirected.
type CallbackConfig struct {
	StatusPagePath string
	StatusQueryKey string
	PublicBaseURL  string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverNeo4j  = "neo4j"
)

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultStoreDriver      = DriverMemory
	defaultSQLitePath       = "paybridge.db"
	defaultSQLiteBusy       = 5 * time.Second
	defaultExchange         = "paybridge.claims"
	defaultRoutingKey       = "claim.unlocked"
	defaultPublishTimeout   = 5 * time.Second
	defaultStatusPagePath   = "/payment/success"
	defaultStatusQueryKey   = "txId"
)

// File mirrors Config for the optional YAML overlay named by PAYBRIDGE_CONFIG.
// Durations are strings in time.ParseDuration form.
type File struct {
	Server struct {
		Host            string `mapstructure:"host"`
		Port            int    `mapstructure:"port"`
		ReadTimeout     string `mapstructure:"read_timeout"`
		WriteTimeout    string `mapstructure:"write_timeout"`
		IdleTimeout     string `mapstructure:"idle_timeout"`
		ShutdownTimeout string `mapstructure:"shutdown_timeout"`
		AllowedOrigins  string `mapstructure:"allowed_origins"`
	} `mapstructure:"server"`
	Store struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`
	SQLite struct {
		Path        string `mapstructure:"path"`
		BusyTimeout string `mapstructure:"busy_timeout"`
	} `mapstructure:"sqlite"`
	Graph struct {
		URI            string `mapstructure:"uri"`
		Database       string `mapstructure:"database"`
		Username       string `mapstructure:"username"`
		Password       string `mapstructure:"password"`
		MaxConnections int    `mapstructure:"max_connections"`
	} `mapstructure:"graph"`
	Broker struct {
		URL            string `mapstructure:"url"`
		Exchange       string `mapstructure:"exchange"`
		RoutingKey     string `mapstructure:"routing_key"`
		PublishTimeout string `mapstructure:"publish_timeout"`
	} `mapstructure:"broker"`
	Callback struct {
		StatusPagePath string `mapstructure:"status_page_path"`
		StatusQueryKey string `mapstructure:"status_query_key"`
		PublicBaseURL  string `mapstructure:"public_base_url"`
	} `mapstructure:"callback"`
	Logging struct {
		Level         string `mapstructure:"level"`
		Format        string `mapstructure:"format"`
		IncludeCaller *bool  `mapstructure:"include_caller"`
	} `mapstructure:"logging"`
}

// Load reads configuration from an optional YAML file and environment
// variables, applying defaults. Environment values take precedence.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("PAYBRIDGE_CONFIG"); path != "" {
		if err := applyFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:            defaultHost,
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Store: StoreConfig{Driver: defaultStoreDriver},
		SQLite: SQLiteConfig{
			Path:        defaultSQLitePath,
			BusyTimeout: defaultSQLiteBusy,
		},
		Graph: GraphConfig{MaxConnections: defaultGraphMaxSessions},
		Broker: BrokerConfig{
			Exchange:       defaultExchange,
			RoutingKey:     defaultRoutingKey,
			PublishTimeout: defaultPublishTimeout,
		},
		Callback: CallbackConfig{
			StatusPagePath: defaultStatusPagePath,
			StatusQueryKey: defaultStatusQueryKey,
		},
		Logging: LoggingConfig{
			Level:  defaultLoggingLevel,
			Format: defaultLoggingFormat,
		},
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverNeo4j:
		if c.Graph.URI == "" {
			return fmt.Errorf("store driver %q requires GRAPH_URI", DriverNeo4j)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.HTTP.Port)
	}
	if !strings.HasPrefix(c.Callback.StatusPagePath, "/") {
		return fmt.Errorf("callback status page path %q must start with /", c.Callback.StatusPagePath)
	}
	if c.Callback.StatusQueryKey == "" {
		return fmt.Errorf("callback status query key is required")
	}
	return nil
}

func applyFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	setString(&cfg.HTTP.Host, f.Server.Host)
	if f.Server.Port != 0 {
		cfg.HTTP.Port = f.Server.Port
	}
	setString(&cfg.HTTP.AllowedOriginsCSV, f.Server.AllowedOrigins)
	setString(&cfg.Store.Driver, f.Store.Driver)
	setString(&cfg.SQLite.Path, f.SQLite.Path)
	setString(&cfg.Graph.URI, f.Graph.URI)
	setString(&cfg.Graph.Database, f.Graph.Database)
	setString(&cfg.Graph.Username, f.Graph.Username)
	setString(&cfg.Graph.Password, f.Graph.Password)
	if f.Graph.MaxConnections > 0 {
		cfg.Graph.MaxConnections = f.Graph.MaxConnections
	}
	setString(&cfg.Broker.URL, f.Broker.URL)
	setString(&cfg.Broker.Exchange, f.Broker.Exchange)
	setString(&cfg.Broker.RoutingKey, f.Broker.RoutingKey)
	setString(&cfg.Callback.StatusPagePath, f.Callback.StatusPagePath)
	setString(&cfg.Callback.StatusQueryKey, f.Callback.StatusQueryKey)
	setString(&cfg.Callback.PublicBaseURL, f.Callback.PublicBaseURL)
	setString(&cfg.Logging.Level, f.Logging.Level)
	setString(&cfg.Logging.Format, f.Logging.Format)
	if f.Logging.IncludeCaller != nil {
		cfg.Logging.IncludeCaller = *f.Logging.IncludeCaller
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"server.read_timeout", f.Server.ReadTimeout, &cfg.HTTP.ReadTimeout},
		{"server.write_timeout", f.Server.WriteTimeout, &cfg.HTTP.WriteTimeout},
		{"server.idle_timeout", f.Server.IdleTimeout, &cfg.HTTP.IdleTimeout},
		{"server.shutdown_timeout", f.Server.ShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"sqlite.busy_timeout", f.SQLite.BusyTimeout, &cfg.SQLite.BusyTimeout},
		{"broker.publish_timeout", f.Broker.PublishTimeout, &cfg.Broker.PublishTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", d.key, path, err)
		}
		*d.dst = parsed
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTP.Host, os.Getenv("SERVER_HOST"))
	setString(&cfg.HTTP.AllowedOriginsCSV, os.Getenv("SERVER_ALLOWED_ORIGINS"))
	setString(&cfg.Store.Driver, strings.ToLower(os.Getenv("STORE_DRIVER")))
	setString(&cfg.SQLite.Path, os.Getenv("SQLITE_PATH"))
	setString(&cfg.Graph.URI, os.Getenv("GRAPH_URI"))
	setString(&cfg.Graph.Database, os.Getenv("GRAPH_DATABASE"))
	setString(&cfg.Graph.Username, os.Getenv("GRAPH_USERNAME"))
	setString(&cfg.Graph.Password, os.Getenv("GRAPH_PASSWORD"))
	setString(&cfg.Broker.URL, os.Getenv("BROKER_URL"))
	setString(&cfg.Broker.Exchange, os.Getenv("BROKER_EXCHANGE"))
	setString(&cfg.Broker.RoutingKey, os.Getenv("BROKER_ROUTING_KEY"))
	setString(&cfg.Callback.StatusPagePath, os.Getenv("CALLBACK_STATUS_PAGE_PATH"))
	setString(&cfg.Callback.StatusQueryKey, os.Getenv("CALLBACK_STATUS_QUERY_KEY"))
	setString(&cfg.Callback.PublicBaseURL, os.Getenv("CALLBACK_PUBLIC_BASE_URL"))
	setString(&cfg.Logging.Level, os.Getenv("LOG_LEVEL"))
	setString(&cfg.Logging.Format, os.Getenv("LOG_FORMAT"))

	port, err := parsePort("SERVER_PORT", cfg.HTTP.Port)
	if err != nil {
		return err
	}
	cfg.HTTP.Port = port

	if cfg.Graph.MaxConnections, err = parseIntWithDefault("GRAPH_MAX_CONNECTIONS", cfg.Graph.MaxConnections); err != nil {
		return err
	}
	if cfg.Logging.IncludeCaller, err = parseBoolWithDefault("LOG_INCLUDE_CALLER", cfg.Logging.IncludeCaller); err != nil {
		return err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
		{"SQLITE_BUSY_TIMEOUT", &cfg.SQLite.BusyTimeout},
		{"BROKER_PUBLISH_TIMEOUT", &cfg.Broker.PublishTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseBoolWithDefault(key string, fallback bool) (bool, error) {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		return val, nil
	}
	return fallback, nil
}

func parseIntWithDefault(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		return val, nil
	}
	return fallback, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
