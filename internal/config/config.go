package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML config file
const ConfigFileEnv = "FLOWNET_CONFIG_FILE"

var validate = validator.New()

// Config is the complete service configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Influx      InfluxConfig      `yaml:"influx"`
	Summary     SummaryConfig     `yaml:"summary"`
	FlowNetwork FlowNetworkConfig `yaml:"flow_network"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// InfluxConfig holds InfluxDB settings used when summary vectors live in InfluxDB
type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// SummaryConfig selects the summary vector backend
type SummaryConfig struct {
	Backend string `yaml:"backend" validate:"oneof=postgres influx"`
}

// FlowNetworkConfig holds request defaults for flow network assembly
type FlowNetworkConfig struct {
	DefaultTerminalNode        string        `yaml:"default_terminal_node" validate:"required"`
	DefaultTreeType            string        `yaml:"default_tree_type" validate:"oneof=GRUPTREE BRANPROP"`
	DefaultResamplingFrequency string        `yaml:"default_resampling_frequency" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY QUARTERLY YEARLY"`
	DefaultExcludeWellPrefixes []string      `yaml:"default_exclude_well_prefixes"`
	DefaultExcludeWellSuffixes []string      `yaml:"default_exclude_well_suffixes"`
	RequestTimeout             time.Duration `yaml:"request_timeout"`
}

// IngestionConfig holds CSV ingestion settings
type IngestionConfig struct {
	DataDir   string `yaml:"data_dir"`
	BatchSize int    `yaml:"batch_size" validate:"min=1,max=10000"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "flownetwork",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Influx: InfluxConfig{
			URL:         "http://localhost:8086",
			Org:         "flownetwork",
			Bucket:      "summary",
			Measurement: "summary_vectors",
		},
		Summary: SummaryConfig{Backend: "postgres"},
		FlowNetwork: FlowNetworkConfig{
			DefaultTerminalNode: "FIELD",
			DefaultTreeType:     "GRUPTREE",
			RequestTimeout:      30 * time.Second,
		},
		Ingestion: IngestionConfig{
			DataDir:   "data",
			BatchSize: 1000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file named by
// FLOWNET_CONFIG_FILE, and environment overrides, in that order
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file onto cfg. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	setString(&c.Server.Host, "SERVER_HOST")
	errs = append(errs, setInt(&c.Server.Port, "SERVER_PORT"))

	setString(&c.Database.Host, "DB_HOST")
	errs = append(errs, setInt(&c.Database.Port, "DB_PORT"))
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	errs = append(errs, setInt(&c.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS"))
	errs = append(errs, setInt(&c.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS"))

	setString(&c.Influx.URL, "INFLUX_URL")
	setString(&c.Influx.Token, "INFLUX_TOKEN")
	setString(&c.Influx.Org, "INFLUX_ORG")
	setString(&c.Influx.Bucket, "INFLUX_BUCKET")
	setString(&c.Influx.Measurement, "INFLUX_MEASUREMENT")

	setString(&c.Summary.Backend, "SUMMARY_BACKEND")
	setString(&c.FlowNetwork.DefaultTerminalNode, "DEFAULT_TERMINAL_NODE")
	setString(&c.FlowNetwork.DefaultResamplingFrequency, "DEFAULT_RESAMPLING_FREQUENCY")
	errs = append(errs, setDuration(&c.FlowNetwork.RequestTimeout, "REQUEST_TIMEOUT"))

	setString(&c.Ingestion.DataDir, "INGESTION_DATA_DIR")
	errs = append(errs, setInt(&c.Ingestion.BatchSize, "INGESTION_BATCH_SIZE"))

	setString(&c.Logging.Level, "LOG_LEVEL")
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.FlowNetwork.DefaultResamplingFrequency = strings.ToUpper(c.FlowNetwork.DefaultResamplingFrequency)

	return errors.Join(errs...)
}

// Validate checks the configuration against its constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Summary.Backend == "influx" && (c.Influx.URL == "" || c.Influx.Bucket == "") {
		return fmt.Errorf("Influx: url and bucket are required when summary backend is influx")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("Database.MaxIdleConns: must not exceed MaxOpenConns (%d)", c.Database.MaxOpenConns)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: field is required", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s: must not exceed %s", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s], got %q", field, e.Param(), e.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
