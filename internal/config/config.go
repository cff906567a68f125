package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the QuickBite order core
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

// ServerConfig holds HTTP front end configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a configuration with every optional field filled in
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
			MaxConns: 4,
		},
		RabbitMQ: RabbitMQConfig{
			Port:  5672,
			VHost: "/",
		},
		Server: ServerConfig{Port: 3000},
	}
}

// Load reads configuration from a YAML file and applies environment overrides
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with QUICKBITE_* environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"QUICKBITE_DB_HOST":           &c.Database.Host,
		"QUICKBITE_DB_USER":           &c.Database.User,
		"QUICKBITE_DB_PASSWORD":       &c.Database.Password,
		"QUICKBITE_DB_NAME":           &c.Database.Database,
		"QUICKBITE_DB_SSLMODE":        &c.Database.SSLMode,
		"QUICKBITE_RABBITMQ_HOST":     &c.RabbitMQ.Host,
		"QUICKBITE_RABBITMQ_USER":     &c.RabbitMQ.User,
		"QUICKBITE_RABBITMQ_PASSWORD": &c.RabbitMQ.Password,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"QUICKBITE_DB_PORT":       &c.Database.Port,
		"QUICKBITE_RABBITMQ_PORT": &c.RabbitMQ.Port,
		"QUICKBITE_SERVER_PORT":   &c.Server.Port,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("QUICKBITE_RABBITMQ_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid value for QUICKBITE_RABBITMQ_ENABLED: %w", err)
		}
		c.RabbitMQ.Enabled = enabled
	}
	return nil
}

// Validate checks that the required connection settings are present
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		return fmt.Errorf("database config incomplete: host, user and database are required")
	}
	if c.Database.Port <= 0 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.RabbitMQ.Enabled && (c.RabbitMQ.Host == "" || c.RabbitMQ.User == "") {
		return fmt.Errorf("rabbitmq config incomplete: host and user are required when enabled")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database, c.Database.SSLMode)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	vhost := c.RabbitMQ.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port, vhost)
}
