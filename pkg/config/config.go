package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/cdh/config"
	ConfigFileName    = "cdh.yml"
)

// ValidEnvironments is the list of deployment environments resources can
// be provisioned into.
var ValidEnvironments = []string{"dev", "int", "prod"}

// ValidLockBackends is the list of supported lock store backends.
var ValidLockBackends = []string{"database", "redis"}

// Config holds all control plane configuration settings
type Config struct {
	// Environment is the deployment environment (dev, int, prod)
	Environment string `yaml:"environment" json:"environment"`

	// Partition is the AWS partition used when building ARNs
	Partition string `yaml:"partition" json:"partition"`

	// ResourcePrefix is prepended to provisioned resource names and aliases
	ResourcePrefix string `yaml:"resource_prefix" json:"resource_prefix"`

	// BindAddress is the server listen address
	BindAddress string `yaml:"bind_address" json:"bind_address"`

	// Port is the server listen port
	Port string `yaml:"port" json:"port"`

	// DatabaseURL is the catalog database connection string
	DatabaseURL string `yaml:"database_url" json:"database_url"`

	// RedisURL is the Redis connection string for the lock store
	RedisURL string `yaml:"redis_url" json:"redis_url"`

	// LockBackend selects the lock store (database or redis)
	LockBackend string `yaml:"lock_backend" json:"lock_backend"`

	// LockTTLSeconds is the defensive lock expiry in seconds
	LockTTLSeconds int `yaml:"lock_ttl_seconds" json:"lock_ttl_seconds"`

	// RetryAttempts is the number of attempts for remote calls
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`

	// RetryWaitSeconds is the pause between remote call attempts
	RetryWaitSeconds int `yaml:"retry_wait_seconds" json:"retry_wait_seconds"`

	// IngestionRoleName is the name of the ingestion role in each
	// provider account
	IngestionRoleName string `yaml:"ingestion_role_name" json:"ingestion_role_name"`

	// ProvisioningRoleName is the name of the role assumed in each
	// provider account when provisioning resources
	ProvisioningRoleName string `yaml:"provisioning_role_name" json:"provisioning_role_name"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	// Load config
	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// newDefault returns a config with default values
func newDefault() *Config {
	return &Config{
		Environment:          "dev",
		Partition:            "aws",
		ResourcePrefix:       "",
		BindAddress:          "0.0.0.0",
		Port:                 "8080",
		LockBackend:          "database",
		LockTTLSeconds:       900,
		RetryAttempts:        10,
		RetryWaitSeconds:     1,
		IngestionRoleName:    "cdh-ingestion",
		ProvisioningRoleName: "cdh-core-api",
		sources:              make(map[string]string),
	}
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over file values
func Load() (*Config, error) {
	config := newDefault()

	// Initialize all sources as "default"
	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	// Determine config file path
	configPath := os.Getenv("CDH_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	// Try to load from config file
	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	// Override with environment variables
	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{
		"environment", "partition", "resource_prefix", "bind_address",
		"port", "database_url", "redis_url", "lock_backend",
		"lock_ttl_seconds", "retry_attempts", "retry_wait_seconds",
		"ingestion_role_name", "provisioning_role_name",
	}
}

func (c *Config) applyFileConfig(file *Config) {
	if file.Environment != "" {
		c.Environment = file.Environment
		c.sources["environment"] = "file"
	}
	if file.Partition != "" {
		c.Partition = file.Partition
		c.sources["partition"] = "file"
	}
	if file.ResourcePrefix != "" {
		c.ResourcePrefix = file.ResourcePrefix
		c.sources["resource_prefix"] = "file"
	}
	if file.BindAddress != "" {
		c.BindAddress = file.BindAddress
		c.sources["bind_address"] = "file"
	}
	if file.Port != "" {
		c.Port = file.Port
		c.sources["port"] = "file"
	}
	if file.DatabaseURL != "" {
		c.DatabaseURL = file.DatabaseURL
		c.sources["database_url"] = "file"
	}
	if file.RedisURL != "" {
		c.RedisURL = file.RedisURL
		c.sources["redis_url"] = "file"
	}
	if file.LockBackend != "" {
		c.LockBackend = file.LockBackend
		c.sources["lock_backend"] = "file"
	}
	if file.LockTTLSeconds != 0 {
		c.LockTTLSeconds = file.LockTTLSeconds
		c.sources["lock_ttl_seconds"] = "file"
	}
	if file.RetryAttempts != 0 {
		c.RetryAttempts = file.RetryAttempts
		c.sources["retry_attempts"] = "file"
	}
	if file.RetryWaitSeconds != 0 {
		c.RetryWaitSeconds = file.RetryWaitSeconds
		c.sources["retry_wait_seconds"] = "file"
	}
	if file.IngestionRoleName != "" {
		c.IngestionRoleName = file.IngestionRoleName
		c.sources["ingestion_role_name"] = "file"
	}
	if file.ProvisioningRoleName != "" {
		c.ProvisioningRoleName = file.ProvisioningRoleName
		c.sources["provisioning_role_name"] = "file"
	}
}

func (c *Config) applyEnvConfig() {
	if val := os.Getenv("CDH_ENVIRONMENT"); val != "" {
		c.Environment = val
		c.sources["environment"] = "environment"
	}
	if val := os.Getenv("CDH_PARTITION"); val != "" {
		c.Partition = val
		c.sources["partition"] = "environment"
	}
	if val := os.Getenv("CDH_RESOURCE_PREFIX"); val != "" {
		c.ResourcePrefix = val
		c.sources["resource_prefix"] = "environment"
	}
	if val := os.Getenv("CDH_BIND_ADDRESS"); val != "" {
		c.BindAddress = val
		c.sources["bind_address"] = "environment"
	}
	if val := os.Getenv("PORT"); val != "" {
		c.Port = val
		c.sources["port"] = "environment"
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		c.DatabaseURL = val
		c.sources["database_url"] = "environment"
	}
	if val := os.Getenv("CDH_REDIS_URL"); val != "" {
		c.RedisURL = val
		c.sources["redis_url"] = "environment"
	}
	if val := os.Getenv("CDH_LOCK_BACKEND"); val != "" {
		c.LockBackend = val
		c.sources["lock_backend"] = "environment"
	}
	if val := os.Getenv("CDH_LOCK_TTL_SECONDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.LockTTLSeconds = i
			c.sources["lock_ttl_seconds"] = "environment"
		}
	}
	if val := os.Getenv("CDH_RETRY_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.RetryAttempts = i
			c.sources["retry_attempts"] = "environment"
		}
	}
	if val := os.Getenv("CDH_RETRY_WAIT_SECONDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.RetryWaitSeconds = i
			c.sources["retry_wait_seconds"] = "environment"
		}
	}
	if val := os.Getenv("CDH_INGESTION_ROLE_NAME"); val != "" {
		c.IngestionRoleName = val
		c.sources["ingestion_role_name"] = "environment"
	}
	if val := os.Getenv("CDH_PROVISIONING_ROLE_NAME"); val != "" {
		c.ProvisioningRoleName = val
		c.sources["provisioning_role_name"] = "environment"
	}
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// LockTTL returns the defensive lock expiry as a duration
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// RetryWait returns the pause between remote call attempts as a duration
func (c *Config) RetryWait() time.Duration {
	return time.Duration(c.RetryWaitSeconds) * time.Second
}

// IngestionRoleARN builds the ARN of the ingestion role in the given
// provider account.
func (c *Config) IngestionRoleARN(accountID string) string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s%s",
		c.Partition, accountID, c.ResourcePrefix, c.IngestionRoleName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validEnv := false
	for _, env := range ValidEnvironments {
		if c.Environment == env {
			validEnv = true
			break
		}
	}
	if !validEnv {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validBackend := false
	for _, backend := range ValidLockBackends {
		if c.LockBackend == backend {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid lock_backend: %s", c.LockBackend)
	}
	if c.LockBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("lock_backend redis requires redis_url")
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port: %s", c.Port)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if c.RetryWaitSeconds < 0 {
		return fmt.Errorf("retry_wait_seconds must not be negative")
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	return []Attribute{
		{Name: "environment", Value: c.Environment, Source: c.Source("environment")},
		{Name: "partition", Value: c.Partition, Source: c.Source("partition")},
		{Name: "resource_prefix", Value: c.ResourcePrefix, Source: c.Source("resource_prefix")},
		{Name: "bind_address", Value: c.BindAddress, Source: c.Source("bind_address")},
		{Name: "port", Value: c.Port, Source: c.Source("port")},
		{Name: "database_url", Value: redact(c.DatabaseURL), Source: c.Source("database_url")},
		{Name: "redis_url", Value: redact(c.RedisURL), Source: c.Source("redis_url")},
		{Name: "lock_backend", Value: c.LockBackend, Source: c.Source("lock_backend")},
		{Name: "lock_ttl_seconds", Value: strconv.Itoa(c.LockTTLSeconds), Source: c.Source("lock_ttl_seconds")},
		{Name: "retry_attempts", Value: strconv.Itoa(c.RetryAttempts), Source: c.Source("retry_attempts")},
		{Name: "retry_wait_seconds", Value: strconv.Itoa(c.RetryWaitSeconds), Source: c.Source("retry_wait_seconds")},
		{Name: "ingestion_role_name", Value: c.IngestionRoleName, Source: c.Source("ingestion_role_name")},
		{Name: "provisioning_role_name", Value: c.ProvisioningRoleName, Source: c.Source("provisioning_role_name")},
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// redact hides credentials embedded in connection URLs
func redact(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
