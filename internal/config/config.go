package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	Panel struct {
		URL      string        `koanf:"url"`
		APIToken string        `koanf:"api_token"`
		Timeout  time.Duration `koanf:"timeout"`
	} `koanf:"panel"`

	Fingerprint struct {
		IPLookupURL     string        `koanf:"ip_lookup_url"`
		IPLookupTimeout time.Duration `koanf:"ip_lookup_timeout"`
	} `koanf:"fingerprint"`

	Limits struct {
		MaxDevices         int `koanf:"max_devices"`
		MaxHostingAccounts int `koanf:"max_hosting_accounts"`
	} `koanf:"limits"`

	Quotas struct {
		DiskLimitMB      int `koanf:"disk_limit_mb"`
		BandwidthLimitMB int `koanf:"bandwidth_limit_mb"`
	} `koanf:"quotas"`

	Hosting struct {
		BaseDomain string `koanf:"base_domain"`
	} `koanf:"hosting"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":                   8890,
		"panel.timeout":                 "30s",
		"fingerprint.ip_lookup_url":     "https://api.ipify.org",
		"fingerprint.ip_lookup_timeout": "3s",
		"limits.max_devices":            2,
		"limits.max_hosting_accounts":   2,
		"quotas.disk_limit_mb":          5120,
		"quotas.bandwidth_limit_mb":     10240,
		"hosting.base_domain":           "hostmarket.app",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations - prioritize hmdata directory for containerized environments
		defaultPaths := []string{"./hmdata/hostmarket.toml", "./hostmarket.toml", "$HOME/.hostmarket.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix HOSTMARKET_
	k.Load(env.Provider("HOSTMARKET_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(s), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# Hostmarket Configuration

[server]
port = 8890

[panel]
url = "https://panel.example.com:2087"
api_token = "your-whm-api-token"
timeout = "30s"

[fingerprint]
ip_lookup_url = "https://api.ipify.org"
ip_lookup_timeout = "3s"

[limits]
max_devices = 2
max_hosting_accounts = 2

[quotas]
disk_limit_mb = 5120
bandwidth_limit_mb = 10240

[hosting]
base_domain = "hostmarket.app"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if config.Panel.URL == "" {
		return fmt.Errorf("panel url is required")
	}

	if config.Panel.APIToken == "" {
		return fmt.Errorf("panel api_token is required")
	}

	if config.Limits.MaxDevices < 1 {
		return fmt.Errorf("limits.max_devices must be at least 1")
	}

	if config.Limits.MaxHostingAccounts < 1 {
		return fmt.Errorf("limits.max_hosting_accounts must be at least 1")
	}

	if config.Hosting.BaseDomain == "" {
		return fmt.Errorf("hosting.base_domain is required")
	}

	return nil
}
