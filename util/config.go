package util

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/deemkeen/chartreuse/domain"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const Name = "chartreuse"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host                string
		HttpPort            int      `yaml:"httpPort"`
		SshPort             int      `yaml:"sshPort"`
		PublicHost          string   `yaml:"publicHost"`
		DbPath              string   `yaml:"dbPath"`
		DeliveryTimeout     int      `yaml:"deliveryTimeout"`
		DeliveryConcurrency int      `yaml:"deliveryConcurrency"`
		WithAdmin           bool     `yaml:"withAdmin"`
		AdminKeys           []string `yaml:"adminKeys"`
		LogLevel            string   `yaml:"logLevel"`
		LogFormat           string   `yaml:"logFormat"`
	}
}

// DeliveryTimeout is the bound applied to every outbound federation request.
func (c *AppConfig) DeliveryTimeout() time.Duration {
	if c.Conf.DeliveryTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Conf.DeliveryTimeout) * time.Second
}

func (c *AppConfig) DeliveryConcurrency() int {
	if c.Conf.DeliveryConcurrency <= 0 {
		return 4
	}
	return c.Conf.DeliveryConcurrency
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Info().Str("path", configPath).Msg("Config file not found, using embedded defaults")
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := filepath.Join(configDir, ConfigFileName)
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644); writeErr != nil {
				log.Warn().Err(writeErr).Str("path", userConfigPath).Msg("Could not write default config")
			} else {
				log.Info().Str("path", userConfigPath).Msg("Created default config file")
			}
		}
	}

	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if err := applyEnv(c); err != nil {
		return nil, err
	}

	if c.Conf.PublicHost == "" {
		c.Conf.PublicHost = fmt.Sprintf("http://%s:%d/chartreuse/api/", c.Conf.Host, c.Conf.HttpPort)
	}
	c.Conf.PublicHost = domain.NormalizeHost(c.Conf.PublicHost)
	if c.Conf.DbPath == "" {
		c.Conf.DbPath = ResolveFilePath("database.db")
	}

	return c, nil
}

func applyEnv(c *AppConfig) error {
	intVars := map[string]*int{
		"CHARTREUSE_HTTPPORT":             &c.Conf.HttpPort,
		"CHARTREUSE_SSHPORT":              &c.Conf.SshPort,
		"CHARTREUSE_DELIVERY_TIMEOUT":     &c.Conf.DeliveryTimeout,
		"CHARTREUSE_DELIVERY_CONCURRENCY": &c.Conf.DeliveryConcurrency,
	}
	for name, target := range intVars {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*target = n
		}
	}

	stringVars := map[string]*string{
		"CHARTREUSE_HOST":        &c.Conf.Host,
		"CHARTREUSE_PUBLIC_HOST": &c.Conf.PublicHost,
		"CHARTREUSE_DB_PATH":     &c.Conf.DbPath,
		"CHARTREUSE_LOG_LEVEL":   &c.Conf.LogLevel,
		"CHARTREUSE_LOG_FORMAT":  &c.Conf.LogFormat,
	}
	for name, target := range stringVars {
		if v := os.Getenv(name); v != "" {
			*target = v
		}
	}

	if os.Getenv("CHARTREUSE_WITH_ADMIN") == "true" {
		c.Conf.WithAdmin = true
	}
	if keys := os.Getenv("CHARTREUSE_ADMIN_KEYS"); keys != "" {
		c.Conf.AdminKeys = nil
		for _, k := range strings.Split(keys, ";") {
			if k = strings.TrimSpace(k); k != "" {
				c.Conf.AdminKeys = append(c.Conf.AdminKeys, k)
			}
		}
	}
	return nil
}
