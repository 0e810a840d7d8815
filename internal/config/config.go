// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "quoll.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	BindAddr      string `yaml:"bindAddr"      split_words:"true"`
	ApiPort       uint   `yaml:"apiPort"       split_words:"true"`
	MetricsPort   uint   `yaml:"metricsPort"   split_words:"true"`
	DatabasePath  string `yaml:"databasePath"  split_words:"true"`
	ServiceName   string `yaml:"serviceName"   split_words:"true"`
	CooldownHours uint   `yaml:"cooldownHours" split_words:"true"`
	NotifyTimeout string `yaml:"notifyTimeout" split_words:"true"`
}

var globalConfig = &Config{
	BindAddr:      "0.0.0.0",
	ApiPort:       8080,
	MetricsPort:   12798,
	DatabasePath:  ".quoll",
	ServiceName:   "quoll",
	CooldownHours: 24,
	NotifyTimeout: "5s",
}

// Cooldown returns the vote cooldown window as a duration
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour // #nosec G115
}

// ParseNotifyTimeout parses the configured notification timeout
func (c *Config) ParseNotifyTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.NotifyTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid notifyTimeout: %w", err)
	}
	return timeout, nil
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.quoll/quoll.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".quoll", "quoll.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/quoll/quoll.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/quoll/quoll.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("quoll", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Validate values that get parsed later so startup fails early
	if _, err := globalConfig.ParseNotifyTimeout(); err != nil {
		return nil, err
	}
	if globalConfig.CooldownHours == 0 {
		return nil, fmt.Errorf(
			"invalid cooldownHours: %d (must be at least 1)",
			globalConfig.CooldownHours,
		)
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
