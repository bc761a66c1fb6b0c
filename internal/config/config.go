/* SPDX-License-Identifier: Apache-2.0
 *
 * Copyright 2023 Damian Peckett <damian@pecke.tt>.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable holding the configuration file path.
const EnvConfigPath = "LUMEXT_CONFIGURATION_FILE_PATH"

// Config is the process configuration. It is loaded once at startup and must
// not be modified afterwards.
type Config struct {
	LDAP     LDAP     `yaml:"ldap"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
	VCD      VCD      `yaml:"vcd"`
	Log      Log      `yaml:"log"`
	Health   Health   `yaml:"health"`
}

// LDAP configures the directory server.
type LDAP struct {
	// Address is the URL of the directory server, eg. ldaps://dc01.example.com:636.
	Address string `yaml:"address"`
	// User is the DN of the service account used to bind.
	User string `yaml:"user"`
	// Secret is the password of the service account.
	Secret string `yaml:"secret"`
	// Base is the DN beneath which tenant organizational units are created.
	Base string `yaml:"base"`
	// Domain is appended to logins to build user principal names.
	Domain string `yaml:"domain"`
	// UserAccountControl is set on created users (512 = normal account).
	UserAccountControl int `yaml:"user_account_control" default:"512"`
	// SearchTimeout bounds every search.
	SearchTimeout time.Duration `yaml:"search_timeout" default:"5s"`
	// Timeout is the transport timeout for every other directory request.
	Timeout time.Duration `yaml:"timeout" default:"30s"`
	// CACertFile is a PEM bundle used to verify the server certificate.
	CACertFile string `yaml:"cacert_file"`
}

// RabbitMQ configures the message bus the requests are consumed from.
type RabbitMQ struct {
	Server      string `yaml:"server" default:"localhost"`
	Port        int    `yaml:"port" default:"5672"`
	User        string `yaml:"user" default:"guest"`
	Password    string `yaml:"password" default:"guest"`
	UseSSL      bool   `yaml:"use_ssl"`
	VHost       string `yaml:"vhost" default:"/"`
	Exchange    string `yaml:"exchange" default:"vcdext"`
	Queue       string `yaml:"queue" default:"lumext"`
	RoutingKey  string `yaml:"routing_key" default:"lumext"`
	MaxInFlight int    `yaml:"max_in_flight" default:"16"`
}

// VCD configures the vCloud Director API surface.
type VCD struct {
	APIVersion string `yaml:"api_version" default:"31.0"`
}

// Log configures the logger.
type Log struct {
	// Level is one of trivia, debug, info, warn, error.
	Level string `yaml:"level" default:"info"`
	// Format is one of logfmt, json, console.
	Format string `yaml:"format" default:"logfmt"`
}

// Health configures the health check endpoint.
type Health struct {
	// Listen is the address of the health endpoint, empty disables it.
	Listen string `yaml:"listen"`
}

// Load reads the configuration file at path, applying defaults for unset values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all mandatory settings are present.
func (c *Config) Validate() error {
	var errs []error

	if c.LDAP.Address == "" {
		errs = append(errs, errors.New("ldap.address is required"))
	} else if !strings.HasPrefix(c.LDAP.Address, "ldap://") && !strings.HasPrefix(c.LDAP.Address, "ldaps://") {
		errs = append(errs, fmt.Errorf("ldap.address must be an ldap:// or ldaps:// url: %s", c.LDAP.Address))
	}
	if c.LDAP.Base == "" {
		errs = append(errs, errors.New("ldap.base is required"))
	}
	if c.LDAP.Domain == "" {
		errs = append(errs, errors.New("ldap.domain is required"))
	}
	if c.LDAP.SearchTimeout <= 0 {
		errs = append(errs, errors.New("ldap.search_timeout must be positive"))
	}
	if c.RabbitMQ.Exchange == "" || c.RabbitMQ.Queue == "" {
		errs = append(errs, errors.New("rabbitmq.exchange and rabbitmq.queue are required"))
	}
	if c.RabbitMQ.MaxInFlight <= 0 {
		errs = append(errs, errors.New("rabbitmq.max_in_flight must be positive"))
	}

	switch c.Log.Format {
	case "logfmt", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.format: %s", c.Log.Format))
	}

	return errors.Join(errs...)
}

// IsEncrypted reports whether the directory address uses LDAP over TLS.
func (l *LDAP) IsEncrypted() bool {
	return strings.HasPrefix(strings.ToLower(l.Address), "ldaps://")
}
