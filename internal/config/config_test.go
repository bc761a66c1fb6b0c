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

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gpu-ninja/lumext/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		path := writeConfig(t, `
ldap:
  address: ldaps://dc01.example.com
  user: CN=svc-lumext,CN=Users,DC=example,DC=com
  secret: changeme
  base: OU=Tenants,DC=example,DC=com
  domain: example.com
  cacert_file: /etc/lumext/ca.pem
`)

		cfg, err := config.Load(path)
		require.NoError(t, err)

		assert.Equal(t, "ldaps://dc01.example.com", cfg.LDAP.Address)
		assert.Equal(t, 512, cfg.LDAP.UserAccountControl)
		assert.Equal(t, 5*time.Second, cfg.LDAP.SearchTimeout)
		assert.Equal(t, 30*time.Second, cfg.LDAP.Timeout)
		assert.True(t, cfg.LDAP.IsEncrypted())

		assert.Equal(t, "localhost", cfg.RabbitMQ.Server)
		assert.Equal(t, 5672, cfg.RabbitMQ.Port)
		assert.Equal(t, 16, cfg.RabbitMQ.MaxInFlight)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "logfmt", cfg.Log.Format)
		assert.Equal(t, "31.0", cfg.VCD.APIVersion)
		assert.Empty(t, cfg.Health.Listen)
	})

	t.Run("Overrides", func(t *testing.T) {
		path := writeConfig(t, `
ldap:
  address: ldap://localhost:389
  base: dc=example,dc=com
  domain: example.com
  user_account_control: 66048
  search_timeout: 2s
rabbitmq:
  server: rabbit.example.com
  use_ssl: true
  exchange: vcdext
  queue: lumext-dev
  routing_key: lumext-dev
log:
  level: trivia
  format: json
health:
  listen: 127.0.0.1:8080
`)

		cfg, err := config.Load(path)
		require.NoError(t, err)

		assert.Equal(t, 66048, cfg.LDAP.UserAccountControl)
		assert.Equal(t, 2*time.Second, cfg.LDAP.SearchTimeout)
		assert.False(t, cfg.LDAP.IsEncrypted())
		assert.Equal(t, "rabbit.example.com", cfg.RabbitMQ.Server)
		assert.True(t, cfg.RabbitMQ.UseSSL)
		assert.Equal(t, "lumext-dev", cfg.RabbitMQ.Queue)
		assert.Equal(t, "trivia", cfg.Log.Level)
		assert.Equal(t, "127.0.0.1:8080", cfg.Health.Listen)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "ldap: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, `
ldap:
  address: http://dc01.example.com
log:
  format: xml
`))
		require.Error(t, err)

		assert.Contains(t, err.Error(), "ldap.address must be an ldap:// or ldaps:// url")
		assert.Contains(t, err.Error(), "ldap.base is required")
		assert.Contains(t, err.Error(), "ldap.domain is required")
		assert.Contains(t, err.Error(), "unsupported log.format: xml")
	})
}
