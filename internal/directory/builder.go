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

package directory

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/gpu-ninja/lumext/internal/config"
)

type ClientBuilder interface {
	WithConfig(cfg *config.LDAP) ClientBuilder
	Build(ctx context.Context) (Client, error)
}

type clientBuilderImpl struct {
	cfg *config.LDAP
}

func NewClientBuilder() ClientBuilder {
	return &clientBuilderImpl{}
}

func (b *clientBuilderImpl) WithConfig(cfg *config.LDAP) ClientBuilder {
	return &clientBuilderImpl{
		cfg: cfg,
	}
}

func (b *clientBuilderImpl) Build(_ context.Context) (Client, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("missing ldap configuration")
	}

	var caBundle *x509.CertPool
	if b.cfg.CACertFile != "" {
		caCertPEM, err := os.ReadFile(b.cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca certificate: %w", err)
		}

		caBundle = x509.NewCertPool()
		if ok := caBundle.AppendCertsFromPEM(caCertPEM); !ok {
			return nil, fmt.Errorf("failed to construct ca bundle")
		}
	} else if b.cfg.IsEncrypted() {
		// Fall back to the system roots, verification stays on.
		systemPool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("failed to load system ca bundle: %w", err)
		}

		caBundle = systemPool
	}

	return &clientImpl{
		serverAddress: b.cfg.Address,
		caBundle:      caBundle,
		adminUsername: b.cfg.User,
		adminPassword: b.cfg.Secret,
		searchTimeout: b.cfg.SearchTimeout,
		timeout:       orDefault(b.cfg.Timeout, 30*time.Second),
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}
