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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/lumext/internal/logging"
	"github.com/gpu-ninja/lumext/internal/util"
	"go.uber.org/zap"
)

// Client is an LDAP directory client.
type Client interface {
	// Ping checks if the directory is available and responding to requests.
	Ping(ctx context.Context) error
	// Search returns the matching entries. Failures are logged and reported as
	// an empty result, callers can not tell "not found" from "search failed".
	Search(ctx context.Context, req SearchRequest) []SearchEntry
	Add(ctx context.Context, dn string, attrs Attributes) error
	Modify(ctx context.Context, dn string, mods []Modification) error
	Delete(ctx context.Context, dn string) error
}

// Every call opens (and closes) its own authenticated connection, nothing is
// shared between concurrent requests.
type clientImpl struct {
	serverAddress string
	caBundle      *x509.CertPool
	adminUsername string
	adminPassword string
	searchTimeout time.Duration
	timeout       time.Duration
}

func (c *clientImpl) Ping(ctx context.Context) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	searchRequest := ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, int(c.searchTimeout.Seconds()), false,
		"(objectClass=*)",
		[]string{"1.1"},
		nil,
	)

	if _, err := conn.Search(searchRequest); err != nil {
		return fmt.Errorf("failed to query root dse: %w", err)
	}

	return nil
}

func (c *clientImpl) Search(ctx context.Context, req SearchRequest) []SearchEntry {
	logger := util.LoggerFromContext(ctx).With(zap.String("base", req.BaseDN))

	logger.Debug("Starting a new search")
	logging.Trivia(logger, "Search parameters",
		zap.String("filter", req.Filter),
		zap.Strings("attributes", req.Attributes),
		zap.Stringer("scope", req.Scope))

	conn, err := c.connect()
	if err != nil {
		logger.Warn("Failed to connect for search", zap.Error(err))
		return nil
	}
	defer conn.Close()

	conn.SetTimeout(c.searchTimeout)

	searchRequest := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope), ldap.NeverDerefAliases, 0, int(c.searchTimeout.Seconds()), false,
		req.Filter,
		req.Attributes,
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		switch {
		case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
			logger.Debug("Search base does not exist")
		case isTimeout(err):
			logger.Error("Search timed out", zap.Error(err))
		default:
			logger.Warn("Search failed", zap.Error(err))
		}

		return nil
	}

	entries := make([]SearchEntry, 0, len(searchResult.Entries))
	for _, entry := range searchResult.Entries {
		attrs := make(Attributes, 0, len(entry.Attributes))
		for _, attr := range entry.Attributes {
			attrs = append(attrs, Attribute{Name: attr.Name, Values: attr.ByteValues})
		}

		entries = append(entries, SearchEntry{DN: entry.DN, Attributes: attrs})
	}

	logger.Debug("Search completed", zap.Int("entries", len(entries)))

	return entries
}

func (c *clientImpl) Add(ctx context.Context, dn string, attrs Attributes) error {
	conn, err := c.connect()
	if err != nil {
		return newError("add", dn, err)
	}
	defer conn.Close()

	addRequest := ldap.NewAddRequest(dn, nil)
	for _, attr := range attrs {
		addRequest.Attribute(attr.Name, Strings(attr.Values))
	}

	if err := conn.Add(addRequest); err != nil {
		return newError("add", dn, err)
	}

	return nil
}

func (c *clientImpl) Modify(ctx context.Context, dn string, mods []Modification) error {
	if len(mods) == 0 {
		return newError("modify", dn, errors.New("no modifications"))
	}

	conn, err := c.connect()
	if err != nil {
		return newError("modify", dn, err)
	}
	defer conn.Close()

	modifyRequest := ldap.NewModifyRequest(dn, nil)
	for _, mod := range mods {
		switch mod.Operation {
		case ModifyDelete:
			modifyRequest.Delete(mod.Name, []string{})
		default:
			modifyRequest.Replace(mod.Name, Strings(mod.Values))
		}
	}

	if err := conn.Modify(modifyRequest); err != nil {
		return newError("modify", dn, err)
	}

	return nil
}

func (c *clientImpl) Delete(ctx context.Context, dn string) error {
	conn, err := c.connect()
	if err != nil {
		return newError("delete", dn, err)
	}
	defer conn.Close()

	if err := conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		return newError("delete", dn, err)
	}

	return nil
}

func (c *clientImpl) connect() (*ldap.Conn, error) {
	// The TLS config is only used for ldaps:// addresses.
	conn, err := ldap.DialURL(c.serverAddress, ldap.DialWithTLSConfig(&tls.Config{
		RootCAs: c.caBundle,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ldap server: %w", err)
	}

	conn.SetTimeout(c.timeout)

	if err := conn.Bind(c.adminUsername, c.adminPassword); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind to ldap server: %w", err)
	}

	return conn, nil
}
