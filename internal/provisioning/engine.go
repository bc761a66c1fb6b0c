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

package provisioning

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/lumext/api"
	"github.com/gpu-ninja/lumext/internal/apierrors"
	"github.com/gpu-ninja/lumext/internal/codec"
	"github.com/gpu-ninja/lumext/internal/config"
	"github.com/gpu-ninja/lumext/internal/constants"
	"github.com/gpu-ninja/lumext/internal/directory"
	"github.com/gpu-ninja/lumext/internal/logging"
	"github.com/gpu-ninja/lumext/internal/mapper"
	"github.com/gpu-ninja/lumext/internal/util"
	"go.uber.org/zap"
	"k8s.io/utils/ptr"
)

// Engine manages the users of tenants. It holds no state besides its
// configuration and is safe for concurrent use.
type Engine struct {
	client             directory.Client
	baseDN             string
	domain             string
	userAccountControl int
}

func NewEngine(client directory.Client, cfg *config.LDAP) *Engine {
	return &Engine{
		client:             client,
		baseDN:             cfg.Base,
		domain:             cfg.Domain,
		userAccountControl: cfg.UserAccountControl,
	}
}

// TenantDN returns the DN of the organizational unit of a tenant.
func (e *Engine) TenantDN(tenant string) string {
	return directory.JoinDN("OU", tenant, e.baseDN)
}

// UsersDN returns the DN of the organizational unit holding the users of a tenant.
func (e *Engine) UsersDN(tenant string) string {
	return directory.JoinDN("OU", constants.UsersOrganizationalUnit, e.TenantDN(tenant))
}

// EnsureTenantHierarchy creates the organizational units of a tenant
// (the tenant itself, Users and Groups) unless they already exist.
func (e *Engine) EnsureTenantHierarchy(ctx context.Context, tenant string) error {
	if err := validateTenant(tenant); err != nil {
		return err
	}

	logger := util.LoggerFromContext(ctx).With(zap.String("tenant", tenant))
	tenantDN := e.TenantDN(tenant)

	logging.Trivia(logger, "Checking tenant organizational unit")

	tenantEntries := e.client.Search(ctx, directory.SearchRequest{
		BaseDN:     tenantDN,
		Scope:      directory.ScopeBaseObject,
		Filter:     "(objectClass=organizationalUnit)",
		Attributes: []string{constants.AttributeOrganizationalUnit, constants.AttributeName},
	})
	if len(tenantEntries) == 0 {
		logger.Debug("Tenant organizational unit not found, creating")

		if err := e.createOrganizationalUnit(ctx, tenant, e.baseDN); err != nil {
			return err
		}
	}

	for _, name := range []string{constants.UsersOrganizationalUnit, constants.GroupsOrganizationalUnit} {
		entries := e.client.Search(ctx, directory.SearchRequest{
			BaseDN:     tenantDN,
			Scope:      directory.ScopeSingleLevel,
			Filter:     fmt.Sprintf("(&(objectClass=organizationalUnit)(name=%s))", ldap.EscapeFilter(name)),
			Attributes: []string{constants.AttributeOrganizationalUnit, constants.AttributeName},
		})
		if len(entries) > 0 {
			logging.Trivia(logger, "Organizational unit already exists", zap.String("name", name))
			continue
		}

		logger.Debug("Organizational unit not found, creating", zap.String("name", name))

		if err := e.createOrganizationalUnit(ctx, name, tenantDN); err != nil {
			return err
		}
	}

	if util.PhaseFromContext(ctx) == api.PhasePending {
		util.SetPhase(ctx, api.PhaseHierarchyChecked)
	}

	return nil
}

func (e *Engine) createOrganizationalUnit(ctx context.Context, name, parentDN string) error {
	logger := util.LoggerFromContext(ctx)

	ou := &directory.OrganizationalUnit{
		Object: directory.NewObject(directory.JoinDN("OU", name, parentDN)),
		Name:   name,
	}

	attrs := mapper.OrganizationalUnitToAttributes(ou)
	logging.Trivia(logger, "Creating organizational unit", zap.String("dn", ou.Base), codec.RedactAttributes(attrs))

	if err := e.client.Add(ctx, ou.Base, attrs); err != nil {
		// A concurrent request for the same tenant got there first.
		if directory.IsAlreadyExists(err) {
			logger.Debug("Organizational unit already exists", zap.String("dn", ou.Base))
			return nil
		}

		logger.Error("Failed to create organizational unit", zap.String("dn", ou.Base), zap.Error(err))

		return apierrors.ServerError("Server side issue on creating OU.")
	}

	logger.Info("Created organizational unit", zap.String("dn", ou.Base))

	return nil
}

// ListUsers returns every user of a tenant.
func (e *Engine) ListUsers(ctx context.Context, tenant string) ([]*directory.User, error) {
	if err := e.EnsureTenantHierarchy(ctx, tenant); err != nil {
		return nil, err
	}

	logger := util.LoggerFromContext(ctx).With(zap.String("tenant", tenant))

	entries := e.client.Search(ctx, directory.SearchRequest{
		BaseDN:     e.UsersDN(tenant),
		Scope:      directory.ScopeWholeSubtree,
		Filter:     "(objectClass=user)",
		Attributes: mapper.UserAttributes,
	})

	users := make([]*directory.User, 0, len(entries))
	for _, entry := range entries {
		users = append(users, mapper.EntryToUser(entry))
	}

	logger.Debug("Listed users", zap.Int("count", len(users)))

	return users, nil
}

// GetUser returns the user of a tenant with the given login.
func (e *Engine) GetUser(ctx context.Context, tenant, login string) (*directory.User, error) {
	users, err := e.ListUsers(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if user := findUser(users, login); user != nil {
		return user, nil
	}

	util.LoggerFromContext(ctx).Debug("User not found",
		zap.String("tenant", tenant), zap.String("login", login))

	return nil, apierrors.NotFound("Not found")
}

// CreateUser creates a user in a tenant and returns it as read back from the directory.
func (e *Engine) CreateUser(ctx context.Context, tenant string, req CreateUserRequest) (*directory.User, error) {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"login", req.Login},
		{"password", req.Password},
		{"display_name", req.DisplayName},
	} {
		if field.value == "" {
			return nil, apierrors.BadRequest("Missing mandatory attribute %s for user creation.", field.name)
		}
	}

	if req.Password != req.PasswordConfirm {
		return nil, apierrors.BadRequest("password and passwordConfirm mismatch.")
	}

	users, err := e.ListUsers(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if findUser(users, req.Login) != nil {
		return nil, apierrors.Conflict("User %s already exists.", req.Login)
	}

	logger := util.LoggerFromContext(ctx).With(zap.String("tenant", tenant), zap.String("login", req.Login))

	user := &directory.User{
		Object:      directory.NewObject(directory.JoinDN("CN", req.DisplayName, e.UsersDN(tenant))),
		Login:       req.Login,
		DisplayName: req.DisplayName,
		Description: req.Description,
	}

	attrs := mapper.UserToAttributes(user, e.domain, e.userAccountControl, req.Password)
	logging.Trivia(logger, "Creating user", zap.String("dn", user.Base), codec.RedactAttributes(attrs))

	err = e.client.Add(ctx, user.Base, attrs)
	util.SetPhase(ctx, api.PhaseExecuted)
	if err != nil {
		logger.Error("Failed to create user", zap.Error(err))
		return nil, apierrors.ServerError("Server side issue on creating user.")
	}

	logger.Info("Created user", zap.String("dn", user.Base))

	return e.readBack(ctx, tenant, req.Login)
}

// EditUser applies changes to a user and returns it as read back from the
// directory. Nothing is written when the changes match the current values.
func (e *Engine) EditUser(ctx context.Context, tenant, login string, changes UserChanges) (*directory.User, error) {
	users, err := e.ListUsers(ctx, tenant)
	if err != nil {
		return nil, err
	}

	user := findUser(users, login)
	if user == nil {
		return nil, apierrors.NotFound("Not found")
	}

	logger := util.LoggerFromContext(ctx).With(zap.String("tenant", tenant), zap.String("login", login))

	var mods []directory.Modification
	add := func(mod *directory.Modification) {
		if mod != nil {
			mods = append(mods, *mod)
		}
	}

	// Blank login, display name or password mean "unchanged", only the
	// description can be cleared.
	newLogin := login
	if l := ptr.Deref(changes.Login, ""); l != "" {
		if l != login {
			if findUser(users, l) != nil {
				return nil, apierrors.Conflict("User %s already exists.", l)
			}

			newLogin = l
		}

		add(codec.Diff(constants.AttributeSAMAccountName, []byte(user.SAMAccountName), l))
		add(codec.Diff(constants.AttributeUserPrincipalName, []byte(user.UserPrincipalName),
			mapper.UserPrincipalName(l, e.domain)))
	}

	if changes.Description != nil {
		add(codec.Diff(constants.AttributeDescription, []byte(user.Description), *changes.Description))
	}

	if name := ptr.Deref(changes.DisplayName, ""); name != "" {
		add(codec.Diff(constants.AttributeDisplayName, []byte(user.DisplayName), name))
	}

	if password := ptr.Deref(changes.Password, ""); password != "" {
		if changes.PasswordConfirm != nil && *changes.PasswordConfirm != password {
			return nil, apierrors.BadRequest("password and passwordConfirm mismatch.")
		}

		// The current password is never readable, a reset is always written.
		add(codec.Diff(constants.AttributeUnicodePassword, nil, password))
	}

	logger.Info("Computed user changes", zap.Int("count", len(mods)))

	if len(mods) == 0 {
		logger.Debug("Nothing to edit")
		util.SetPhase(ctx, api.PhaseExecuted)

		return user, nil
	}

	logging.Trivia(logger, "Modifying user", zap.String("dn", user.Base), codec.Redact(mods...))

	err = e.client.Modify(ctx, user.Base, mods)
	util.SetPhase(ctx, api.PhaseExecuted)
	if err != nil {
		logger.Error("Failed to edit user", zap.Error(err))
		return nil, apierrors.ServerError("Server side issue on editing user.")
	}

	logger.Info("Edited user", zap.String("dn", user.Base))

	return e.readBack(ctx, tenant, newLogin)
}

// DeleteUser removes a user from a tenant.
func (e *Engine) DeleteUser(ctx context.Context, tenant, login string) (*Status, error) {
	user, err := e.GetUser(ctx, tenant, login)
	if err != nil {
		return nil, err
	}

	logger := util.LoggerFromContext(ctx).With(zap.String("tenant", tenant), zap.String("login", login))

	err = e.client.Delete(ctx, user.Base)
	util.SetPhase(ctx, api.PhaseExecuted)
	if err != nil {
		logger.Error("Failed to delete user", zap.Error(err))
		return nil, apierrors.ServerError("Server side issue on user deletion.")
	}

	logger.Info("Deleted user", zap.String("dn", user.Base))

	status := StatusSuccess
	return &status, nil
}

func (e *Engine) readBack(ctx context.Context, tenant, login string) (*directory.User, error) {
	user, err := e.GetUser(ctx, tenant, login)
	if apierrors.Is(err, apierrors.KindNotFound) {
		return nil, apierrors.ServerError("User %s could not be read back.", login)
	}

	return user, err
}

func findUser(users []*directory.User, login string) *directory.User {
	for _, user := range users {
		if user.Login == login {
			return user
		}
	}

	return nil
}

func validateTenant(tenant string) error {
	if strings.TrimSpace(tenant) == "" {
		return apierrors.BadRequest("No tenant specified.")
	}

	if strings.IndexFunc(tenant, unicode.IsControl) >= 0 {
		return apierrors.BadRequest("Invalid tenant specified: %q", tenant)
	}

	return nil
}
