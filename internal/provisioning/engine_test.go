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

package provisioning_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gpu-ninja/lumext/api"
	"github.com/gpu-ninja/lumext/internal/apierrors"
	"github.com/gpu-ninja/lumext/internal/codec"
	"github.com/gpu-ninja/lumext/internal/config"
	"github.com/gpu-ninja/lumext/internal/directory"
	"github.com/gpu-ninja/lumext/internal/logging"
	"github.com/gpu-ninja/lumext/internal/provisioning"
	"github.com/gpu-ninja/lumext/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"k8s.io/utils/ptr"
)

const baseDN = "DC=example,DC=com"

func newEngine(t *testing.T) (context.Context, *directory.FakeClient, *provisioning.Engine) {
	client := directory.NewFakeClient(baseDN)

	engine := provisioning.NewEngine(client, &config.LDAP{
		Base:               baseDN,
		Domain:             "example.com",
		UserAccountControl: 512,
	})

	ctx := util.WithLogger(context.Background(), zaptest.NewLogger(t))

	return ctx, client, engine
}

func createJohnDoe(ctx context.Context, t *testing.T, engine *provisioning.Engine) *directory.User {
	user, err := engine.CreateUser(ctx, "acme", provisioning.CreateUserRequest{
		Login:           "jdoe",
		DisplayName:     "J Doe",
		Description:     "Contractor",
		Password:        "P@ss1",
		PasswordConfirm: "P@ss1",
	})
	require.NoError(t, err)

	return user
}

func TestEnsureTenantHierarchy(t *testing.T) {
	ctx, client, engine := newEngine(t)

	require.NoError(t, engine.EnsureTenantHierarchy(ctx, "acme"))

	expected := []string{
		"DC=example,DC=com",
		"OU=acme,DC=example,DC=com",
		"OU=Groups,OU=acme,DC=example,DC=com",
		"OU=Users,OU=acme,DC=example,DC=com",
	}

	var dns []string
	for _, entry := range client.Entries() {
		dns = append(dns, entry.DN)
	}
	assert.Equal(t, expected, dns)
	assert.Len(t, client.CallsOf("add"), 3)

	t.Run("Idempotent", func(t *testing.T) {
		client.ResetCalls()

		require.NoError(t, engine.EnsureTenantHierarchy(ctx, "acme"))

		assert.Len(t, client.Entries(), len(expected))
		assert.Empty(t, client.CallsOf("add"))
	})

	t.Run("Missing Child", func(t *testing.T) {
		require.NoError(t, client.Delete(ctx, "OU=Groups,OU=acme,"+baseDN))
		client.ResetCalls()

		require.NoError(t, engine.EnsureTenantHierarchy(ctx, "acme"))

		adds := client.CallsOf("add")
		require.Len(t, adds, 1)
		assert.Equal(t, "OU=Groups,OU=acme,DC=example,DC=com", adds[0].DN)
	})

	t.Run("Concurrently Created", func(t *testing.T) {
		// Searches come back empty, every add then reports the entry exists.
		client.SetError("search", errors.New("timeout"))
		defer client.SetError("search", nil)

		assert.NoError(t, engine.EnsureTenantHierarchy(ctx, "acme"))
	})

	t.Run("Creation Failure", func(t *testing.T) {
		client.SetError("add", errors.New("insufficient access"))
		defer client.SetError("add", nil)

		err := engine.EnsureTenantHierarchy(ctx, "globex")
		assert.True(t, apierrors.Is(err, apierrors.KindServerError))
		assert.EqualError(t, err, "ServerError: Server side issue on creating OU.")
	})

	t.Run("Invalid Tenant", func(t *testing.T) {
		err := engine.EnsureTenantHierarchy(ctx, "")
		assert.True(t, apierrors.Is(err, apierrors.KindBadRequest))

		err = engine.EnsureTenantHierarchy(ctx, "acme\x00")
		assert.True(t, apierrors.Is(err, apierrors.KindBadRequest))
	})

	t.Run("Special Characters", func(t *testing.T) {
		require.NoError(t, engine.EnsureTenantHierarchy(ctx, "Acme, Inc."))
		assert.Equal(t, `OU=Acme\, Inc.,DC=example,DC=com`, engine.TenantDN("Acme, Inc."))

		client.ResetCalls()
		require.NoError(t, engine.EnsureTenantHierarchy(ctx, "Acme, Inc."))
		assert.Empty(t, client.CallsOf("add"))
	})
}

func TestCreateUser(t *testing.T) {
	ctx, client, engine := newEngine(t)

	user := createJohnDoe(ctx, t, engine)

	assert.Equal(t, "CN=J Doe,OU=Users,OU=acme,DC=example,DC=com", user.Base)
	assert.Equal(t, "OU=Users,OU=acme,DC=example,DC=com", user.Location)
	assert.Equal(t, "jdoe", user.Login)
	assert.Equal(t, "J Doe", user.DisplayName)
	assert.Equal(t, "Contractor", user.Description)

	adds := client.CallsOf("add")
	require.NotEmpty(t, adds)
	attrs := adds[len(adds)-1].Attributes
	assert.Equal(t, "jdoe@example.com", string(attrs.First("userPrincipalName")))
	assert.Equal(t, "512", string(attrs.First("userAccountControl")))
	assert.Equal(t, codec.Encode("unicodePwd", "P@ss1"), attrs.First("unicodePwd"))

	t.Run("Round Trip", func(t *testing.T) {
		user, err := engine.GetUser(ctx, "acme", "jdoe")
		require.NoError(t, err)

		assert.Equal(t, "jdoe", user.Login)
		assert.Equal(t, "J Doe", user.DisplayName)
	})

	t.Run("Conflict", func(t *testing.T) {
		_, err := engine.CreateUser(ctx, "acme", provisioning.CreateUserRequest{
			Login:           "jdoe",
			DisplayName:     "Another J Doe",
			Password:        "P@ss1",
			PasswordConfirm: "P@ss1",
		})
		assert.True(t, apierrors.Is(err, apierrors.KindConflict))
		assert.EqualError(t, err, "Conflict: User jdoe already exists.")

		users, err := engine.ListUsers(ctx, "acme")
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("Missing Attributes", func(t *testing.T) {
		for field, req := range map[string]provisioning.CreateUserRequest{
			"login":        {DisplayName: "X", Password: "p", PasswordConfirm: "p"},
			"password":     {Login: "x", DisplayName: "X"},
			"display_name": {Login: "x", Password: "p", PasswordConfirm: "p"},
		} {
			_, err := engine.CreateUser(ctx, "acme", req)
			assert.True(t, apierrors.Is(err, apierrors.KindBadRequest), field)
			assert.EqualError(t, err, "BadRequest: Missing mandatory attribute "+field+" for user creation.")
		}
	})

	t.Run("Password Mismatch", func(t *testing.T) {
		// Validation comes before the conflict check.
		_, err := engine.CreateUser(ctx, "acme", provisioning.CreateUserRequest{
			Login:           "jdoe",
			DisplayName:     "J Doe",
			Password:        "P@ss1",
			PasswordConfirm: "P@ss2",
		})
		assert.EqualError(t, err, "BadRequest: password and passwordConfirm mismatch.")
	})

	t.Run("Directory Failure", func(t *testing.T) {
		client.SetError("add", errors.New("constraint violation"))
		defer client.SetError("add", nil)

		_, err := engine.CreateUser(ctx, "acme", provisioning.CreateUserRequest{
			Login:           "asmith",
			DisplayName:     "A Smith",
			Password:        "P@ss1",
			PasswordConfirm: "P@ss1",
		})
		assert.EqualError(t, err, "ServerError: Server side issue on creating user.")
	})

	t.Run("Phases", func(t *testing.T) {
		ctx := util.WithPhase(ctx)

		_, err := engine.CreateUser(ctx, "acme", provisioning.CreateUserRequest{
			Login:           "bjones",
			DisplayName:     "B Jones",
			Password:        "P@ss1",
			PasswordConfirm: "P@ss1",
		})
		require.NoError(t, err)

		assert.Equal(t, api.PhaseExecuted, util.PhaseFromContext(ctx))
	})
}

func TestGetUser(t *testing.T) {
	ctx, _, engine := newEngine(t)

	createJohnDoe(ctx, t, engine)

	_, err := engine.GetUser(ctx, "acme", "JDOE")
	assert.True(t, apierrors.Is(err, apierrors.KindNotFound))

	_, err = engine.GetUser(ctx, "globex", "jdoe")
	assert.True(t, apierrors.Is(err, apierrors.KindNotFound))

	users, err := engine.ListUsers(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestEditUser(t *testing.T) {
	t.Run("Unchanged", func(t *testing.T) {
		ctx, client, engine := newEngine(t)
		createJohnDoe(ctx, t, engine)
		client.ResetCalls()

		user, err := engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			DisplayName: ptr.To("J Doe"),
			Login:       ptr.To("jdoe"),
			Description: ptr.To("Contractor"),
		})
		require.NoError(t, err)

		assert.Equal(t, "J Doe", user.DisplayName)
		assert.Empty(t, client.CallsOf("modify"))
	})

	t.Run("Empty Values Are Ignored", func(t *testing.T) {
		ctx, client, engine := newEngine(t)
		createJohnDoe(ctx, t, engine)
		client.ResetCalls()

		_, err := engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			DisplayName: ptr.To(""),
			Login:       ptr.To(""),
			Password:    ptr.To(""),
		})
		require.NoError(t, err)

		assert.Empty(t, client.CallsOf("modify"))
	})

	t.Run("Clear Description", func(t *testing.T) {
		ctx, client, engine := newEngine(t)
		createJohnDoe(ctx, t, engine)
		client.ResetCalls()

		user, err := engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			Description: ptr.To(""),
		})
		require.NoError(t, err)
		assert.Empty(t, user.Description)

		modifies := client.CallsOf("modify")
		require.Len(t, modifies, 1)
		assert.Equal(t, []directory.Modification{
			{Operation: directory.ModifyDelete, Name: "description"},
		}, modifies[0].Modifications)

		// Clearing again is a no-op.
		client.ResetCalls()
		_, err = engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			Description: ptr.To(""),
		})
		require.NoError(t, err)
		assert.Empty(t, client.CallsOf("modify"))
	})

	t.Run("Change Login", func(t *testing.T) {
		ctx, client, engine := newEngine(t)
		createJohnDoe(ctx, t, engine)
		client.ResetCalls()

		user, err := engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			Login:       ptr.To("john.doe"),
			DisplayName: ptr.To("John Doe"),
		})
		require.NoError(t, err)

		assert.Equal(t, "john.doe", user.Login)
		assert.Equal(t, "John Doe", user.DisplayName)

		modifies := client.CallsOf("modify")
		require.Len(t, modifies, 1)

		var names []string
		for _, mod := range modifies[0].Modifications {
			assert.Equal(t, directory.ModifyReplace, mod.Operation)
			names = append(names, mod.Name)
		}
		assert.Equal(t, []string{"sAMAccountName", "userPrincipalName", "displayName"}, names)

		_, err = engine.GetUser(ctx, "acme", "jdoe")
		assert.True(t, apierrors.Is(err, apierrors.KindNotFound))
	})

	t.Run("Login Taken", func(t *testing.T) {
		ctx, _, engine := newEngine(t)
		createJohnDoe(ctx, t, engine)

		_, err := engine.CreateUser(ctx, "acme", provisioning.CreateUserRequest{
			Login:           "asmith",
			DisplayName:     "A Smith",
			Password:        "P@ss1",
			PasswordConfirm: "P@ss1",
		})
		require.NoError(t, err)

		_, err = engine.EditUser(ctx, "acme", "asmith", provisioning.UserChanges{
			Login: ptr.To("jdoe"),
		})
		assert.True(t, apierrors.Is(err, apierrors.KindConflict))
	})

	t.Run("Password Reset", func(t *testing.T) {
		core, logs := observer.New(logging.TriviaLevel)
		ctx, client, engine := newEngine(t)
		ctx = util.WithLogger(ctx, zap.New(core))

		password := "N3wSecr3t!"

		_, err := engine.CreateUser(ctx, "acme", provisioning.CreateUserRequest{
			Login:           "jdoe",
			DisplayName:     "J Doe",
			Password:        "Initi4lSecret",
			PasswordConfirm: "Initi4lSecret",
		})
		require.NoError(t, err)

		_, err = engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			Password:        ptr.To(password),
			PasswordConfirm: ptr.To(password),
		})
		require.NoError(t, err)

		modifies := client.CallsOf("modify")
		require.Len(t, modifies, 1)
		assert.Equal(t, [][]byte{codec.Encode("unicodePwd", password)}, modifies[0].Modifications[0].Values)

		require.NotEmpty(t, logs.All())

		var buf bytes.Buffer
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		for _, entry := range logs.All() {
			out, err := enc.EncodeEntry(entry.Entry, entry.Context)
			require.NoError(t, err)
			buf.Write(out.Bytes())
		}

		assert.NotContains(t, buf.String(), password)
		assert.NotContains(t, buf.String(), "Initi4lSecret")
		assert.NotContains(t, buf.String(), string(codec.Encode("unicodePwd", password)))
	})

	t.Run("Password Mismatch", func(t *testing.T) {
		ctx, client, engine := newEngine(t)
		createJohnDoe(ctx, t, engine)
		client.ResetCalls()

		_, err := engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			Password:        ptr.To("one"),
			PasswordConfirm: ptr.To("two"),
		})
		assert.True(t, apierrors.Is(err, apierrors.KindBadRequest))
		assert.Empty(t, client.CallsOf("modify"))
	})

	t.Run("Not Found", func(t *testing.T) {
		ctx, _, engine := newEngine(t)

		_, err := engine.EditUser(ctx, "acme", "nobody", provisioning.UserChanges{
			DisplayName: ptr.To("Nobody"),
		})
		assert.True(t, apierrors.Is(err, apierrors.KindNotFound))
	})

	t.Run("Directory Failure", func(t *testing.T) {
		ctx, client, engine := newEngine(t)
		createJohnDoe(ctx, t, engine)

		client.SetError("modify", errors.New("busy"))

		_, err := engine.EditUser(ctx, "acme", "jdoe", provisioning.UserChanges{
			DisplayName: ptr.To("Jane Doe"),
		})
		assert.EqualError(t, err, "ServerError: Server side issue on editing user.")
	})
}

func TestDeleteUser(t *testing.T) {
	ctx, client, engine := newEngine(t)
	createJohnDoe(ctx, t, engine)

	status, err := engine.DeleteUser(ctx, "acme", "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "success", status.Status)

	_, err = engine.GetUser(ctx, "acme", "jdoe")
	assert.True(t, apierrors.Is(err, apierrors.KindNotFound))

	_, err = engine.DeleteUser(ctx, "acme", "jdoe")
	assert.True(t, apierrors.Is(err, apierrors.KindNotFound))

	t.Run("Directory Failure", func(t *testing.T) {
		createJohnDoe(ctx, t, engine)

		client.SetError("delete", errors.New("busy"))
		defer client.SetError("delete", nil)

		_, err := engine.DeleteUser(ctx, "acme", "jdoe")
		assert.EqualError(t, err, "ServerError: Server side issue on user deletion.")
	})
}
