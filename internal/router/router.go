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

package router

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gpu-ninja/lumext/api"
	"github.com/gpu-ninja/lumext/internal/apierrors"
	"github.com/gpu-ninja/lumext/internal/constants"
	"github.com/gpu-ninja/lumext/internal/directory"
	"github.com/gpu-ninja/lumext/internal/provisioning"
	"github.com/gpu-ninja/lumext/internal/response"
	"github.com/gpu-ninja/lumext/internal/util"
	"go.uber.org/zap"
)

// Engine performs the user operations requests are routed to.
type Engine interface {
	ListUsers(ctx context.Context, tenant string) ([]*directory.User, error)
	GetUser(ctx context.Context, tenant, login string) (*directory.User, error)
	CreateUser(ctx context.Context, tenant string, req provisioning.CreateUserRequest) (*directory.User, error)
	EditUser(ctx context.Context, tenant, login string, changes provisioning.UserChanges) (*directory.User, error)
	DeleteUser(ctx context.Context, tenant, login string) (*provisioning.Status, error)
}

var _ Engine = (*provisioning.Engine)(nil)

// Target is what a request URI addresses.
type Target struct {
	Tenant     string
	Namespace  string
	ObjectType string
	// Login is empty when the request addresses the collection.
	Login string
}

// ParseURI splits a request URI of the form
// /api/org/<tenant>/<namespace>[/<object type>[/<login>]].
func ParseURI(uri string) (*Target, error) {
	uri, _, _ = strings.Cut(uri, "?")

	_, rest, ok := strings.Cut(uri, constants.URIPrefix)
	if !ok {
		return nil, apierrors.BadRequest("Invalid URI for request: %s", uri)
	}

	segments := strings.Split(rest, "/")
	if len(segments) < 2 {
		return nil, apierrors.BadRequest("Invalid URI for request: %s", rest)
	}

	target := &Target{
		Tenant:    segments[0],
		Namespace: segments[1],
	}

	if len(segments) > 2 {
		target.ObjectType = segments[2]
	}

	if len(segments) > 3 {
		target.Login = segments[3]
	}

	return target, nil
}

type Router struct {
	engine Engine
}

func New(engine Engine) *Router {
	return &Router{
		engine: engine,
	}
}

// Route dispatches req to the engine.
func (r *Router) Route(ctx context.Context, req *api.Request) response.Result {
	logger := util.LoggerFromContext(ctx)

	target, err := ParseURI(req.RequestURI)
	if err != nil {
		return response.Failure(err)
	}

	if target.Namespace != constants.Namespace {
		return response.Failure(apierrors.BadRequest("Invalid application requested. Only managing LUMExt here."))
	}

	body, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return response.Failure(apierrors.BadRequest("Invalid base64 content for request body"))
	}

	switch target.ObjectType {
	case "":
		return response.Failure(apierrors.NotFound("No object type specified."))
	case constants.ObjectTypeUser:
	default:
		return response.Failure(apierrors.NotFound("Invalid object type specified: %s", target.ObjectType))
	}

	method := strings.ToUpper(req.Method)
	tenant, login := target.Tenant, target.Login

	logger.Info("Routing request", zap.String("tenant", tenant), zap.String("object_type", target.ObjectType))

	switch {
	case method == http.MethodGet && login != "":
		logger.Debug("Getting user", zap.String("login", login))
		return result(r.engine.GetUser(ctx, tenant, login))
	case method == http.MethodGet:
		logger.Debug("Listing users")
		return result(r.engine.ListUsers(ctx, tenant))
	case method == http.MethodPost:
		var createReq provisioning.CreateUserRequest
		if err := decodeBody(ctx, body, &createReq); err != nil {
			return response.Failure(err)
		}

		logger.Debug("Creating user", zap.String("login", createReq.Login))
		return result(r.engine.CreateUser(ctx, tenant, createReq))
	case method == http.MethodPut && login != "":
		var changes provisioning.UserChanges
		if err := decodeBody(ctx, body, &changes); err != nil {
			return response.Failure(err)
		}

		logger.Debug("Editing user", zap.String("login", login))
		return result(r.engine.EditUser(ctx, tenant, login, changes))
	case method == http.MethodDelete && login != "":
		logger.Debug("Deleting user", zap.String("login", login))
		return result(r.engine.DeleteUser(ctx, tenant, login))
	default:
		logger.Warn("Invalid request", zap.String("method", method), zap.String("uri", req.RequestURI))
		return response.Failure(apierrors.MethodNotSupported("Method Not Allowed"))
	}
}

// decodeBody decodes a JSON object into v. Content that is not JSON at all is
// treated as an empty object.
func decodeBody(ctx context.Context, body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}

	err := json.Unmarshal(body, v)

	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typeErr):
		return apierrors.BadRequest("Invalid JSON content for request body")
	default:
		util.LoggerFromContext(ctx).Warn("Invalid JSON content for request body, ignoring it", zap.Error(err))
		return nil
	}
}

func result[T any](v T, err error) response.Result {
	if err != nil {
		return response.Failure(err)
	}

	return response.OK(v)
}
