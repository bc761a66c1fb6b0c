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
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gpu-ninja/lumext/api"
	"github.com/gpu-ninja/lumext/internal/apierrors"
	"github.com/gpu-ninja/lumext/internal/codec"
	"github.com/gpu-ninja/lumext/internal/constants"
	"github.com/gpu-ninja/lumext/internal/logging"
	"github.com/gpu-ninja/lumext/internal/response"
	"github.com/gpu-ninja/lumext/internal/util"
	"go.uber.org/zap"
)

// InvalidMessage is the error message of the reply to an undecodable message.
const InvalidMessage = "Invalid content for request message."

// Handler turns a delivery into a reply. Every delivery gets a reply.
type Handler struct {
	router    *Router
	formatter *response.Formatter
	logger    *zap.Logger
}

func NewHandler(router *Router, formatter *response.Formatter, logger *zap.Logger) *Handler {
	return &Handler{
		router:    router,
		formatter: formatter,
		logger:    logger,
	}
}

func (h *Handler) Handle(ctx context.Context, delivery *api.Delivery) api.Reply {
	logger := h.logger.With(
		zap.String("correlation_id", delivery.CorrelationID),
		zap.String("request_id", delivery.Request.ID),
		zap.String("method", strings.ToUpper(delivery.Request.Method)),
		zap.String("uri", delivery.Request.RequestURI),
	)

	if userID, ok := parseUserURN(delivery.Metadata.User); ok {
		logger = logger.With(zap.Stringer("user", userID))
	} else if delivery.Metadata.User != "" {
		logger.Warn("Ignoring malformed user urn", zap.String("user", delivery.Metadata.User))
	}

	ctx = util.WithPhase(util.WithLogger(ctx, logger))

	logger.Info("Processing request")
	logging.Trivia(logger, "Request details",
		zap.String("query", delivery.Request.QueryString),
		codec.RedactHeaders(delivery.Request.Headers),
		zap.Strings("rights", delivery.Metadata.Rights),
		zap.String("org", delivery.Metadata.Org))

	result := h.route(ctx, &delivery.Request)

	// Reads never reach a write, they are done once the hierarchy is checked.
	if util.PhaseFromContext(ctx) == api.PhaseHierarchyChecked {
		util.SetPhase(ctx, api.PhaseExecuted)
	}

	reply := h.formatter.Format(ctx, delivery, result)

	if reply.Response.StatusCode < http.StatusBadRequest {
		util.SetPhase(ctx, api.PhaseSucceeded)
	} else {
		util.SetPhase(ctx, api.PhaseFailed)
		logger.Debug("Request failed",
			zap.Stringer("kind", apierrors.KindOf(result.Err)),
			zap.Int("status", reply.Response.StatusCode))
	}

	return reply
}

// Fail answers a message that could not be decoded into a request with a 400.
func (h *Handler) Fail(ctx context.Context, delivery *api.Delivery, err error) api.Reply {
	logger := h.logger.With(
		zap.String("correlation_id", delivery.CorrelationID),
		zap.String("request_id", delivery.Request.ID),
	)

	ctx = util.WithPhase(util.WithLogger(ctx, logger))

	logger.Warn("Invalid request message", zap.Error(err))

	reply := h.formatter.Format(ctx, delivery, response.Failure(apierrors.BadRequest(InvalidMessage)))
	util.SetPhase(ctx, api.PhaseFailed)

	return reply
}

func (h *Handler) route(ctx context.Context, req *api.Request) (result response.Result) {
	defer func() {
		if r := recover(); r != nil {
			util.LoggerFromContext(ctx).Error("Recovered from panic while routing request", zap.Any("panic", r))
			result = response.Failure(apierrors.ServerError("Server side issue."))
		}
	}()

	return h.router.Route(ctx, req)
}

func parseUserURN(urn string) (uuid.UUID, bool) {
	id, ok := strings.CutPrefix(urn, constants.UserURNPrefix)
	if !ok {
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}

	return userID, true
}
