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

package response

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gpu-ninja/lumext/api"
	"github.com/gpu-ninja/lumext/internal/apierrors"
	"github.com/gpu-ninja/lumext/internal/util"
	"go.uber.org/zap"
)

const (
	// ParsingErrorMessage is returned when a response could not be produced.
	ParsingErrorMessage = "Server error in response parsing."

	genericErrorMessage = "Internal server error."
)

// Result is the outcome of routing a request, either a payload or an error.
type Result struct {
	StatusCode int
	Body       any
	Err        error
}

// OK returns a successful result carrying body.
func OK(body any) Result {
	return Result{StatusCode: http.StatusOK, Body: body}
}

// Failure returns a failed result. The status code is derived from the kind of err.
func Failure(err error) Result {
	return Result{Err: err}
}

// ErrorBody is the body of every response with a status code of 400 or above.
type ErrorBody struct {
	Message string `json:"error_message"`
}

type Formatter struct {
	apiVersion string
}

func NewFormatter(apiVersion string) *Formatter {
	return &Formatter{
		apiVersion: apiVersion,
	}
}

// Format builds the reply to delivery. It never fails: anything that goes
// wrong while formatting is reported as a 500.
func (f *Formatter) Format(ctx context.Context, delivery *api.Delivery, result Result) (reply api.Reply) {
	logger := util.LoggerFromContext(ctx)

	reply = api.Reply{
		CorrelationID:   delivery.CorrelationID,
		ReplyTo:         delivery.ReplyTo,
		ReplyToExchange: delivery.ReplyToExchange,
		Response: api.Response{
			ID:      delivery.Request.ID,
			Headers: f.headers(&delivery.Request),
		},
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Failed to format response", zap.Any("panic", r))
			reply.Response.StatusCode, reply.Response.Body = parsingError()
		}
	}()

	statusCode, body, err := f.encode(result)
	if err != nil {
		logger.Error("Failed to format response", zap.Error(err))
		statusCode, body = parsingError()
	}

	reply.Response.StatusCode = statusCode
	reply.Response.Body = body

	if statusCode >= http.StatusBadRequest {
		logger.Warn("Sending error response", zap.Int("status", statusCode), zap.Error(result.Err))
	} else {
		logger.Info("Sending response", zap.Int("status", statusCode))
	}

	return reply
}

func (f *Formatter) encode(result Result) (int, string, error) {
	statusCode := result.StatusCode
	body := result.Body

	if result.Err != nil {
		statusCode = apierrors.KindOf(result.Err).StatusCode()

		var apiErr *apierrors.Error
		if errors.As(result.Err, &apiErr) {
			body = ErrorBody{Message: apiErr.Message}
		} else {
			body = ErrorBody{Message: genericErrorMessage}
		}
	}

	if statusCode < 100 || statusCode > 599 {
		return 0, "", fmt.Errorf("invalid status code: %d", statusCode)
	}

	if statusCode >= http.StatusBadRequest {
		if _, ok := body.(ErrorBody); !ok {
			return 0, "", fmt.Errorf("error response without an error message: %T", body)
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to marshal response body: %w", err)
	}

	return statusCode, base64.StdEncoding.EncodeToString(data), nil
}

func (f *Formatter) headers(req *api.Request) map[string]string {
	headers := map[string]string{
		"Content-Type": fmt.Sprintf("application/*+json;version=%s", f.apiVersion),
	}

	for name, value := range req.Headers {
		if strings.EqualFold(name, "Accept") {
			headers["Accept"] = value
		}
	}

	return headers
}

func parsingError() (int, string) {
	data, _ := json.Marshal(ErrorBody{Message: ParsingErrorMessage})
	return http.StatusInternalServerError, base64.StdEncoding.EncodeToString(data)
}

// DecodeBody decodes the body of a response, for logging and tests.
func DecodeBody(resp *api.Response) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return data, nil
}
