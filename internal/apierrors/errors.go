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

package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how it is reported to the requester.
type Kind int

const (
	// KindServerError is a directory or internal failure.
	KindServerError Kind = iota
	// KindBadRequest is malformed input or a failed validation.
	KindBadRequest
	// KindNotFound means the requested tenant or user does not exist.
	KindNotFound
	// KindConflict means the object already exists.
	KindConflict
	// KindMethodNotSupported means the method is not valid for the target.
	KindMethodNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BadRequest"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindMethodNotSupported:
		return "MethodNotSupported"
	default:
		return "ServerError"
	}
}

// StatusCode returns the HTTP status code for the kind.
// Conflicts are reported as 400, vCloud Director clients depend on it.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotSupported:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error with a kind and a message that is safe to show to the requester.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// StatusCode returns the HTTP status code for the error.
func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

func newError(kind Kind, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func BadRequest(format string, args ...any) error {
	return newError(KindBadRequest, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

func MethodNotSupported(format string, args ...any) error {
	return newError(KindMethodNotSupported, format, args...)
}

func ServerError(format string, args ...any) error {
	return newError(KindServerError, format, args...)
}

// KindOf returns the kind of err. Errors that do not carry a kind are server errors.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return KindServerError
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
