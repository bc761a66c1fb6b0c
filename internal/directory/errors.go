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
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Error is returned by directory writes. It carries the operation, the entry
// and, when the server answered, the LDAP result code.
type Error struct {
	Op    string
	DN    string
	Code  uint16
	Cause error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ldap %s %q failed (code %d, %s): %v",
			e.Op, e.DN, e.Code, ldap.LDAPResultCodeMap[e.Code], e.Cause)
	}

	return fmt.Sprintf("ldap %s %q failed: %v", e.Op, e.DN, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(op, dn string, err error) *Error {
	e := &Error{
		Op:    op,
		DN:    dn,
		Cause: err,
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		e.Code = ldapErr.ResultCode
	}

	return e
}

// NewErrorWithCode returns an error as the server would have reported it.
func NewErrorWithCode(op, dn string, code uint16) *Error {
	return newError(op, dn, ldap.NewError(code, errors.New(ldap.LDAPResultCodeMap[code])))
}

// IsAlreadyExists reports whether err means the entry already exists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, ldap.LDAPResultEntryAlreadyExists)
}

// IsNoSuchObject reports whether err means the entry does not exist.
func IsNoSuchObject(err error) bool {
	return hasCode(err, ldap.LDAPResultNoSuchObject)
}

func hasCode(err error, code uint16) bool {
	var dirErr *Error
	if errors.As(err, &dirErr) && dirErr.Code == code {
		return true
	}

	return ldap.IsErrorWithCode(err, code)
}

// isTimeout reports whether a search failed because it ran out of time
// (server side time limit or client side timeout).
func isTimeout(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultTimeLimitExceeded) ||
		ldap.IsErrorWithCode(err, ldap.ErrorNetwork)
}
