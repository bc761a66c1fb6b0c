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
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Entry is implemented by the typed entries this service manages.
type Entry interface {
	*OrganizationalUnit | *User
}

// Object is the part every entry has in common: its place in the directory tree.
type Object struct {
	// Base is the distinguished name of the entry, empty until the entry is created.
	Base string `json:"base"`
	// Location is the distinguished name of the parent of the entry.
	Location string `json:"location"`
}

// NewObject returns the object located at dn.
func NewObject(dn string) Object {
	return Object{
		Base:     dn,
		Location: ParentDN(dn),
	}
}

// OrganizationalUnit represents an organizational unit in the directory.
type OrganizationalUnit struct {
	Object
	// Name is the name (ou) of this organizational unit.
	Name string `json:"name"`
	// Description is an optional description of this organizational unit.
	Description string `json:"description,omitempty"`
}

// User represents an Active Directory user account.
type User struct {
	Object
	// Login is the user principal name without the domain suffix.
	Login string `json:"login"`
	// DisplayName is the display name, also used as common name.
	DisplayName string `json:"display_name"`
	// Description is an optional description of the user.
	Description string `json:"description"`
	// ObjectGUID is the immutable identifier of the account (if returned by the server).
	ObjectGUID string `json:"object_guid,omitempty"`
	// ObjectSID is the security identifier of the account (if returned by the server).
	ObjectSID string `json:"object_sid,omitempty"`
	// SAMAccountName is the pre-Windows 2000 logon name.
	SAMAccountName string `json:"-"`
	// UserPrincipalName is the login with the domain suffix.
	UserPrincipalName string `json:"-"`
}

// Attribute is a directory attribute with its encoded values.
type Attribute struct {
	Name   string
	Values [][]byte
}

// Attributes is an ordered list of attributes. Names compare case insensitively.
type Attributes []Attribute

// Get returns the values of the named attribute.
func (a Attributes) Get(name string) [][]byte {
	for _, attr := range a {
		if strings.EqualFold(attr.Name, name) {
			return attr.Values
		}
	}

	return nil
}

// First returns the first value of the named attribute.
func (a Attributes) First(name string) []byte {
	values := a.Get(name)
	if len(values) == 0 {
		return nil
	}

	return values[0]
}

// Set replaces the values of the named attribute, appending it if absent.
func (a *Attributes) Set(name string, values ...[]byte) {
	for i, attr := range *a {
		if strings.EqualFold(attr.Name, name) {
			(*a)[i].Values = values
			return
		}
	}

	*a = append(*a, Attribute{Name: name, Values: values})
}

// Remove deletes the named attribute.
func (a *Attributes) Remove(name string) {
	for i, attr := range *a {
		if strings.EqualFold(attr.Name, name) {
			*a = append((*a)[:i], (*a)[i+1:]...)
			return
		}
	}
}

// Names returns the attribute names in order.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for _, attr := range a {
		names = append(names, attr.Name)
	}

	return names
}

// Strings returns values as strings, the way the wire requests carry them.
func Strings(values [][]byte) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}

	return out
}

// Scope is the scope of a search.
type Scope int

const (
	ScopeBaseObject   Scope = ldap.ScopeBaseObject
	ScopeSingleLevel  Scope = ldap.ScopeSingleLevel
	ScopeWholeSubtree Scope = ldap.ScopeWholeSubtree
)

func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	default:
		return "sub"
	}
}

// SearchRequest describes a search.
type SearchRequest struct {
	BaseDN     string
	Scope      Scope
	Filter     string
	Attributes []string
}

// SearchEntry is a single search result.
type SearchEntry struct {
	DN         string
	Attributes Attributes
}

// ModifyOperation is the kind of an attribute modification.
type ModifyOperation int

const (
	ModifyReplace ModifyOperation = iota
	ModifyDelete
)

func (op ModifyOperation) String() string {
	if op == ModifyDelete {
		return "delete"
	}

	return "replace"
}

// Modification replaces or deletes a single attribute.
type Modification struct {
	Operation ModifyOperation
	Name      string
	// Values is empty for deletes.
	Values [][]byte
}
