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

package constants

const (
	// Namespace is the extension namespace in request URIs (/api/org/<tenant>/<namespace>/...).
	Namespace = "lumext"
	// ObjectTypeUser is the only object type currently served.
	ObjectTypeUser = "user"
	// URIPrefix precedes the tenant id in every request URI.
	URIPrefix = "/api/org/"
	// UserURNPrefix precedes the uuid of the calling user in request metadata.
	UserURNPrefix = "urn:vcloud:user:"
)

// Organizational units created beneath every tenant.
const (
	UsersOrganizationalUnit  = "Users"
	GroupsOrganizationalUnit = "Groups"
)

// Directory attribute names.
const (
	AttributeObjectClass        = "objectClass"
	AttributeOrganizationalUnit = "ou"
	AttributeName               = "name"
	AttributeCommonName         = "cn"
	AttributeDisplayName        = "displayName"
	AttributeDescription        = "description"
	AttributeSAMAccountName     = "sAMAccountName"
	AttributeUserPrincipalName  = "userPrincipalName"
	AttributeUserAccountControl = "userAccountControl"
	AttributeUnicodePassword    = "unicodePwd"
	AttributeUserPassword       = "userPassword"
	AttributeObjectGUID         = "objectGUID"
	AttributeObjectSID          = "objectSid"
)

// Object classes.
var (
	OrganizationalUnitObjectClasses = []string{"top", "organizationalUnit"}
	UserObjectClasses               = []string{"top", "person", "organizationalPerson", "user"}
)

// Request headers whose values are never logged.
var SensitiveHeaders = []string{"Authorization", "x-vcloud-authorization", "Cookie"}
