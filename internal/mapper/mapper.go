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

package mapper

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
	"github.com/gpu-ninja/lumext/internal/codec"
	"github.com/gpu-ninja/lumext/internal/constants"
	"github.com/gpu-ninja/lumext/internal/directory"
)

// Mapper decodes a search entry into a typed entry.
type Mapper[E directory.Entry] func(entry directory.SearchEntry) E

var (
	_ Mapper[*directory.User]               = EntryToUser
	_ Mapper[*directory.OrganizationalUnit] = EntryToOrganizationalUnit
)

// UserAttributes are the attributes requested when reading users.
var UserAttributes = []string{
	constants.AttributeDisplayName,
	constants.AttributeDescription,
	constants.AttributeUserPrincipalName,
	constants.AttributeSAMAccountName,
	constants.AttributeObjectGUID,
	constants.AttributeObjectSID,
}

func EntryToUser(entry directory.SearchEntry) *directory.User {
	user := &directory.User{
		Object:            directory.NewObject(entry.DN),
		DisplayName:       decode(entry, constants.AttributeDisplayName),
		Description:       decode(entry, constants.AttributeDescription),
		SAMAccountName:    decode(entry, constants.AttributeSAMAccountName),
		UserPrincipalName: decode(entry, constants.AttributeUserPrincipalName),
		ObjectGUID:        decodeGUID(entry.Attributes.First(constants.AttributeObjectGUID)),
		ObjectSID:         decodeSID(entry.Attributes.First(constants.AttributeObjectSID)),
	}

	user.Login, _, _ = strings.Cut(user.UserPrincipalName, "@")
	if user.Login == "" {
		user.Login = user.SAMAccountName
	}

	return user
}

func EntryToOrganizationalUnit(entry directory.SearchEntry) *directory.OrganizationalUnit {
	ou := &directory.OrganizationalUnit{
		Object:      directory.NewObject(entry.DN),
		Name:        decode(entry, constants.AttributeOrganizationalUnit),
		Description: decode(entry, constants.AttributeDescription),
	}

	if ou.Name == "" {
		ou.Name = decode(entry, constants.AttributeName)
	}

	return ou
}

// UserToAttributes returns the attributes of a new user account.
func UserToAttributes(user *directory.User, domain string, userAccountControl int, password string) directory.Attributes {
	attrs := directory.Attributes{
		{Name: constants.AttributeObjectClass, Values: values(constants.UserObjectClasses...)},
		{Name: constants.AttributeCommonName, Values: values(user.DisplayName)},
		{Name: constants.AttributeDisplayName, Values: values(user.DisplayName)},
		{Name: constants.AttributeSAMAccountName, Values: values(user.Login)},
		{Name: constants.AttributeUserPrincipalName, Values: values(UserPrincipalName(user.Login, domain))},
		{Name: constants.AttributeUserAccountControl, Values: values(strconv.Itoa(userAccountControl))},
		{Name: constants.AttributeUnicodePassword, Values: [][]byte{codec.Encode(constants.AttributeUnicodePassword, password)}},
	}

	if user.Description != "" {
		attrs = append(attrs, directory.Attribute{
			Name:   constants.AttributeDescription,
			Values: values(user.Description),
		})
	}

	return attrs
}

// OrganizationalUnitToAttributes returns the attributes of a new organizational
// unit. The name attribute is maintained by the server.
func OrganizationalUnitToAttributes(ou *directory.OrganizationalUnit) directory.Attributes {
	attrs := directory.Attributes{
		{Name: constants.AttributeObjectClass, Values: values(constants.OrganizationalUnitObjectClasses...)},
		{Name: constants.AttributeOrganizationalUnit, Values: values(ou.Name)},
	}

	if ou.Description != "" {
		attrs = append(attrs, directory.Attribute{
			Name:   constants.AttributeDescription,
			Values: values(ou.Description),
		})
	}

	return attrs
}

func UserPrincipalName(login, domain string) string {
	return login + "@" + domain
}

func decode(entry directory.SearchEntry, name string) string {
	return codec.Decode(name, entry.Attributes.First(name))
}

// objectGUID is stored with the first three groups little endian.
func decodeGUID(raw []byte) string {
	if len(raw) != 16 {
		return ""
	}

	b := make([]byte, 16)
	copy(b, raw)
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]

	id, err := uuid.FromBytes(b)
	if err != nil {
		return ""
	}

	return id.String()
}

func decodeSID(raw []byte) string {
	// revision, sub authority count, 6 byte authority, 4 bytes per sub authority.
	if len(raw) < 8 || len(raw) != 8+4*int(raw[1]) {
		return ""
	}

	return objectsid.Decode(raw).String()
}

func values(v ...string) [][]byte {
	out := make([][]byte, 0, len(v))
	for _, s := range v {
		out = append(out, []byte(s))
	}

	return out
}
