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

// Package codec converts attribute values to and from their directory wire
// representation and computes the modifications needed to change them.
package codec

import (
	"bytes"
	"strings"

	"github.com/gpu-ninja/lumext/internal/constants"
	"github.com/gpu-ninja/lumext/internal/directory"
	"github.com/gpu-ninja/lumext/internal/util"
	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

var passwordAttributes = []string{
	constants.AttributeUnicodePassword,
	constants.AttributeUserPassword,
}

// IsPassword reports whether the named attribute carries a password.
func IsPassword(name string) bool {
	return util.ContainsFold(passwordAttributes, name)
}

// Encode returns the wire form of value. Active Directory only accepts a
// password write as the quoted password encoded in UTF-16LE.
func Encode(name, value string) []byte {
	if strings.EqualFold(name, constants.AttributeUnicodePassword) {
		quoted := strings.ToValidUTF8(`"`+value+`"`, "\uFFFD")
		// Valid UTF-8 always encodes.
		encoded, _ := utf16le.NewEncoder().Bytes([]byte(quoted))

		return encoded
	}

	return []byte(value)
}

// Decode returns the display form of raw. Passwords never decode.
func Decode(name string, raw []byte) string {
	if IsPassword(name) {
		return ""
	}

	return string(raw)
}

// Diff returns the modification turning current into desired, or nil when
// nothing needs to be written. Clearing a value deletes the attribute.
func Diff(name string, current []byte, desired string) *directory.Modification {
	if desired == "" {
		if len(current) == 0 {
			return nil
		}

		return &directory.Modification{
			Operation: directory.ModifyDelete,
			Name:      name,
		}
	}

	encoded := Encode(name, desired)
	if bytes.Equal(current, encoded) {
		return nil
	}

	return &directory.Modification{
		Operation: directory.ModifyReplace,
		Name:      name,
		Values:    [][]byte{encoded},
	}
}
