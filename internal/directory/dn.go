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

// EscapeDNValue escapes special characters in a DN attribute value (RFC 4514).
func EscapeDNValue(value string) string {
	return ldap.EscapeDN(value)
}

// JoinDN builds the DN of a child entry named attr=value beneath parent.
func JoinDN(attr, value, parent string) string {
	rdn := attr + "=" + EscapeDNValue(value)
	if parent == "" {
		return rdn
	}

	return rdn + "," + parent
}

// ParentDN strips the leading RDN from dn. It returns an empty string for an
// empty DN or a DN with a single RDN.
func ParentDN(dn string) string {
	escaped := false
	for i, r := range dn {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			return strings.TrimLeft(dn[i+1:], " ")
		}
	}

	return ""
}

// NormalizeDN returns a canonical, lower case form of dn suitable for comparisons.
// DNs that cannot be parsed are lower cased as is.
func NormalizeDN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(dn))
	}

	rdns := make([]string, 0, len(parsed.RDNs))
	for _, rdn := range parsed.RDNs {
		attrs := make([]string, 0, len(rdn.Attributes))
		for _, attr := range rdn.Attributes {
			attrs = append(attrs, strings.ToLower(attr.Type)+"="+EscapeDNValue(strings.ToLower(attr.Value)))
		}
		rdns = append(rdns, strings.Join(attrs, "+"))
	}

	return strings.Join(rdns, ",")
}

// IsDescendant reports whether dn lies beneath (or equals, when orSelf is set) base.
func IsDescendant(dn, base string, orSelf bool) bool {
	dn, base = NormalizeDN(dn), NormalizeDN(base)
	if dn == base {
		return orSelf
	}

	return base == "" || strings.HasSuffix(dn, ","+base)
}
