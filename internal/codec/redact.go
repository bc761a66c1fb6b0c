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

package codec

import (
	"github.com/gpu-ninja/lumext/internal/constants"
	"github.com/gpu-ninja/lumext/internal/directory"
	"github.com/gpu-ninja/lumext/internal/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "<redacted>"

// LogValue returns a field for an attribute value, hiding passwords.
func LogValue(name, value string) zap.Field {
	if IsPassword(name) {
		return zap.String(name, redacted)
	}

	return zap.String(name, value)
}

// Redact returns a field describing mods without any password value.
func Redact(mods ...directory.Modification) zap.Field {
	return zap.Array("modifications", modifications(mods))
}

// RedactAttributes returns a field describing attrs without any password value.
func RedactAttributes(attrs directory.Attributes) zap.Field {
	return zap.Object("attributes", attributes(attrs))
}

// RedactHeaders returns a field describing request headers without the
// values of credential carrying headers.
func RedactHeaders(h map[string]string) zap.Field {
	return zap.Object("headers", headers(h))
}

type headers map[string]string

func (h headers) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for name, value := range h {
		if util.ContainsFold(constants.SensitiveHeaders, name) {
			value = redacted
		}

		enc.AddString(name, value)
	}

	return nil
}

type modifications []directory.Modification

func (m modifications) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, mod := range m {
		if err := enc.AppendObject(modification(mod)); err != nil {
			return err
		}
	}

	return nil
}

type modification directory.Modification

func (m modification) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("op", m.Operation.String())
	enc.AddString("name", m.Name)

	if m.Operation == directory.ModifyReplace {
		return enc.AddArray("values", values{name: m.Name, values: m.Values})
	}

	return nil
}

type attributes directory.Attributes

func (a attributes) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for _, attr := range a {
		if err := enc.AddArray(attr.Name, values{name: attr.Name, values: attr.Values}); err != nil {
			return err
		}
	}

	return nil
}

type values struct {
	name   string
	values [][]byte
}

func (v values) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, value := range v.values {
		if IsPassword(v.name) {
			enc.AppendString(redacted)
			continue
		}

		enc.AppendString(Decode(v.name, value))
	}

	return nil
}
