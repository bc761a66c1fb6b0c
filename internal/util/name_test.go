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

package util_test

import (
	"strings"
	"testing"

	"github.com/gpu-ninja/lumext/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestGenerateName(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 20; i++ {
		name := util.GenerateName("tenant")

		assert.Regexp(t, `^tenant-[a-z0-9]{5}$`, name)
		assert.True(t, strings.HasPrefix(name, "tenant-"))

		seen[name] = struct{}{}
	}

	// Collisions are possible, but not twenty names in a row.
	assert.Greater(t, len(seen), 1)
}
