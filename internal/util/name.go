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

package util

import (
	"crypto/rand"
	"math/big"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var nameAlphabetLen = big.NewInt(int64(len(nameAlphabet)))

// GenerateName returns prefix followed by a dash and five random lowercase
// alphanumerics, eg. "lumext-x7k2q".
func GenerateName(prefix string) string {
	suffix := make([]byte, 5)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, nameAlphabetLen)
		if err != nil {
			panic(err)
		}

		suffix[i] = nameAlphabet[n.Int64()]
	}

	return prefix + "-" + string(suffix)
}
