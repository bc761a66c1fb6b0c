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

package provisioning

// CreateUserRequest is the payload of a user creation.
type CreateUserRequest struct {
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UserChanges is the payload of a user edit. Absent fields are left untouched.
type UserChanges struct {
	Login       *string `json:"login"`
	DisplayName *string `json:"display_name"`
	// Description is cleared when set to an empty string.
	Description     *string `json:"description"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// Status is returned by operations without a payload.
type Status struct {
	Status string `json:"status"`
}

// StatusSuccess is returned by successful deletions.
var StatusSuccess = Status{Status: "success"}
