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

package api

// Phase is the current phase of a unit of work (one inbound message).
type Phase string

const (
	// PhasePending means the request has been received but not yet dispatched.
	PhasePending Phase = "Pending"
	// PhaseHierarchyChecked means the tenant organizational units are known to exist.
	PhaseHierarchyChecked Phase = "HierarchyChecked"
	// PhaseExecuted means the directory operation has been performed.
	PhaseExecuted Phase = "Executed"
	// PhaseSucceeded means a success response has been produced.
	PhaseSucceeded Phase = "Succeeded"
	// PhaseFailed means an error response has been produced.
	PhaseFailed Phase = "Failed"
)

func (p Phase) String() string {
	return string(p)
}
