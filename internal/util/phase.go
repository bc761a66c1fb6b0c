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
	"context"
	"sync/atomic"

	"github.com/gpu-ninja/lumext/api"
	"go.uber.org/zap"
)

type phaseKey struct{}

// WithPhase returns a copy of ctx tracking the phase of a unit of work,
// starting at api.PhasePending.
func WithPhase(ctx context.Context) context.Context {
	var phase atomic.Value
	phase.Store(api.PhasePending)

	return context.WithValue(ctx, phaseKey{}, &phase)
}

// SetPhase records a phase transition and logs it.
func SetPhase(ctx context.Context, phase api.Phase) {
	if v, ok := ctx.Value(phaseKey{}).(*atomic.Value); ok {
		v.Store(phase)
	}

	LoggerFromContext(ctx).Debug("Phase changed", zap.Stringer("phase", phase))
}

// PhaseFromContext returns the current phase, api.PhasePending if untracked.
func PhaseFromContext(ctx context.Context) api.Phase {
	if v, ok := ctx.Value(phaseKey{}).(*atomic.Value); ok {
		return v.Load().(api.Phase)
	}

	return api.PhasePending
}
