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

package health

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const pingTimeout = 10 * time.Second

// Pinger reports whether a dependency is available.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer returns a server answering liveness (/healthz) and readiness
// (/readyz, which pings the directory) probes.
func NewServer(directory Pinger, logger *zap.Logger) *fasthttp.Server {
	return &fasthttp.Server{
		Name:         "lumext",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      Handler(directory, logger),
	}
}

func Handler(directory Pinger, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !ctx.IsGet() && !ctx.IsHead() {
			ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
			return
		}

		switch string(ctx.Path()) {
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case "/readyz":
			pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()

			if err := directory.Ping(pingCtx); err != nil {
				logger.Warn("Directory is not ready", zap.Error(err))

				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				ctx.SetBodyString("directory unavailable")
				return
			}

			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}
