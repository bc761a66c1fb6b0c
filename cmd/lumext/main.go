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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gpu-ninja/lumext/internal/config"
	"github.com/gpu-ninja/lumext/internal/directory"
	"github.com/gpu-ninja/lumext/internal/health"
	"github.com/gpu-ninja/lumext/internal/logging"
	"github.com/gpu-ninja/lumext/internal/provisioning"
	"github.com/gpu-ninja/lumext/internal/response"
	"github.com/gpu-ninja/lumext/internal/router"
	"github.com/gpu-ninja/lumext/internal/transport"
	"github.com/ps78674/docopt.go"
	"go.uber.org/zap"
)

var (
	VersionString = "devel"
	ProgramName   = filepath.Base(os.Args[0])
)

var usage = fmt.Sprintf(`%[1]s: LDAP user management extension for vCloud Director

Usage:
  %[1]s [-c <CONFIGPATH>]
  %[1]s --check [-c <CONFIGPATH>]

Options:
  -c, --config <CONFIGPATH>  config file path [default: /etc/lumext/config.yaml, env: %[2]s]
  --check                    validate the configuration and exit

  -h, --help                 show this screen
  --version                  show version
`, ProgramName, config.EnvConfigPath)

type options struct {
	ConfigPath string `docopt:"--config"`
	Check      bool   `docopt:"--check"`
}

func main() {
	opts, err := docopt.ParseArgs(usage, nil, VersionString)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing options: %s\n", err)
		os.Exit(1)
	}

	var o options
	if err := opts.Bind(&o); err != nil {
		fmt.Fprintf(os.Stderr, "error binding option values: %s\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %s\n", err)
		os.Exit(1)
	}

	if o.Check {
		fmt.Println("configuration is valid")
		return
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %s\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Worker stopped", zap.Error(err))
	}

	logger.Info("Worker stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker", zap.String("version", VersionString),
		zap.String("directory", cfg.LDAP.Address), zap.String("base", cfg.LDAP.Base))

	client, err := directory.NewClientBuilder().
		WithConfig(&cfg.LDAP).
		Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build directory client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		// Requests are still served, every unit of work dials on its own.
		logger.Warn("Directory is not reachable", zap.Error(err))
	}

	if cfg.Health.Listen != "" {
		healthServer := health.NewServer(client, logger)

		go func() {
			logger.Info("Starting health server", zap.String("listen", cfg.Health.Listen))

			if err := healthServer.ListenAndServe(cfg.Health.Listen); err != nil {
				logger.Error("Health server stopped", zap.Error(err))
			}
		}()

		defer func() {
			if err := healthServer.Shutdown(); err != nil {
				logger.Warn("Failed to stop health server", zap.Error(err))
			}
		}()
	}

	engine := provisioning.NewEngine(client, &cfg.LDAP)
	handler := router.NewHandler(router.New(engine), response.NewFormatter(cfg.VCD.APIVersion), logger)

	return transport.NewWorker(&cfg.RabbitMQ, handler, logger).Run(ctx)
}
