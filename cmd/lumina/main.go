// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/lumina"
	"github.com/poiesic/lumina/config"
	"github.com/poiesic/lumina/core"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lumina",
		Usage: "Website-grounded sales assistant with lead capture",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Environment files to load before reading the environment",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to server.addr)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Fetch web pages and add them to a tenant's index",
				ArgsUsage: "URL...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					newTenantFlag(),
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read URLs from a file, one per line",
					},
				},
			},
			{
				Name:      "chat",
				Usage:     "Talk to the assistant; reads stdin when no message is given",
				ArgsUsage: "[MESSAGE]",
				Action:    chatCommand,
				Flags: []cli.Flag{
					newTenantFlag(),
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Resume an existing session",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query a tenant's index directly",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					newTenantFlag(),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results (defaults to retrieval.top_k)",
					},
				},
			},
			{
				Name:  "leads",
				Usage: "Manage captured leads",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List leads, newest first",
						Action: leadsListCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of leads (0 for all)",
								Value: 50,
							},
						},
					},
					{
						Name:   "add",
						Usage:  "Create a lead by hand",
						Action: leadsAddCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Contact name", Required: true},
							&cli.StringFlag{Name: "email", Usage: "Contact email", Required: true},
							&cli.StringFlag{Name: "company", Usage: "Company name"},
							&cli.StringFlag{Name: "phone", Usage: "Phone number"},
							&cli.StringFlag{Name: "notes", Usage: "Free-form notes"},
						},
					},
					{
						Name:      "status",
						Usage:     "Move a lead to new, contacted, qualified or closed",
						ArgsUsage: "ID STATUS",
						Action:    leadsStatusCommand,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show index size per tenant",
				Action: statsCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every stored vector with the configured models",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "tenant",
						Aliases: []string{"t"},
						Usage:   "Limit to these tenants (default all)",
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Delete everything indexed for a tenant",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tenant",
						Aliases:  []string{"t"},
						Usage:    "Tenant (client) ID",
						Required: true,
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: configCommand,
			},
		},
	}
}

func newTenantFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "tenant",
		Aliases: []string{"t"},
		Usage:   "Tenant (client) ID",
		Value:   core.DefaultTenantID,
	}
}

func setupLogger(c *cli.Context) error {
	return configureLogger(c.String("log-level"))
}

func configureLogger(levelStr string) error {
	level, err := config.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads the configuration named by the global flags. An
// explicit --log-level wins over the file.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	} else if err := configureLogger(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEngine(c *cli.Context) (*lumina.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	engine, err := lumina.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}
