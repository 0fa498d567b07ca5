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
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/poiesic/wrench"
	"github.com/poiesic/wrench/config"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/extract"
	"github.com/poiesic/wrench/ingestion"
	"github.com/poiesic/wrench/reindex"
	"github.com/poiesic/wrench/watch"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wrench",
		Usage: "Retrieval-augmented assistant for equipment technicians",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file (missing file uses defaults)",
				Value:   "wrench.yaml",
				EnvVars: []string{"WRENCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before the environment is read",
				Value: ".env",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "Listen port (overrides config and PORT)",
					},
					&cli.StringFlag{
						Name:  "watch-dir",
						Usage: "Ingest PDF, text and markdown files dropped into this directory",
					},
					&cli.StringFlag{
						Name:  "equipment-id",
						Usage: "Equipment id applied to watched files",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest PDF, text and markdown files",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "equipment-id",
						Usage: "Equipment id applied to every file",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed documentation",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of contexts to retrieve (1-8)",
						Value: core.DefaultTopK,
					},
					&cli.StringFlag{
						Name:  "equipment",
						Usage: "Name of the equipment being worked on",
					},
					&cli.StringFlag{
						Name:  "equipment-id",
						Usage: "Registered equipment id to filter retrieval by",
					},
					&cli.BoolFlag{
						Name:  "stream",
						Usage: "Print the answer as it is generated",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every record in the local index with the configured embedder",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: reindex.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: reindex.DefaultBatchSize,
					},
				},
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	return config.LoadDotEnv(c.String("env-file"))
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openApp(c *cli.Context, cfg *config.Config) (*wrench.App, error) {
	app, err := wrench.New(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return app, nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("watch-dir") {
		cfg.Server.WatchDir = c.String("watch-dir")
	}

	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := app.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Server.WatchDir != "" {
		watcher, err := app.NewWatcher(watch.WithEquipmentID(c.String("equipment-id")))
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		g.Go(func() error {
			return watcher.Run(ctx, cfg.Server.WatchDir)
		})
	}
	g.Go(func() error {
		return srv.Run(ctx, ":"+strconv.Itoa(cfg.Server.Port))
	})
	return g.Wait()
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one file is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	equipmentID := c.String("equipment-id")
	docs := make([]*core.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := ingestion.ReadDocument(path, equipmentID)
		switch {
		case errors.Is(err, extract.ErrUnsupportedType), errors.Is(err, extract.ErrNoText), errors.Is(err, extract.ErrMalformedPDF):
			fmt.Fprintf(c.App.ErrWriter, "skipping %s: %v\n", path, err)
			continue
		case err != nil:
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return errors.New("no supported files with text to ingest")
	}

	pipeline, err := app.NewPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	res, err := pipeline.Ingest(c.Context, docs, &ingestion.IngestOptions{
		Source:      ingestion.SourceCLI,
		EquipmentID: equipmentID,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Ingested %d documents (%d records)\n", res.Documents, res.Records)
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	engine, err := app.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	req := &core.QueryRequest{
		Query:         question,
		TopK:          c.Int("top-k"),
		EquipmentName: c.String("equipment"),
		EquipmentID:   c.String("equipment-id"),
	}

	if !c.Bool("stream") {
		ans, err := engine.Answer(c.Context, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, ans.Answer)
		slog.Debug("answer grounded on contexts", "contexts", len(ans.Contexts))
		return nil
	}

	err = engine.Stream(c.Context, req, func(event core.StreamEvent) error {
		switch event.Kind {
		case core.EventContexts:
			slog.Debug("answer grounded on contexts", "contexts", len(event.Contexts))
		case core.EventDelta:
			fmt.Fprint(c.App.Writer, event.Delta)
		}
		return nil
	})
	fmt.Fprintln(c.App.Writer)
	return err
}

func reindexCommand(c *cli.Context) error {
	rcfg := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
	}
	if rcfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if rcfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	r, err := app.NewReindexer(rcfg, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", cfg.Index.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := r.Run(c.Context); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
