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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docq"
	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/hook"
	hookopenai "github.com/poiesic/docq/hook/openai"
	"github.com/poiesic/docq/queue"
	"github.com/poiesic/docq/worker"
)

func main() {
	app := &cli.App{
		Name:  "docqd",
		Usage: "Asynchronous document processing queue",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the worker pool until interrupted",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB queue directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent workers (0 = CPU-based default)",
					},
					&cli.DurationFlag{
						Name:  "job-timeout",
						Usage: "Maximum runtime of a started job before it is reaped",
						Value: 10 * time.Minute,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embed finished chunks through this OpenAI-compatible host",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name (required with embedding-host)",
					},
					&cli.StringFlag{
						Name:  "vectors-out",
						Usage: "Directory for embedded chunk vectors, one JSON file per job",
					},
				},
			},
			{
				Name:      "submit",
				Usage:     "Enqueue one document for processing",
				Action:    submitCommand,
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB queue directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "priority",
						Aliases: []string{"p"},
						Usage:   "Job priority (high, normal, low)",
						Value:   "normal",
					},
					&cli.StringFlag{
						Name:  "chunk",
						Usage: "Chunking strategy (header, token)",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Token window size for token chunking",
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Token window overlap for token chunking",
					},
				},
			},
			{
				Name:      "batch",
				Usage:     "Enqueue several documents as one batch job",
				Action:    batchCommand,
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB queue directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "priority",
						Aliases: []string{"p"},
						Usage:   "Job priority (high, normal, low)",
						Value:   "normal",
					},
					&cli.StringFlag{
						Name:  "chunk",
						Usage: "Chunking strategy (header, token)",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Print the status record of a job",
				Action:    statusCommand,
				ArgsUsage: "JOB_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB queue directory",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	service, err := docq.NewService(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer service.Close()

	poolOpts := []worker.Option{
		worker.WithJobTimeout(c.Duration("job-timeout")),
	}
	if workers := c.Int("workers"); workers > 0 {
		poolOpts = append(poolOpts, worker.WithSize(workers))
	}

	if host := c.String("embedding-host"); host != "" {
		embedHook, err := buildEmbeddingHook(c, host)
		if err != nil {
			return err
		}
		poolOpts = append(poolOpts, worker.WithHooks(embedHook))
	}

	pool, err := service.NewWorkerPool(poolOpts...)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "shutting down")
	pool.Stop()
	return nil
}

// buildEmbeddingHook wires the optional post-completion embedding of
// chunks, writing one vector file per job.
func buildEmbeddingHook(c *cli.Context, host string) (hook.Hook, error) {
	model := c.String("embedding-model")
	if model == "" {
		return nil, fmt.Errorf("embedding-model is required with embedding-host")
	}
	outDir := c.String("vectors-out")
	if outDir == "" {
		return nil, fmt.Errorf("vectors-out is required with embedding-host")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vectors-out directory: %w", err)
	}

	sink := hookopenai.SinkFunc(func(ctx context.Context, jobID string, vectors []hookopenai.ChunkVector) error {
		data, err := json.Marshal(vectors)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outDir, jobID+".json"), data, 0o644)
	})

	return hookopenai.NewEmbeddingHook(&hookopenai.Config{
		EmbeddingHost:  host,
		EmbeddingModel: model,
	}, sink)
}

func submitCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	service, err := docq.NewService(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer service.Close()

	id, err := service.Submit(context.Background(), docq.Submission{
		Payload:  payload,
		Filename: filepath.Base(path),
		Priority: c.String("priority"),
		Options:  chunkOptionsFromFlags(c),
	})
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

func batchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("expected at least one file argument")
	}

	files := make([]core.BatchFile, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, core.BatchFile{
			Payload:  payload,
			Filename: filepath.Base(path),
		})
	}

	service, err := docq.NewService(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer service.Close()

	id, err := service.SubmitBatch(context.Background(), docq.BatchSubmission{
		Files:    files,
		Priority: c.String("priority"),
		Options:  chunkOptionsFromFlags(c),
	})
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one job id argument")
	}
	id := c.Args().First()

	service, err := docq.NewService(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer service.Close()

	snap, err := service.Status(context.Background(), id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return fmt.Errorf("job %s not found (unknown id or record expired)", id)
		}
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// chunkOptionsFromFlags maps the chunking flags onto process options.
func chunkOptionsFromFlags(c *cli.Context) core.ProcessOptions {
	var opts core.ProcessOptions
	switch c.String("chunk") {
	case "header":
		opts.Chunking.Strategy = core.ChunkHeader
	case "token":
		opts.Chunking.Strategy = core.ChunkToken
		opts.Chunking.Size = c.Int("chunk-size")
		opts.Chunking.Overlap = c.Int("chunk-overlap")
	}
	return opts
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
