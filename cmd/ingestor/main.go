// Package main is the ingestor CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/ingestor/internal/app"
	"github.com/hyperjump/ingestor/internal/cli"
	"github.com/hyperjump/ingestor/internal/config"
	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/models"
	"github.com/hyperjump/ingestor/internal/pipeline"
	"github.com/hyperjump/ingestor/internal/server"
	"github.com/hyperjump/ingestor/internal/watcher"
	"github.com/hyperjump/ingestor/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ingestor/config.yaml"
	defaultServerURL  = "http://localhost:8080"
	serviceName       = "ingestor"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence if it exists. A missing default file falls back to environment
// variables only. Returns the config and the path that was actually loaded ("" for env only).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Load("")
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newLogger builds the process logger from cfg; the returned closer flushes the log file.
func newLogger(cfg *config.Config, debug bool) (*zap.Logger, io.Closer, error) {
	return utils.NewFileLogger(debug, serviceName, utils.LogFile{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "process":
		runProcess()
	case "query":
		runQuery()
	case "heartbeat":
		runHeartbeat()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("ingestor version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// environment is a loaded configuration with its logger and services.
type environment struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	logCloser  io.Closer
	services   *app.Services
}

// setup loads configuration, checks it with validate, and connects every service.
func setup(ctx context.Context, configPath string, debug bool, validate func(*config.Config) error) *environment {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			fatalf("Invalid configuration: %v", err)
		}
	}
	debugMode := cfg.Debug || debug
	logger, closer, err := newLogger(cfg, debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", zap.Error(err))
		_ = logger.Sync()
		_ = closer.Close()
		fatalf("Failed to initialize services: %v", err)
	}
	return &environment{cfg: cfg, configPath: resolved, logger: logger, logCloser: closer, services: services}
}

func (e *environment) Close() {
	if err := e.services.Close(); err != nil {
		e.logger.Warn("failed to close services", zap.Error(err))
	}
	_ = e.logger.Sync()
	_ = e.logCloser.Close()
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (state transitions, watched files, etc.)")
	_ = fs.Parse(os.Args[2:])

	env := setup(context.Background(), *configPath, *debug, (*config.Config).Validate)
	defer env.Close()
	cfg, logger := env.cfg, env.logger

	p := env.services.NewPipeline(nil)
	batcher, err := pipeline.NewBatcher(p, cfg.Pipeline.Workers)
	if err != nil {
		logger.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer batcher.Release()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watchSvc, watchPool, err := newWatcher(env)
	if err != nil {
		logger.Fatal("Failed to create watcher", zap.Error(err))
	}
	defer watchPool.Release()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(server.Deps{
		Pipeline:   p,
		Batcher:    batcher,
		Embedder:   env.services.Embedder,
		Database:   env.services.Database,
		Collection: env.services.Collection,
		Watch:      watchSvc,
	}, cfg, env.configPath, logger.Named("server"))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
}

// newWatcher creates a directory watcher that ingests files through a disk-backed pipeline.
// The watched root is the bucket and the slash-separated relative path is the document id.
func newWatcher(env *environment) (*watcher.Watcher, *pipeline.Batcher, error) {
	var w *watcher.Watcher
	p := env.services.NewPipeline(docstore.NewWatchedStore(func() []string { return w.Directories() }))
	pool, err := pipeline.NewBatcher(p, env.cfg.Pipeline.Workers)
	if err != nil {
		return nil, nil, err
	}
	w = watcher.New(
		env.cfg.Watch.Directories,
		env.cfg.Watch.Extensions,
		env.cfg.Watch.RecursiveOrDefault(),
		pool,
		watcher.WithLogger(env.logger.Named("watcher")),
		watcher.WithDebounce(env.cfg.Watch.Debounce),
		watcher.WithResultHandler(func(item pipeline.BatchItem) {
			if item.Err == nil {
				env.logger.Info("watched file ingested",
					zap.String("bucket", item.Request.Bucket),
					zap.String("document_id", item.Request.DocumentID))
			}
		}),
	)
	return w, pool, nil
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("empty value")
	}
	*s = append(*s, v)
	return nil
}

// processRequests resolves the documents to ingest: the -file flags and positional arguments,
// or the configured document when none are given.
func processRequests(files []string, bucket string, cfg *config.Config) ([]pipeline.Request, error) {
	if bucket == "" {
		bucket = cfg.Source.Bucket
	}
	if len(files) == 0 && cfg.Source.DocumentID != "" {
		files = []string{cfg.Source.DocumentID}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no document given; pass -file or set source.document_id")
	}
	if bucket == "" {
		return nil, fmt.Errorf("no bucket given; pass -bucket or set source.bucket")
	}
	reqs := make([]pipeline.Request, len(files))
	for i, f := range files {
		reqs[i] = pipeline.Request{DocumentID: f, Bucket: bucket}
	}
	return reqs, nil
}

func runProcess() {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	var files stringList
	fs.Var(&files, "file", "document id to ingest (repeatable; default: source.document_id)")
	bucket := fs.String("bucket", "", "bucket holding the documents (default: source.bucket)")
	workers := fs.Int("workers", 0, "concurrent pipelines (default: pipeline.workers)")
	serverURL := fs.String("server", "", "server URL; empty runs the pipeline in this process")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(cli.ReorderArgs(os.Args[2:]))
	files = append(files, fs.Args()...)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var resp models.BatchResponse
	if *serverURL != "" {
		req := models.BatchRequest{Files: files, Bucket: *bucket}
		if len(files) == 0 {
			fatalf("Usage: ingestor process -server URL -file <id> [-file <id>...]")
		}
		if err := postJSON(*serverURL+"/process/batch", req, &resp); err != nil {
			fatalf("Process failed: %v", err)
		}
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		env := setup(ctx, *configPath, *debug, (*config.Config).ValidateServices)
		defer env.Close()

		reqs, err := processRequests(files, *bucket, env.cfg)
		if err != nil {
			fatalf("%v", err)
		}
		n := *workers
		if n <= 0 {
			n = env.cfg.Pipeline.Workers
		}
		batcher, err := pipeline.NewBatcher(env.services.NewPipeline(nil), n)
		if err != nil {
			fatalf("Failed to create worker pool: %v", err)
		}
		defer batcher.Release()
		resp = pipeline.NewBatchResponse(batcher.Run(ctx, reqs))
	}

	if err := cli.WriteBatch(os.Stdout, &resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
	if resp.Failed > 0 {
		os.Exit(1)
	}
}

// buildQueryText joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ingestor query [flags] <text>\n\n")
	fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ingestor query cast highlight summary
  ingestor query -k 10 "quarterly report"
  ingestor query -server "" -output json risk findings   # query the collection directly
`)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = query the collection directly)")
	k := fs.Int("k", 5, "number of results")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(cli.ReorderArgs(os.Args[2:]))

	query := models.QueryRequest{Text: buildQueryText(fs.Args()), K: *k}
	if err := query.Validate(); err != nil {
		printQueryUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var resp models.QueryResponse
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/query", query, &resp); err != nil {
			fatalf("Query failed: %v", err)
		}
	} else {
		ctx := context.Background()
		env := setup(ctx, *configPath, false, (*config.Config).ValidateServices)
		defer env.Close()
		start := time.Now()
		vec, err := env.services.Embedder.EmbedQuery(ctx, query.Text)
		if err != nil {
			fatalf("Query embedding failed: %v", err)
		}
		matches, err := env.services.Collection.Query(ctx, vec, query.K)
		if err != nil {
			fatalf("Query failed: %v", err)
		}
		resp = models.QueryResponse{Query: query.Text, Results: make([]models.QueryHit, 0, len(matches))}
		for _, m := range matches {
			resp.Results = append(resp.Results, models.QueryHit{ID: m.ID, Distance: m.Distance, Metadata: m.Metadata})
		}
		resp.QueryTime = time.Since(start).Milliseconds()
	}
	if err := cli.WriteQuery(os.Stdout, &resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runHeartbeat connects every service; app.New probes the vector database and opens the collection.
func runHeartbeat() {
	fs := flag.NewFlagSet("heartbeat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	env := setup(context.Background(), *configPath, false, (*config.Config).ValidateServices)
	defer env.Close()
	fmt.Printf("ok: %s collection %q reachable\n", env.cfg.Vector.Backend, env.services.Collection.Name())
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the collection directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var status models.StatusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/status", &status); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		ctx := context.Background()
		env := setup(ctx, *configPath, false, (*config.Config).ValidateServices)
		defer env.Close()
		count, err := env.services.Collection.Count(ctx)
		if err != nil {
			fatalf("Count records failed: %v", err)
		}
		cfg := env.cfg
		status = models.StatusResponse{
			Status:          "ok",
			Backend:         cfg.Vector.Backend,
			Collection:      env.services.Collection.Name(),
			Records:         count,
			CompletionModel: cfg.Completion.Model,
			EmbeddingModel:  cfg.Embedding.Model,
			Dimensions:      cfg.Embedding.Dimensions,
		}
		if cfg.Vector.Backend == "sqlite" {
			if n, err := docstore.DiskUsageBytes(cfg.Vector.Path); err == nil {
				status.StorageBytes = n
			}
		}
	}
	if err := cli.WriteStatus(os.Stdout, &status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) >= 3 {
		switch os.Args[2] {
		case "add", "remove", "list":
			runWatchRemote(os.Args[2], os.Args[3:])
			return
		}
	}

	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noSync := fs.Bool("no-sync", false, "skip ingesting files already present")
	_ = fs.Parse(cli.ReorderArgs(os.Args[2:]))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	env := setup(ctx, *configPath, *debug, (*config.Config).ValidateServices)
	defer env.Close()
	if fs.NArg() > 0 {
		env.cfg.Watch.Directories = fs.Args()
	}
	if len(env.cfg.Watch.Directories) == 0 {
		fatalf("Usage: ingestor watch [flags] <dir>... (or set watch.directories)")
	}

	w, pool, err := newWatcher(env)
	if err != nil {
		fatalf("Failed to create watcher: %v", err)
	}
	defer pool.Release()
	if err := w.Start(ctx); err != nil {
		fatalf("Failed to start watcher: %v", err)
	}
	if !*noSync {
		w.SyncExistingFiles()
	}
	env.logger.Info("watching", zap.Strings("directories", w.Directories()))
	<-ctx.Done()
	w.Stop()
	env.logger.Info("Shutting down...")
}

func runWatchRemote(sub string, args []string) {
	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(cli.ReorderArgs(args))
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fatalf("Usage: ingestor watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := postJSONStatus(*serverURL+"/watch/directories", map[string]any{"path": path, "sync": true}, http.StatusCreated); err != nil {
			fatalf("Add failed: %v", err)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: ingestor watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := deleteWatchDirectory(*serverURL, path); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(*serverURL+"/watch/directories", &out); err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*path); err == nil && !*force {
		fatalf("%s already exists; pass -force to overwrite", *path)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(*path, cfg); err != nil {
		fatalf("Failed to write config: %v", err)
	}
	fmt.Printf("Wrote %s\n", *path)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Set the remaining options before running:\n  %v\n", err)
	}
}

func printUsage() {
	fmt.Println(`ingestor - Document ingestion into a vector collection

Usage:
  ingestor server [flags]              Start the HTTP trigger
  ingestor process [flags] [id...]     Ingest documents from the configured store
  ingestor query [flags] <text>        Find records nearest to a text
  ingestor heartbeat [flags]           Check the vector database and collection
  ingestor status [flags]              Show backend, collection, and record count
  ingestor watch [flags] [dir...]      Ingest files as they change in local directories
  ingestor watch <add|remove|list>     Manage a running server's watched directories
  ingestor init [flags]                Write a config file with defaults
  ingestor version                     Show version
  ingestor help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/ingestor/config.yaml,
                     or ./config.yaml when present; environment only when neither exists)
  --debug            Enable debug logging

Process Flags:
  --file string      Document id (repeatable; default: source.document_id)
  --bucket string    Bucket (default: source.bucket)
  --workers int      Concurrent pipelines (default: pipeline.workers)
  --server string    Send the batch to a running server instead of processing locally
  --output string    text, compact, or json (default: text)

Query/Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to
                     read the collection directly.
  --k int            Number of results (query only, default: 5)
  --output string    text, compact, or json (default: text)

Examples:
  ingestor server
  ingestor process
  ingestor process -file sample_cast_report.pdf -file other.pdf -workers 4
  ingestor query "cast highlight findings"
  ingestor watch ~/reports
  ingestor watch add ~/reports
  ingestor status --output json`)
}
