// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	iofs "io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/behavior"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/gateway"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorindex"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kotae server" from the project dir uses the project's
// config (including debug).
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
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
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "reindex":
		runReindex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Index.Ensure(context.Background()); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	svc := components.Ingest
	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		func(path string) {
			if _, err := svc.IngestFile(context.Background(), path); err != nil {
				logger.Warn("drop ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		logger,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExisting()

	srv := server.NewServer(
		components.Orchestrator,
		components.Ingest,
		components.Vectorizer,
		components.Storage,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	askArgs := os.Args[2:]
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer in-process)")
	mode := fs.String("mode", "rag", "answer mode: rag (grounded in sources) or direct (no retrieval)")
	topK := fs.Int("top-k", 0, "number of citations to retrieve (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(askArgs)

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}

	req := &models.AskRequest{
		Query: query,
		Mode:  models.AnswerMode(*mode),
		TopK:  *topK,
	}

	var result *models.AnswerResult
	if *serverURL != "" {
		res, err := askViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		result = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		result, err = components.Orchestrator.Answer(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Println(result.Answer)
		if len(result.Citations) > 0 {
			fmt.Println("\nSources:")
			for i, c := range result.Citations {
				fmt.Printf("  [%d] %s (%s) score=%.2f\n", i+1, c.SourceTitle, c.Location.Display(), c.Score)
			}
		}
		if result.Status != models.StatusOK {
			fmt.Printf("\nstatus: %s\n", result.Status)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL string, req *models.AskRequest) (*models.AnswerResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.AnswerResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Index.Ensure(ctx); err != nil {
		fmt.Printf("Failed to ensure vector index: %v\n", err)
		os.Exit(1)
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		ingested := 0
		filepath.WalkDir(path, func(p string, d iofs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			res, ingestErr := components.Ingest.IngestFile(ctx, p)
			if ingestErr != nil {
				fmt.Printf("Skipped %s: %v\n", p, ingestErr)
				return nil
			}
			if res.Created {
				ingested++
				fmt.Printf("Ingested %s: %s (%d chunks)\n", p, res.Source.ID, res.Source.ChunkCount)
			} else {
				fmt.Printf("Already known %s: %s\n", p, res.Source.ID)
			}
			return nil
		})
		fmt.Printf("Ingested %d new document(s) from %s\n", ingested, path)
		return
	}

	res, err := components.Ingest.IngestFile(ctx, path)
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if res.Created {
		fmt.Printf("Document ingested: %s (%d chunks)\n", res.Source.ID, res.Source.ChunkCount)
	} else {
		fmt.Printf("Content already known: %s\n", res.Source.ID)
	}
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = rebuild in-process)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Post(*serverURL+"/api/v1/reindex", "application/json", nil)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Reindex failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Chunks int `json:"chunks"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reindexed %d chunk(s)\n", out.Chunks)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	count, err := components.Vectorizer.Rebuild(context.Background())
	if err != nil {
		fmt.Printf("Reindex failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reindexed %d chunk(s)\n", count)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read storage directly)")
	_ = fs.Parse(os.Args[2:])

	var sources, chunks int64
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Sources int64 `json:"sources"`
			Chunks  int64 `json:"chunks"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		sources, chunks = out.Sources, out.Chunks
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		ctx := context.Background()
		if sources, err = store.CountSources(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Count sources failed: %v\n", err)
			os.Exit(1)
		}
		if chunks, err = store.CountChunks(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("sources: %d\n", sources)
	fmt.Printf("chunks:  %d\n", chunks)
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Redis        *redis.Client
	Index        *vectorindex.Index
	Embedding    *gateway.EmbeddingClient
	Chat         *gateway.ChatClient
	Aggregator   *retrieval.Aggregator
	Recorder     *behavior.Recorder
	Vectorizer   *ingest.Vectorizer
	Ingest       *ingest.Service
	Orchestrator *answer.Orchestrator
}

func (c *Components) Close() {
	if c.Recorder != nil {
		c.Recorder.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	provider := gateway.NewProvider(
		cfg.Model.BaseURL,
		cfg.Model.APIKey,
		cfg.Model.EmbeddingModel,
		cfg.Model.ChatModel,
		cfg.Model.Dimensions,
		time.Duration(cfg.Model.TimeoutSeconds)*time.Second,
	)
	retry := gateway.NewRetryPolicy(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.BaseBackoffMs)*time.Millisecond,
		cfg.Retry.JitterFactorOrDefault(),
		logger,
	)
	cache := gateway.NewRedisCache(rdb, time.Duration(cfg.Model.CacheTTLDays)*24*time.Hour, logger)
	embedder := gateway.NewEmbeddingClient(provider, cache, retry, logger)
	chat := gateway.NewChatClient(provider, retry, logger)

	index := vectorindex.New(rdb, cfg.Retrieval.IndexName, cfg.Model.Dimensions, 0, logger)

	aggregator := retrieval.NewAggregator(
		embedder,
		index,
		store,
		cfg.Retrieval.ScoreThresholdOrDefault(),
		cfg.Retrieval.MinCitations,
		logger,
	)

	recorder := behavior.NewRecorder(store, cfg.Behavior.QueueSize, logger)

	extractor := extract.NewExtractor(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	vectorizer := ingest.NewVectorizer(store, embedder, index, cfg.Ingest.VectorizeBatchSize, logger)
	lock := ingest.NewUploadLock(rdb,
		time.Duration(cfg.Ingest.LockWaitSeconds)*time.Second,
		time.Duration(cfg.Ingest.LockLeaseSeconds)*time.Second,
	)
	ingestSvc := ingest.NewService(
		store,
		extractor,
		vectorizer,
		lock,
		int64(cfg.Ingest.MaxFileSizeMB)*1024*1024,
		cfg.Watch.Extensions,
		logger,
	)

	orchestrator := answer.NewOrchestrator(aggregator, chat, recorder, cfg.Retrieval.TopK, logger)

	return &Components{
		Storage:      store,
		Redis:        rdb,
		Index:        index,
		Embedding:    embedder,
		Chat:         chat,
		Aggregator:   aggregator,
		Recorder:     recorder,
		Vectorizer:   vectorizer,
		Ingest:       ingestSvc,
		Orchestrator: orchestrator,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Question answering over your own documents

Usage:
  kotae server [flags]            Start the HTTP server
  kotae ask [flags] <question>    Ask a question
  kotae ingest [flags] <path>     Ingest a document or directory
  kotae reindex [flags]           Rebuild the vector index from stored chunks
  kotae status [flags]            Show source/chunk counts
  kotae version                   Show version
  kotae help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer in-process.
  --mode string      rag (grounded in sources) or direct (default: rag)
  --top-k int        Number of citations to retrieve (0 = config default)
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path

Reindex Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to rebuild in-process.

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to read storage directly.

Examples:
  kotae server
  kotae ask "how do I rotate the API keys?"
  kotae ask --mode direct "what is a vector index?"
  kotae ingest ./docs/handbook.pdf
  kotae ingest ./docs
  kotae reindex
  kotae status`)
}
