package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ankitmukherjee01/form-pre-processor/internal/config"
	"github.com/ankitmukherjee01/form-pre-processor/internal/match"
	"github.com/ankitmukherjee01/form-pre-processor/internal/mcp"
	"github.com/ankitmukherjee01/form-pre-processor/internal/pipeline"
	"github.com/ankitmukherjee01/form-pre-processor/internal/vocab"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the run mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// In stdio mode, redirect log output to stderr to avoid interfering with MCP protocol
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(os.NewFile(0, os.DevNull))
		}
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

// buildEngine wires the vocabulary store and the optional Vertex AI oracle
// into a decision engine.
func buildEngine(ctx context.Context, cfg *config.Config, store *vocab.Store) (*match.Engine, func(), error) {
	engineCfg := match.Config{
		MatchThreshold: cfg.MatchThreshold,
		BatchSize:      cfg.BatchSize,
	}

	if !cfg.OracleEnabled() {
		log.Printf("No Vertex AI project configured; using deterministic fallback matching only")
		return match.NewEngine(store, nil, engineCfg), func() {}, nil
	}

	oracle, err := match.NewGeminiOracle(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.VertexModel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create oracle: %w", err)
	}
	closer := func() {
		if err := oracle.Close(); err != nil {
			log.Printf("Failed to close oracle client: %v", err)
		}
	}
	return match.NewEngine(store, oracle, engineCfg), closer, nil
}

// runPipelineMode runs the batch pipeline over the input directory.
func runPipelineMode(ctx context.Context, runner *pipeline.Runner) {
	// Stop the batch on interrupt; in-flight documents finish their stage.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx)
	if err != nil {
		if summary != nil {
			summary.Log()
		}
		log.Fatalf("Pipeline aborted: %v", err)
	}
	summary.Log()
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// runStdioMode serves the MCP tools over standard I/O.
func runStdioMode(ctx context.Context, server *mcp.Server) {
	if err := server.Run(ctx); err != nil {
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := vocab.Load(cfg.LabelsFile)

	engine, closeOracle, err := buildEngine(ctx, cfg, store)
	if err != nil {
		log.Fatalf("Failed to build decision engine: %v", err)
	}
	defer closeOracle()

	runner := pipeline.NewRunner(store, engine, pipeline.Options{
		InputDir:      cfg.InputDir,
		UnlockedDir:   cfg.UnlockedDir,
		OutputDir:     cfg.OutputDir,
		DecisionsDir:  cfg.DecisionsDir,
		Workers:       cfg.Workers,
		SkipProcessed: cfg.SkipProcessed,
		DetectHints:   cfg.DetectHints,
	})

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, store, runner)
		if err != nil {
			log.Fatalf("Failed to create MCP server: %v", err)
		}
		runStdioMode(ctx, server)
		return
	}

	runPipelineMode(ctx, runner)
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Form Preprocessor\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
