package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModePipeline = "pipeline"
	ModeStdio    = "stdio"

	// Default values
	DefaultVertexModel  = "gemini-1.5-pro"
	DefaultVertexRegion = "us-central1"
	DefaultThreshold    = 90
	DefaultBatchSize    = 8
	DefaultWorkers      = 2

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the form preprocessor
type Config struct {
	// Run mode
	Mode string // "pipeline" for batch processing, "stdio" for MCP server

	// Directory layout
	InputDir     string
	UnlockedDir  string
	OutputDir    string
	DecisionsDir string
	LabelsFile   string

	// Oracle configuration
	VertexProject string
	VertexRegion  string
	VertexModel   string

	// Matching configuration
	MatchThreshold int
	BatchSize      int
	Workers        int
	SkipProcessed  bool
	DetectHints    bool

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:           ModePipeline,
		InputDir:       filepath.Join(currentDir, "forms"),
		UnlockedDir:    filepath.Join(currentDir, "unlocked"),
		OutputDir:      filepath.Join(currentDir, "standardized"),
		DecisionsDir:   filepath.Join(currentDir, "decisions"),
		LabelsFile:     filepath.Join(currentDir, "label_list.json"),
		VertexRegion:   DefaultVertexRegion,
		VertexModel:    DefaultVertexModel,
		MatchThreshold: DefaultThreshold,
		BatchSize:      DefaultBatchSize,
		Workers:        DefaultWorkers,
		SkipProcessed:  true,
		DetectHints:    true,
		Version:        "1.0.0",
		ServerName:     "form-preprocessor",
		LogLevel:       "info",
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, dir := range []*string{&cfg.InputDir, &cfg.UnlockedDir, &cfg.OutputDir, &cfg.DecisionsDir, &cfg.LabelsFile} {
		if *dir != "" {
			if expandedPath, err := filepath.Abs(*dir); err == nil {
				*dir = expandedPath
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("FORMPREP")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("input", cfg.InputDir)
	viper.SetDefault("unlocked", cfg.UnlockedDir)
	viper.SetDefault("output", cfg.OutputDir)
	viper.SetDefault("decisions", cfg.DecisionsDir)
	viper.SetDefault("labels", cfg.LabelsFile)
	viper.SetDefault("project", cfg.VertexProject)
	viper.SetDefault("region", cfg.VertexRegion)
	viper.SetDefault("model", cfg.VertexModel)
	viper.SetDefault("threshold", cfg.MatchThreshold)
	viper.SetDefault("batchsize", cfg.BatchSize)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("skipprocessed", cfg.SkipProcessed)
	viper.SetDefault("detecthints", cfg.DetectHints)
	viper.SetDefault("loglevel", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'pipeline' for batch processing, 'stdio' for MCP standard I/O")
	pflag.String("input", cfg.InputDir, "Directory containing input PDF forms")
	pflag.String("unlocked", cfg.UnlockedDir, "Working directory for unlocked intermediates")
	pflag.String("output", cfg.OutputDir, "Directory for standardized output PDFs")
	pflag.String("decisions", cfg.DecisionsDir, "Directory for per-document decision JSON files")
	pflag.String("labels", cfg.LabelsFile, "Path to the standardized label vocabulary JSON file")
	pflag.String("project", cfg.VertexProject, "Google Cloud project for the Vertex AI oracle (empty disables the oracle)")
	pflag.String("region", cfg.VertexRegion, "Vertex AI region")
	pflag.String("model", cfg.VertexModel, "Vertex AI model name")
	pflag.Int("threshold", cfg.MatchThreshold, "Minimum fuzzy similarity (0-100) for fallback matching")
	pflag.Int("batchsize", cfg.BatchSize, "Fields per oracle request")
	pflag.Int("workers", cfg.Workers, "Documents processed in parallel")
	pflag.Bool("skipprocessed", cfg.SkipProcessed, "Skip documents whose output already exists")
	pflag.Bool("detecthints", cfg.DetectHints, "Scan page text for labels near widgets")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "input", "unlocked", "output", "decisions", "labels",
		"project", "region", "model", "threshold", "batchsize", "workers",
		"skipprocessed", "detecthints", "loglevel",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nForm Preprocessor - standardizes form field names in government PDF forms\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input=./forms --output=./standardized   # batch pipeline (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --project=my-gcp-project                  # batch pipeline with Vertex AI oracle\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio                              # MCP server over standard I/O\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_MODE          Run mode\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_INPUT         Input directory\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_OUTPUT        Output directory\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_LABELS        Vocabulary JSON path\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_PROJECT       Google Cloud project\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_REGION        Vertex AI region\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_MODEL         Vertex AI model\n")
		fmt.Fprintf(os.Stderr, "  FORMPREP_WORKERS       Parallel documents\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.InputDir = viper.GetString("input")
	cfg.UnlockedDir = viper.GetString("unlocked")
	cfg.OutputDir = viper.GetString("output")
	cfg.DecisionsDir = viper.GetString("decisions")
	cfg.LabelsFile = viper.GetString("labels")
	cfg.VertexProject = viper.GetString("project")
	cfg.VertexRegion = viper.GetString("region")
	cfg.VertexModel = viper.GetString("model")
	cfg.MatchThreshold = viper.GetInt("threshold")
	cfg.BatchSize = viper.GetInt("batchsize")
	cfg.Workers = viper.GetInt("workers")
	cfg.SkipProcessed = viper.GetBool("skipprocessed")
	cfg.DetectHints = viper.GetBool("detecthints")
	cfg.LogLevel = viper.GetString("loglevel")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModePipeline && c.Mode != ModeStdio {
		return errors.New("mode must be either 'pipeline' or 'stdio'")
	}

	if c.InputDir == "" {
		return errors.New("input directory cannot be empty")
	}
	if c.LabelsFile == "" {
		return errors.New("labels file path cannot be empty")
	}

	if c.Mode == ModePipeline {
		if _, err := os.Stat(c.InputDir); os.IsNotExist(err) {
			return fmt.Errorf("input directory %s does not exist", c.InputDir)
		} else if err != nil {
			return fmt.Errorf("cannot access input directory %s: %w", c.InputDir, err)
		}
		for _, dir := range []string{c.UnlockedDir, c.OutputDir, c.DecisionsDir} {
			if dir == "" {
				return errors.New("unlocked, output and decisions directories cannot be empty")
			}
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
					return fmt.Errorf("cannot create directory %s: %w", dir, err)
				}
			}
		}
	}

	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		return errors.New("threshold must be between 0 and 100")
	}
	if c.BatchSize < 1 {
		return errors.New("batch size must be positive")
	}
	if c.Workers < 1 {
		return errors.New("workers must be positive")
	}

	if c.VertexProject != "" && c.VertexRegion == "" {
		return errors.New("region cannot be empty when a project is configured")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// OracleEnabled reports whether a Vertex AI project is configured.
func (c *Config) OracleEnabled() bool {
	return c.VertexProject != ""
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsStdioMode returns true if the tool should run as an MCP server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, InputDir: %s, OutputDir: %s, LabelsFile: %s, Oracle: %t, Workers: %d}",
		c.Mode, c.InputDir, c.OutputDir, c.LabelsFile, c.OracleEnabled(), c.Workers)
}
