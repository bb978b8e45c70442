// Package mcp exposes the standardization pipeline and the vocabulary over
// the Model Context Protocol, so agent frontends can drive the tool through
// standard I/O.
package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ankitmukherjee01/form-pre-processor/internal/config"
	"github.com/ankitmukherjee01/form-pre-processor/internal/pdfform"
	"github.com/ankitmukherjee01/form-pre-processor/internal/pipeline"
	"github.com/ankitmukherjee01/form-pre-processor/internal/vocab"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	store     *vocab.Store
	runner    *pipeline.Runner
	extractor *pdfform.Extractor
	validator *pathValidator
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, store *vocab.Store, runner *pipeline.Runner) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}

	validator, err := newPathValidator(cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid input directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		store:     store,
		runner:    runner,
		extractor: pdfform.NewExtractor(cfg.DetectHints),
		validator: validator,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	standardizeTool := mcp.NewTool(
		"pdf_standardize_file",
		mcp.WithDescription("Run the full standardization pipeline on one PDF form: unlock, extract fields, decide labels, rewrite field names"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(standardizeTool, s.handleStandardizeFile)

	extractTool := mcp.NewTool(
		"pdf_extract_fields",
		mcp.WithDescription("Extract the interactive form fields of a PDF without modifying it"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtractFields)

	searchTool := mcp.NewTool(
		"vocab_search_labels",
		mcp.WithDescription("Fuzzy-search the standardized label vocabulary"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to match against existing labels"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of matches to return (default 10)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchLabels)

	infoTool := mcp.NewTool(
		"vocab_info",
		mcp.WithDescription("Get vocabulary statistics and storage location"),
	)
	s.mcpServer.AddTool(infoTool, s.handleVocabInfo)
}

// Handler functions
func (s *Server) handleStandardizeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err = s.validator.Resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.runner.ProcessFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if result.Err != "" {
		return mcp.NewToolResultError(fmt.Sprintf("standardization failed for %s: %s", result.Name, result.Err)), nil
	}

	var responseText string
	if result.NoFields {
		responseText = fmt.Sprintf("%s has no interactive form fields; nothing to standardize", result.Name)
	} else {
		responseText = fmt.Sprintf("Standardized %s\n", result.Name)
		responseText += fmt.Sprintf("Fields: %d\n", result.Fields)
		responseText += fmt.Sprintf("Renamed: %d\n", result.Renamed)
		responseText += fmt.Sprintf("Unmatched: %d\n", result.Unmatched)
		if len(result.Collisions) > 0 {
			responseText += fmt.Sprintf("\n⚠️  WARNING: label collisions detected: %s\n", strings.Join(result.Collisions, ", "))
		}
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err = s.validator.Resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rawFields, err := s.extractor.ExtractFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rawFields) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No interactive form fields found in %s", path)), nil
	}

	responseText := fmt.Sprintf("Found %d form field(s) in %s\n\n", len(rawFields), path)
	for i, f := range rawFields {
		responseText += fmt.Sprintf("%d. %s\n", i+1, f.Identifier)
		responseText += fmt.Sprintf("   Type: %s\n", f.Kind)
		if hint := f.BestHint(); hint != "" {
			responseText += fmt.Sprintf("   Hint: %s\n", hint)
		}
		if f.Value != "" {
			responseText += fmt.Sprintf("   Value: %s\n", f.Value)
		}
		if f.ReadOnly || f.Required {
			var flags []string
			if f.ReadOnly {
				flags = append(flags, "read-only")
			}
			if f.Required {
				flags = append(flags, "required")
			}
			responseText += fmt.Sprintf("   Flags: %s\n", strings.Join(flags, ", "))
		}
		if f.Page > 0 {
			responseText += fmt.Sprintf("   Page: %d, Position: %s\n", f.Page, f.Position.String())
		}
		if i < len(rawFields)-1 {
			responseText += "\n"
		}
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleSearchLabels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	limit := 10
	args := request.GetArguments()
	if raw, ok := args["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}

	matches := s.store.FuzzySearch(query, limit)
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No labels similar to %q in the vocabulary", query)), nil
	}

	responseText := fmt.Sprintf("Found %d label(s) similar to %q:\n", len(matches), query)
	for i, m := range matches {
		responseText += fmt.Sprintf("%d. %s (similarity %d)\n", i+1, m.Label, m.Similarity)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleVocabInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	responseText := "Standardized Label Vocabulary\n"
	responseText += fmt.Sprintf("Location: %s\n", s.store.Path())
	responseText += fmt.Sprintf("Labels: %d\n", s.store.Len())

	labels := s.store.Labels()
	if len(labels) > 0 {
		responseText += "\nSample:\n"
		for i, l := range labels {
			if i >= 20 {
				responseText += fmt.Sprintf("   ... and %d more\n", len(labels)-20)
				break
			}
			responseText += fmt.Sprintf("   %s\n", l)
		}
	}

	return mcp.NewToolResultText(responseText), nil
}

// Run starts the MCP server over standard I/O.
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting form preprocessor MCP server in stdio mode")
		log.Printf("Vocabulary: %s", s.store.Path())
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
