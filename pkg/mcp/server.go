package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/batch"
	"contact-scraper/pkg/config"
	"contact-scraper/pkg/crawler"
	"contact-scraper/pkg/fetch"
	"contact-scraper/pkg/normalize"
	"contact-scraper/pkg/validate"
)

const (
	serverName    = "contact-scraper"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
	Extractor  batch.Extractor // nil builds the default crawler
}

// Server exposes contact extraction and batch jobs as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	httpClient *http.Client
	extractor  batch.Extractor
	validator  *validate.Validator
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	log := cfg.Logger.WithField("component", "mcp")
	httpClient := fetch.NewClient(cfg.AppConfig.HTTPClientSettings, log)
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = crawler.NewCrawler(fetch.NewFetcherFromConfig(httpClient, cfg.AppConfig, log), log)
	}

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        log,
		jobManager: NewJobManager(),
		httpClient: httpClient,
		extractor:  extractor,
		validator:  validate.NewValidator(normalize.NewURLGeneralizer(), log),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractTool := mcp.NewTool("extract_contacts",
		mcp.WithDescription("Extract phone numbers, emails and social profiles from one website, following its contact pages one level deep"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Website URL to extract contacts from"),
		),
		mcp.WithBoolean("crawl",
			mcp.Description("Follow same-site contact/support links (default: true)"),
		),
		mcp.WithBoolean("validate",
			mcp.Description("Drop off-domain emails and invalid social profile links (default: from config)"),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtractContacts)

	runBatchTool := mcp.NewTool("run_batch",
		mcp.WithDescription("Start a background batch over a list of URLs or the results of a search query. Returns immediately with a job ID."),
		mcp.WithString("urls",
			mcp.Description("Seed URLs separated by newlines, commas or spaces"),
		),
		mcp.WithString("query",
			mcp.Description("Search query whose result links become the seed URLs"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of search results to use (default: from config)"),
		),
		mcp.WithBoolean("validate",
			mcp.Description("Validate records before accepting them (default: from config)"),
		),
		mcp.WithBoolean("write_csv",
			mcp.Description("Also write result/failed CSV files to the output directory"),
		),
	)
	s.mcpServer.AddTool(runBatchTool, s.handleRunBatch)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and rows of a batch job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by run_batch"),
		),
		mcp.WithBoolean("include_rows",
			mcp.Description("Include result and failed rows (default: true)"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	listJobsTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List batch jobs started by this server"),
	)
	s.mcpServer.AddTool(listJobsTool, s.handleListJobs)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running batch job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by run_batch"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
