package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"contact-scraper/pkg/batch"
	"contact-scraper/pkg/config"
	"contact-scraper/pkg/crawler"
	"contact-scraper/pkg/fetch"
	"contact-scraper/pkg/normalize"
	"contact-scraper/pkg/seed"
	"contact-scraper/pkg/sink"
	"contact-scraper/pkg/storage"
	"contact-scraper/pkg/utils"
	"contact-scraper/pkg/validate"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "search":
		runBatchCommand("search", os.Args[2:])
	case "file":
		runBatchCommand("file", os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("contact-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `contact-scraper - Website contact extractor

Usage:
  contact-scraper <command> [options]

Commands:
  search      Extract contacts from the results of a search query
  file        Extract contacts from a file of URLs (one per line)
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'contact-scraper <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// batchFlags holds the options shared by the search and file subcommands
type batchFlags struct {
	configFile string
	logLevel   string
	query      string
	limit      int
	input      string
	outputDir  string
	workers    int
	validate   bool
	resume     bool
}

// runBatchCommand handles the search and file subcommands
func runBatchCommand(cmdName string, args []string) {
	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	var bf batchFlags
	fs.StringVar(&bf.configFile, "config", "", "Path to config file (defaults apply when empty)")
	fs.StringVar(&bf.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	fs.StringVar(&bf.outputDir, "output", "", "Output directory (overrides config)")
	fs.IntVar(&bf.workers, "workers", 0, "Number of concurrent workers (overrides config)")
	fs.BoolVar(&bf.validate, "validate", false, "Validate records before accepting them")
	fs.BoolVar(&bf.resume, "resume", false, "Skip seeds finished by a previous run and append to existing outputs")
	if cmdName == "search" {
		fs.StringVar(&bf.query, "query", "", "Search query whose result links become seeds")
		fs.IntVar(&bf.limit, "limit", 0, "Maximum number of search results (overrides config)")
	} else {
		fs.StringVar(&bf.input, "input", "", "Path to a file with one URL per line")
	}

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: contact-scraper %s [options]\n\nOptions:\n", cmdName)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		if cmdName == "search" {
			fmt.Fprintf(os.Stderr, "  contact-scraper search -query \"dentists in austin\" -limit 20\n")
		} else {
			fmt.Fprintf(os.Stderr, "  contact-scraper file -input urls.txt -validate -workers 8\n")
		}
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if cmdName == "search" && strings.TrimSpace(bf.query) == "" {
		fmt.Fprintln(os.Stderr, "Error: -query is required")
		fs.Usage()
		os.Exit(1)
	}
	if cmdName == "file" && strings.TrimSpace(bf.input) == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(executeBatch(bf))
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: contact-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Infof("Setting log level to: %s", level.String())
	}

	return log
}

// loadAndValidateConfig loads the config file, applies CLI overrides and validates it.
func loadAndValidateConfig(bf batchFlags, log *logrus.Logger) (*config.AppConfig, error) {
	if bf.configFile != "" {
		log.Infof("Loading configuration from %s", bf.configFile)
	}
	appCfg, err := loadConfig(bf.configFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(appCfg, bf)

	appWarnings, err := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, utils.WrapErrorf(err, "validate config")
	}
	return appCfg, nil
}

// applyOverrides copies explicitly set CLI flags onto the config
func applyOverrides(appCfg *config.AppConfig, bf batchFlags) {
	if bf.workers > 0 {
		appCfg.NumWorkers = bf.workers
	}
	if bf.validate {
		appCfg.ValidateResults = true
	}
	if bf.outputDir != "" {
		appCfg.OutputDir = bf.outputDir
	}
	if bf.limit > 0 {
		appCfg.Search.Limit = bf.limit
	}
	if bf.resume {
		appCfg.EnableState = true
	}
}

// runName names the state database of a batch
func runName(bf batchFlags) string {
	if bf.query != "" {
		return "search_" + bf.query
	}
	base := filepath.Base(bf.input)
	return "file_" + strings.TrimSuffix(base, filepath.Ext(base))
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Workers: %d, Max requests per host: %d, Request timeout: %v",
		appCfg.NumWorkers, appCfg.MaxRequestsPerHost, appCfg.RequestTimeout)
	log.Infof("Validate results: %t, Respect robots.txt: %t, State enabled: %t",
		appCfg.ValidateResults, appCfg.RespectRobots, appCfg.EnableState)
	log.Infof("Output dir: %s (date prefix: %t)", appCfg.OutputDir, config.GetEffectiveDatePrefix(*appCfg))
}

// executeBatch runs a search or file batch and returns the process exit code
func executeBatch(bf batchFlags) int {
	log := setupLogger(bf.logLevel)
	startTime := time.Now()
	log.Infof("Run started at %s", startTime.Format(time.RFC3339))

	appCfg, err := loadAndValidateConfig(bf, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	logAppConfig(appCfg, log)

	// ===========================================================
	// == Setup Context & Signal Handling ==
	// ===========================================================
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Finishing in-flight seeds...", sig)
			cancelRun()
		case <-runCtx.Done():
			return
		}

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	exitCode := runBatch(runCtx, appCfg, bf, log)

	endTime := time.Now()
	log.Infof("Run finished at %s (elapsed %v)", endTime.Format(time.RFC3339), endTime.Sub(startTime).Round(time.Millisecond))
	return exitCode
}

// runBatch wires the components and processes every seed
func runBatch(ctx context.Context, appCfg *config.AppConfig, bf batchFlags, log *logrus.Logger) int {
	log.Info("Initializing components...")
	logEntry := log.WithField("component", "batch")

	// --- HTTP Fetching Components ---
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, logEntry)
	fetcher := fetch.NewFetcherFromConfig(httpClient, appCfg, logEntry)
	extractor := crawler.NewCrawler(fetcher, logEntry)

	// --- Seeds ---
	var source seed.Source
	if bf.query != "" {
		source = seed.NewSearchSource(httpClient, appCfg, bf.query, bf.limit, logEntry)
	} else {
		source = seed.NewFileSource(bf.input, logEntry)
	}
	urls, err := source.Seeds(ctx)
	if err != nil {
		if errors.Is(err, utils.ErrEmptyInput) {
			log.Errorf("No seed URLs to process: %v", err)
		} else {
			log.Errorf("Failed to collect seed URLs [%s]: %v", utils.CategorizeError(err), err)
		}
		return 1
	}
	log.Infof("Collected %d seed URLs", len(urls))

	// --- Storage ---
	var store storage.SeedStore
	if appCfg.EnableState {
		badgerStore, err := storage.NewBadgerStore(appCfg.StateDir, runName(bf), bf.resume, logEntry)
		if err != nil {
			log.Errorf("Failed to initialize seed state DB: %v", err)
			return 1
		}
		defer badgerStore.Close()
		go badgerStore.RunGC(ctx, 10*time.Minute)
		store = badgerStore

		if bf.resume {
			pending, err := badgerStore.IncompleteSeeds(ctx)
			if err != nil {
				log.Warnf("Could not list incomplete seeds: %v", err)
			} else {
				log.Infof("Resuming: %d seeds left pending by the previous run", len(pending))
			}
		}
	}

	// --- Output ---
	csvSink, err := sink.NewCSVSink(sink.Options{
		Dir:        appCfg.OutputDir,
		DatePrefix: config.GetEffectiveDatePrefix(*appCfg),
		Resume:     bf.resume,
		Now:        time.Now(),
	}, logEntry)
	if err != nil {
		log.Errorf("Failed to open output files: %v", err)
		return 1
	}

	var validator batch.RecordValidator
	if appCfg.ValidateResults {
		validator = validate.NewValidator(normalize.NewURLGeneralizer(), logEntry)
	}

	processor := batch.NewProcessor(extractor, csvSink, batch.Options{
		NumWorkers:       appCfg.NumWorkers,
		ProgressInterval: appCfg.ProgressInterval,
		Validator:        validator,
		Store:            store,
	}, logEntry)

	summary, runErr := processor.Run(ctx, urls)
	closeErr := csvSink.Close()

	resultCount, failedCount := csvSink.Counts()
	resultPath, failedPath := csvSink.Paths()
	log.Infof("Results: %d rows in %s, failures: %d rows in %s", resultCount, resultPath, failedCount, failedPath)

	switch {
	case errors.Is(runErr, context.Canceled):
		log.Warnf("Run interrupted after %d of %d seeds; rerun with -resume to continue", summary.Processed, summary.Total)
		return 1
	case runErr != nil:
		log.Errorf("Batch failed: %v", runErr)
		return 1
	case closeErr != nil:
		log.Errorf("Failed to finalize output files: %v", closeErr)
		return 1
	}
	return 0
}
