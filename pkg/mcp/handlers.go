package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"contact-scraper/pkg/batch"
	"contact-scraper/pkg/config"
	"contact-scraper/pkg/models"
	"contact-scraper/pkg/parse"
	"contact-scraper/pkg/seed"
	"contact-scraper/pkg/sink"
)

// handleExtractContacts handles the extract_contacts tool
func (s *Server) handleExtractContacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := strings.TrimSpace(request.GetString("url", ""))
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	cleaned, _, err := parse.CleanSeed(urlStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
	}

	crawl := request.GetBool("crawl", true)
	doValidate := request.GetBool("validate", s.cfg.AppConfig.ValidateResults)

	startTime := time.Now()
	record, outcome := s.extractor.Extract(ctx, cleaned, crawl)

	classifier := batch.NewProcessor(s.extractor, sink.NewMemorySink(), batch.Options{Validator: s.validatorIf(doValidate)}, s.log)
	classified := classifier.Classify(urlStr, cleaned, record, outcome)

	result := map[string]interface{}{
		"url":           urlStr,
		"outcome":       outcome.Kind.String(),
		"accepted":      classified.Accepted,
		"validated":     doValidate,
		"fetch_time_ms": time.Since(startTime).Milliseconds(),
	}
	if outcome.StatusCode != 0 {
		result["status_code"] = outcome.StatusCode
	}
	if !classified.Accepted {
		result["reason"] = classified.Reason
	}
	if outcome.Kind == models.OutcomeTransportError {
		result["error"] = outcome.Message
	}
	if classified.Record != nil {
		result["contacts"] = contactsMap(classified.Record)
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleRunBatch handles the run_batch tool
func (s *Server) handleRunBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls := splitURLs(request.GetString("urls", ""))
	query := strings.TrimSpace(request.GetString("query", ""))
	if (len(urls) == 0) == (query == "") {
		return mcp.NewToolResultError("exactly one of urls or query is required"), nil
	}

	var source seed.Source
	label := query
	if query != "" {
		source = seed.NewSearchSource(s.httpClient, s.cfg.AppConfig, query, request.GetInt("limit", 0), s.log)
	} else {
		source = seed.StaticSource(urls)
		label = "urls:" + strings.Join(urls, ",")
	}

	job, created := s.jobManager.CreateJob(label)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A batch with the same input is already in progress",
			"job_id":  job.ID,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	opts := batchJobOptions{
		validate: request.GetBool("validate", s.cfg.AppConfig.ValidateResults),
		writeCSV: request.GetBool("write_csv", false),
	}
	go s.runBatchJob(job.ID, source, opts)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Batch started successfully",
		"job_id":  job.ID,
		"label":   label,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := jobSummary(*job)
	if request.GetBool("include_rows", true) {
		result["results"] = job.Results
		result["failed"] = job.Failed
	}
	if len(job.OutputFiles) > 0 {
		result["output_files"] = job.OutputFiles
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.jobManager.ListJobs()
	summaries := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, jobSummary(job))
	}
	result := map[string]interface{}{
		"jobs":       summaries,
		"total_jobs": len(summaries),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found or already finished", jobID)), nil
	}
	result := map[string]interface{}{
		"status": JobStatusCancelled,
		"job_id": jobID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

type batchJobOptions struct {
	validate bool
	writeCSV bool
}

// runBatchJob runs a batch job in the background
func (s *Server) runBatchJob(jobID string, source seed.Source, opts batchJobOptions) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)
	jobLog := s.log.WithField("job_id", jobID)

	urls, err := source.Seeds(jobCtx)
	if err != nil {
		s.finishJob(jobCtx, jobID, err)
		return
	}
	s.jobManager.UpdateProgress(jobID, 0, len(urls))

	mem := sink.NewMemorySink()
	var out sink.Sink = mem
	var csvSink *sink.CSVSink
	if opts.writeCSV {
		csvSink, err = sink.NewCSVSink(sink.Options{
			Dir:        s.cfg.AppConfig.OutputDir,
			DatePrefix: config.GetEffectiveDatePrefix(*s.cfg.AppConfig),
			Now:        time.Now(),
			Tag:        jobID,
		}, jobLog)
		if err != nil {
			s.finishJob(jobCtx, jobID, err)
			return
		}
		out = sink.Multi(mem, csvSink)
	}

	processor := batch.NewProcessor(s.extractor, out, batch.Options{
		NumWorkers:       s.cfg.AppConfig.NumWorkers,
		ProgressInterval: s.cfg.AppConfig.ProgressInterval,
		Validator:        s.validatorIf(opts.validate),
		OnProgress: func(processed, total int) {
			s.jobManager.UpdateProgress(jobID, processed, total)
		},
	}, jobLog)

	summary, runErr := processor.Run(jobCtx, urls)
	if closeErr := out.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	s.jobManager.UpdateProgress(jobID, summary.Processed, summary.Total)

	var files []string
	if csvSink != nil {
		resultPath, failedPath := csvSink.Paths()
		for _, path := range []string{resultPath, failedPath} {
			if _, statErr := os.Stat(path); statErr == nil {
				files = append(files, path)
			}
		}
	}
	s.jobManager.SetResults(jobID, mem.Results(), mem.Failed(), files)
	s.finishJob(jobCtx, jobID, runErr)
}

// finishJob sets the terminal status matching err
func (s *Server) finishJob(jobCtx context.Context, jobID string, err error) {
	switch {
	case err == nil:
		s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
	case errors.Is(err, context.Canceled) || jobCtx.Err() != nil:
		s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
	default:
		s.log.WithField("job_id", jobID).Errorf("Batch job failed: %v", err)
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
	}
}

// validatorIf returns the validator when enabled, nil otherwise
func (s *Server) validatorIf(enabled bool) batch.RecordValidator {
	if !enabled {
		return nil
	}
	return s.validator
}

// splitURLs splits a newline, comma or whitespace separated list
func splitURLs(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})
}

// contactsMap lists a record's values per category name, sorted
func contactsMap(record *models.ContactRecord) map[string][]string {
	contacts := make(map[string][]string, len(models.AllCategories))
	for _, cat := range models.AllCategories {
		contacts[cat.String()] = record.Get(cat).Sorted()
	}
	return contacts
}

// jobSummary returns the row-less view of a job
func jobSummary(job Job) map[string]interface{} {
	result := map[string]interface{}{
		"job_id":     job.ID,
		"label":      job.Label,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
		"processed":  job.Processed,
		"total":      job.Total,
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return result
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
