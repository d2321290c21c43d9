package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-scraper/pkg/config"
	"contact-scraper/pkg/models"
)

// cannedExtractor returns a fixed outcome per URL
type cannedExtractor struct {
	records  map[string]*models.ContactRecord
	outcomes map[string]models.FetchOutcome
	block    chan struct{} // when set, Extract waits on it or ctx
}

func (c *cannedExtractor) Extract(ctx context.Context, url string, crawl bool) (*models.ContactRecord, models.FetchOutcome) {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, models.TransportError(ctx.Err())
		}
	}
	if outcome, ok := c.outcomes[url]; ok {
		return c.records[url], outcome
	}
	return models.NewContactRecord(url), models.Success(nil, 200)
}

func newTestServer(t *testing.T, ext *cannedExtractor) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	s, err := NewServer(&ServerConfig{AppConfig: cfg, Transport: "stdio", Logger: logger, Extractor: ext})
	require.NoError(t, err)
	return s
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "tool returned an error result")
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func acmeExtractor() *cannedExtractor {
	rec := models.NewContactRecord("https://acme.com")
	rec.Add(models.Phone, "+1-555-0100")
	rec.Add(models.Email, "info@acme.com")
	rec.Add(models.Email, "sales@other.com")
	return &cannedExtractor{
		records: map[string]*models.ContactRecord{"https://acme.com": rec},
		outcomes: map[string]models.FetchOutcome{
			"https://acme.com":     models.Success(nil, 200),
			"https://gone.example": models.HTTPError(404),
		},
	}
}

func TestNewServer_RequiresAppConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestHandleExtractContacts(t *testing.T) {
	s := newTestServer(t, acmeExtractor())

	t.Run("accepted with validation", func(t *testing.T) {
		res, err := s.handleExtractContacts(context.Background(), callTool("extract_contacts", map[string]interface{}{
			"url": "https://acme.com", "validate": true,
		}))
		require.NoError(t, err)
		out := decodeResult(t, res)

		assert.Equal(t, true, out["accepted"])
		assert.Equal(t, "success", out["outcome"])
		contacts := out["contacts"].(map[string]interface{})
		assert.Equal(t, []interface{}{"info@acme.com"}, contacts["email"])
		assert.Equal(t, []interface{}{"+1-555-0100"}, contacts["phone"])
	})

	t.Run("http error", func(t *testing.T) {
		res, err := s.handleExtractContacts(context.Background(), callTool("extract_contacts", map[string]interface{}{
			"url": "https://gone.example",
		}))
		require.NoError(t, err)
		out := decodeResult(t, res)
		assert.Equal(t, false, out["accepted"])
		assert.Equal(t, "404", out["reason"])
		assert.Equal(t, float64(404), out["status_code"])
	})

	t.Run("no contact", func(t *testing.T) {
		res, err := s.handleExtractContacts(context.Background(), callTool("extract_contacts", map[string]interface{}{
			"url": "https://empty.example",
		}))
		require.NoError(t, err)
		out := decodeResult(t, res)
		assert.Equal(t, models.ReasonNoContact, out["reason"])
	})

	t.Run("missing url", func(t *testing.T) {
		res, err := s.handleExtractContacts(context.Background(), callTool("extract_contacts", map[string]interface{}{}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		res, err := s.handleExtractContacts(context.Background(), callTool("extract_contacts", map[string]interface{}{
			"url": "ftp://acme.com",
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func waitForJob(t *testing.T, s *Server, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := s.jobManager.GetJob(jobID)
		require.NotNil(t, job)
		if !job.Status.IsActive() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func TestHandleRunBatch_URLs(t *testing.T) {
	s := newTestServer(t, acmeExtractor())

	res, err := s.handleRunBatch(context.Background(), callTool("run_batch", map[string]interface{}{
		"urls":      "https://acme.com\nhttps://gone.example, https://empty.example",
		"write_csv": true,
	}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, "started", out["status"])
	jobID := out["job_id"].(string)

	job := waitForJob(t, s, jobID)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Processed)
	require.Len(t, job.Results, 1)
	assert.Equal(t, "https://acme.com", job.Results[0].Website)
	assert.Len(t, job.Failed, 2)
	require.Len(t, job.OutputFiles, 2)
	for _, path := range job.OutputFiles {
		assert.Contains(t, filepath.Base(path), jobID)
	}

	statusRes, err := s.handleGetJobStatus(context.Background(), callTool("get_job_status", map[string]interface{}{
		"job_id": jobID, "include_rows": false,
	}))
	require.NoError(t, err)
	status := decodeResult(t, statusRes)
	assert.Equal(t, "completed", status["status"])
	assert.NotContains(t, status, "results")
	assert.Contains(t, status, "output_files")

	listRes, err := s.handleListJobs(context.Background(), callTool("list_jobs", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(1), decodeResult(t, listRes)["total_jobs"])
}

func TestHandleRunBatch_OverlappingCSVJobsKeepTheirRows(t *testing.T) {
	ext := acmeExtractor()
	ext.block = make(chan struct{})
	s := newTestServer(t, ext)

	start := func(urls string) string {
		res, err := s.handleRunBatch(context.Background(), callTool("run_batch", map[string]interface{}{
			"urls": urls, "write_csv": true,
		}))
		require.NoError(t, err)
		return decodeResult(t, res)["job_id"].(string)
	}
	acceptedID := start("https://acme.com")
	failedID := start("https://gone.example")
	close(ext.block)

	accepted := waitForJob(t, s, acceptedID)
	failed := waitForJob(t, s, failedID)
	require.Equal(t, JobStatusCompleted, accepted.Status)
	require.Equal(t, JobStatusCompleted, failed.Status)

	require.Len(t, accepted.OutputFiles, 1)
	require.Len(t, failed.OutputFiles, 1)
	assert.NotEqual(t, accepted.OutputFiles[0], failed.OutputFiles[0])

	data, err := os.ReadFile(accepted.OutputFiles[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://acme.com")
	data, err = os.ReadFile(failed.OutputFiles[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://gone.example,404")
}

func TestHandleRunBatch_InputValidation(t *testing.T) {
	s := newTestServer(t, acmeExtractor())

	for name, args := range map[string]map[string]interface{}{
		"neither": {},
		"both":    {"urls": "https://acme.com", "query": "dentists"},
		"blank":   {"urls": " , \n"},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := s.handleRunBatch(context.Background(), callTool("run_batch", args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestHandleCancelJob(t *testing.T) {
	ext := acmeExtractor()
	ext.block = make(chan struct{})
	s := newTestServer(t, ext)

	res, err := s.handleRunBatch(context.Background(), callTool("run_batch", map[string]interface{}{"urls": "https://acme.com"}))
	require.NoError(t, err)
	jobID := decodeResult(t, res)["job_id"].(string)

	dup, err := s.handleRunBatch(context.Background(), callTool("run_batch", map[string]interface{}{"urls": "https://acme.com"}))
	require.NoError(t, err)
	assert.Equal(t, "already_running", decodeResult(t, dup)["status"])

	cancelRes, err := s.handleCancelJob(context.Background(), callTool("cancel_job", map[string]interface{}{"job_id": jobID}))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", decodeResult(t, cancelRes)["status"])

	job := waitForJob(t, s, jobID)
	assert.Equal(t, JobStatusCancelled, job.Status)
	assert.Empty(t, job.Failed, "interrupted seeds produce no rows")

	again, err := s.handleCancelJob(context.Background(), callTool("cancel_job", map[string]interface{}{"job_id": jobID}))
	require.NoError(t, err)
	assert.True(t, again.IsError)
}

func TestHandleGetJobStatus_Missing(t *testing.T) {
	s := newTestServer(t, acmeExtractor())

	res, err := s.handleGetJobStatus(context.Background(), callTool("get_job_status", map[string]interface{}{"job_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetJobStatus(context.Background(), callTool("get_job_status", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSplitURLs(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example", "c.example"},
		splitURLs("https://a.example,\nhttps://b.example  c.example\r\n"))
	assert.Empty(t, splitURLs(" , "))
}

func TestContactsMap(t *testing.T) {
	rec := models.NewContactRecord("https://acme.com")
	rec.Add(models.Email, "b@acme.com")
	rec.Add(models.Email, "a@acme.com")

	contacts := contactsMap(rec)
	assert.Len(t, contacts, len(models.AllCategories))
	assert.Equal(t, []string{"a@acme.com", "b@acme.com"}, contacts["email"])
}
