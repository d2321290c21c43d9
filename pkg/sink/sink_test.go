package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-scraper/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

var fixedDay = time.Date(2024, time.March, 7, 15, 4, 5, 0, time.UTC)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestFileNames(t *testing.T) {
	r, f := FileNames(true, fixedDay, "")
	assert.Equal(t, "2024_03_07_result.csv", r)
	assert.Equal(t, "2024_03_07_failed.csv", f)

	r, f = FileNames(false, fixedDay, "")
	assert.Equal(t, "result.csv", r)
	assert.Equal(t, "failed.csv", f)

	r, f = FileNames(true, fixedDay, "job 42")
	assert.Equal(t, "2024_03_07_job_42_result.csv", r)
	assert.Equal(t, "2024_03_07_job_42_failed.csv", f)
}

func TestCSVSink_TaggedSinksDoNotShareFiles(t *testing.T) {
	dir := t.TempDir()
	a, err := NewCSVSink(Options{Dir: dir, DatePrefix: true, Now: fixedDay, Tag: "job-a"}, testLogger())
	require.NoError(t, err)
	require.NoError(t, a.WriteResult(models.ResultRow{Website: "https://acme.com", Email: "info@acme.com"}))

	b, err := NewCSVSink(Options{Dir: dir, DatePrefix: true, Now: fixedDay, Tag: "job-b"}, testLogger())
	require.NoError(t, err)
	require.NoError(t, b.WriteFailed(models.FailedRow{Website: "https://gone.example", Code: "404"}))

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	aResult, aFailed := a.Paths()
	bResult, bFailed := b.Paths()
	assert.NotEqual(t, aResult, bResult)

	rows := readCSV(t, aResult)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://acme.com", rows[1][0])
	assert.NoFileExists(t, aFailed)
	assert.NoFileExists(t, bResult)
	assert.Len(t, readCSV(t, bFailed), 2)
}

func TestCSVSink_WritesHeadersAndRows(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink(Options{Dir: dir, DatePrefix: true, Now: fixedDay}, testLogger())
	require.NoError(t, err)

	rec := models.NewContactRecord("https://acme.com")
	rec.Add(models.Phone, "+1-555-0100")
	require.NoError(t, s.WriteResult(models.NewResultRow("https://acme.com", rec)))
	require.NoError(t, s.WriteFailed(models.FailedRow{Website: "https://gone.example", Code: "404"}))
	require.NoError(t, s.Close())

	resultPath, failedPath := s.Paths()
	assert.Equal(t, filepath.Join(dir, "2024_03_07_result.csv"), resultPath)

	assert.Equal(t, [][]string{
		models.ResultHeader,
		{"https://acme.com", "+1-555-0100", "", "", "", "", ""},
	}, readCSV(t, resultPath))
	assert.Equal(t, [][]string{
		models.FailedHeader,
		{"https://gone.example", "404"},
	}, readCSV(t, failedPath))
}

func TestCSVSink_RemovesHeaderOnlyFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink(Options{Dir: dir, DatePrefix: false}, testLogger())
	require.NoError(t, err)

	require.NoError(t, s.WriteFailed(models.FailedRow{Website: "https://a.example", Code: models.ReasonNoContact}))
	require.NoError(t, s.Close())

	resultPath, failedPath := s.Paths()
	assert.NoFileExists(t, resultPath)
	assert.FileExists(t, failedPath)
}

func TestCSVSink_TruncatesWithoutResume(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Dir: dir, Now: fixedDay}

	s1, err := NewCSVSink(opts, testLogger())
	require.NoError(t, err)
	require.NoError(t, s1.WriteFailed(models.FailedRow{Website: "https://old.example", Code: "500"}))
	require.NoError(t, s1.Close())

	s2, err := NewCSVSink(opts, testLogger())
	require.NoError(t, err)
	require.NoError(t, s2.WriteFailed(models.FailedRow{Website: "https://new.example", Code: "404"}))
	require.NoError(t, s2.Close())

	_, failedPath := s2.Paths()
	assert.Equal(t, [][]string{
		models.FailedHeader,
		{"https://new.example", "404"},
	}, readCSV(t, failedPath))
}

func TestCSVSink_ResumeAppendsWithoutSecondHeader(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewCSVSink(Options{Dir: dir, Now: fixedDay}, testLogger())
	require.NoError(t, err)
	require.NoError(t, s1.WriteFailed(models.FailedRow{Website: "https://a.example", Code: "404"}))
	require.NoError(t, s1.Close())

	s2, err := NewCSVSink(Options{Dir: dir, Now: fixedDay, Resume: true}, testLogger())
	require.NoError(t, err)
	require.NoError(t, s2.WriteFailed(models.FailedRow{Website: "https://b.example", Code: models.ReasonUnreachable}))
	require.NoError(t, s2.Close())

	_, failedPath := s2.Paths()
	assert.Equal(t, [][]string{
		models.FailedHeader,
		{"https://a.example", "404"},
		{"https://b.example", "Website unreachable."},
	}, readCSV(t, failedPath))

	// A resumed run writing no rows keeps earlier rows on Close
	s3, err := NewCSVSink(Options{Dir: dir, Now: fixedDay, Resume: true}, testLogger())
	require.NoError(t, err)
	require.NoError(t, s3.Close())
	assert.FileExists(t, failedPath)
}

func TestCSVSink_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink(Options{Dir: dir}, testLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.WriteFailed(models.FailedRow{Website: fmt.Sprintf("https://%d.example", i), Code: "404"}))
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Close())

	_, failedPath := s.Paths()
	assert.Len(t, readCSV(t, failedPath), 51)
	_, failedRows := s.Counts()
	assert.Equal(t, 50, failedRows)
}

func TestCSVSink_WriteAfterClose(t *testing.T) {
	s, err := NewCSVSink(Options{Dir: t.TempDir()}, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Error(t, s.WriteResult(models.ResultRow{Website: "https://acme.com"}))
}

func TestMultiAndMemorySink(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	m := Multi(a, b)

	require.NoError(t, m.WriteResult(models.ResultRow{Website: "https://acme.com"}))
	require.NoError(t, m.WriteFailed(models.FailedRow{Website: "https://x.example", Code: "404"}))
	require.NoError(t, m.Close())

	for _, s := range []*MemorySink{a, b} {
		assert.Len(t, s.Results(), 1)
		assert.Equal(t, []models.FailedRow{{Website: "https://x.example", Code: "404"}}, s.Failed())
	}
}
