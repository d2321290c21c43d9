package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/models"
	"contact-scraper/pkg/utils"
)

// Sink receives the rows of one batch run
type Sink interface {
	WriteResult(row models.ResultRow) error
	WriteFailed(row models.FailedRow) error
	Close() error
}

// Options controls how CSVSink names and opens its files
type Options struct {
	Dir        string
	DatePrefix bool      // Prefix filenames with YYYY_MM_DD_
	Resume     bool      // Append to existing files instead of truncating
	Now        time.Time // Date used for the prefix; zero means time.Now()
	Tag        string    // Optional run tag inserted before result/failed, e.g. a job ID
}

// csvFile is one output file with its writer and row bookkeeping
type csvFile struct {
	path    string
	label   string
	file    *os.File
	writer  *csv.Writer
	rows    int  // Data rows written this run
	hadRows bool // File held data rows before this run (resume)
}

// CSVSink writes result and failed rows to two CSV files. Safe for concurrent use.
// Files left holding only their header are removed on Close.
type CSVSink struct {
	mu     sync.Mutex
	result *csvFile
	failed *csvFile
	closed bool
	log    *logrus.Entry
}

// FileNames returns the result and failed filenames for the given date and
// optional tag. Sinks with different tags never share files.
func FileNames(datePrefix bool, now time.Time, tag string) (result, failed string) {
	prefix := ""
	if datePrefix {
		prefix = now.Format("2006_01_02") + "_"
	}
	if tag != "" {
		prefix += utils.SanitizeFilename(tag) + "_"
	}
	return prefix + "result.csv", prefix + "failed.csv"
}

// NewCSVSink opens (or creates) both files in opts.Dir and writes headers where needed
func NewCSVSink(opts Options, log *logrus.Entry) (*CSVSink, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	log = log.WithField("component", "sink")

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating output dir '%s': %w", utils.ErrFilesystem, opts.Dir, err)
	}

	resultName, failedName := FileNames(opts.DatePrefix, opts.Now, opts.Tag)
	result, err := openCSVFile(log, filepath.Join(opts.Dir, resultName), "result", models.ResultHeader, opts.Resume)
	if err != nil {
		return nil, err
	}
	failed, err := openCSVFile(log, filepath.Join(opts.Dir, failedName), "failed", models.FailedHeader, opts.Resume)
	if err != nil {
		result.file.Close()
		return nil, err
	}

	return &CSVSink{result: result, failed: failed, log: log}, nil
}

// openCSVFile opens path for writing. In resume mode existing content is kept
// and the header is only written to a new or empty file.
func openCSVFile(log *logrus.Entry, path, label string, header []string, resume bool) (*csvFile, error) {
	openFlags := os.O_CREATE | os.O_RDWR
	if resume {
		log.Debugf("Resume mode: Appending to %s file: %s", label, path)
		openFlags |= os.O_APPEND
	} else {
		log.Debugf("Truncating %s file: %s", label, path)
		openFlags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, openFlags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s file '%s': %w", utils.ErrFilesystem, label, path, err)
	}

	cf := &csvFile{path: path, label: label, file: file, writer: csv.NewWriter(file)}

	existing := 0
	if resume {
		existing, err = countRecords(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: reading existing %s file '%s': %w", utils.ErrFilesystem, label, path, err)
		}
	}
	cf.hadRows = existing > 1

	if existing == 0 {
		if err := cf.writer.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: writing %s header: %w", utils.ErrFilesystem, label, err)
		}
		cf.writer.Flush()
		if err := cf.writer.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: writing %s header: %w", utils.ErrFilesystem, label, err)
		}
	}
	return cf, nil
}

// countRecords counts the CSV records already in f, reading from the start
func countRecords(f *os.File) (int, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	n := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (cf *csvFile) write(record []string) error {
	if err := cf.writer.Write(record); err != nil {
		return fmt.Errorf("%w: writing %s row: %w", utils.ErrFilesystem, cf.label, err)
	}
	cf.writer.Flush()
	if err := cf.writer.Error(); err != nil {
		return fmt.Errorf("%w: flushing %s row: %w", utils.ErrFilesystem, cf.label, err)
	}
	cf.rows++
	return nil
}

// close flushes and closes the file, deleting it if it holds only its header
func (cf *csvFile) close(log *logrus.Entry) error {
	cf.writer.Flush()
	flushErr := cf.writer.Error()
	closeErr := cf.file.Close()

	if cf.rows == 0 && !cf.hadRows {
		if err := os.Remove(cf.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: removing empty %s file: %w", utils.ErrFilesystem, cf.label, err)
		}
		log.WithField("path", cf.path).Debugf("Removed %s file with no rows", cf.label)
		return errors.Join(flushErr, closeErr)
	}
	log.WithFields(logrus.Fields{"path": cf.path, "rows": cf.rows}).Infof("Wrote %s file", cf.label)
	return errors.Join(flushErr, closeErr)
}

// WriteResult appends an accepted row to the result file
func (s *CSVSink) WriteResult(row models.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: sink closed", utils.ErrFilesystem)
	}
	return s.result.write(row.Strings())
}

// WriteFailed appends a rejected row to the failed file
func (s *CSVSink) WriteFailed(row models.FailedRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: sink closed", utils.ErrFilesystem)
	}
	return s.failed.write(row.Strings())
}

// Paths returns the result and failed file paths
func (s *CSVSink) Paths() (result, failed string) {
	return s.result.path, s.failed.path
}

// Counts returns the rows written this run to the result and failed files
func (s *CSVSink) Counts() (result, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.rows, s.failed.rows
}

// Close flushes both files and removes any left with only a header. Idempotent.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.result.close(s.log), s.failed.close(s.log))
}
