package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"contact-scraper/pkg/models"
	"contact-scraper/pkg/parse"
	"contact-scraper/pkg/sink"
	"contact-scraper/pkg/storage"
	"contact-scraper/pkg/utils"
)

// DefaultProgressInterval is the number of processed seeds between progress reports
const DefaultProgressInterval = 10

// Extractor produces the contact record of one seed page
type Extractor interface {
	Extract(ctx context.Context, url string, crawl bool) (*models.ContactRecord, models.FetchOutcome)
}

// RecordValidator filters a record against its seed
type RecordValidator interface {
	Validate(record *models.ContactRecord, seedURL string) *models.ContactRecord
}

// Options configures a Processor. Zero values fall back to defaults.
type Options struct {
	NumWorkers       int
	ProgressInterval int
	Validator        RecordValidator            // nil disables validation
	Store            storage.SeedStore          // nil disables resume tracking
	OnProgress       func(processed, total int) // Called every ProgressInterval seeds
}

// SeedResult is the classified outcome of one seed
type SeedResult struct {
	Website  string
	Accepted bool
	Reason   string // Failed-row code when not accepted
	Record   *models.ContactRecord
	Outcome  models.FetchOutcome
	Duration time.Duration
}

// Summary reports the totals of a batch run
type Summary struct {
	Total     int // Distinct seeds after dedupe
	Processed int
	Accepted  int
	Failed    int
	Skipped   int // Already finished in an earlier run
	Duration  time.Duration
}

// Processor runs the extraction over a set of seed URLs and routes every
// outcome to the sink
type Processor struct {
	extractor Extractor
	sink      sink.Sink
	opts      Options
	log       *logrus.Entry

	processed atomic.Int64
	accepted  atomic.Int64
	failed    atomic.Int64

	sinkErrMu sync.Mutex
	sinkErr   error
}

type seedTask struct {
	website  string // As given in the input
	fetchURL string // Cleaned form handed to the extractor
	key      string // Normalized form for dedupe and state
}

// NewProcessor creates a Processor writing to snk
func NewProcessor(extractor Extractor, snk sink.Sink, opts Options, log *logrus.Entry) *Processor {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	return &Processor{
		extractor: extractor,
		sink:      snk,
		opts:      opts,
		log:       log.WithField("component", "batch"),
	}
}

// dedupe collapses seeds sharing a normalized form, keeping the first.
// Seeds that fail to parse are kept as-is; the fetch reports them unreachable.
func dedupe(urls []string) []seedTask {
	seen := make(map[string]bool, len(urls))
	tasks := make([]seedTask, 0, len(urls))
	for _, raw := range urls {
		website := strings.TrimSpace(raw)
		if website == "" {
			continue
		}
		task := seedTask{website: website, fetchURL: website, key: website}
		if cleaned, key, err := parse.CleanSeed(website); err == nil {
			task.fetchURL = cleaned
			task.key = key
		}
		if seen[task.key] {
			continue
		}
		seen[task.key] = true
		tasks = append(tasks, task)
	}
	return tasks
}

// Run processes urls with up to NumWorkers seeds in flight. Zero usable URLs
// is ErrEmptyInput. Cancelling ctx stops dispatch; seeds interrupted mid-fetch
// produce no row and stay pending for a resumed run.
func (p *Processor) Run(ctx context.Context, urls []string) (Summary, error) {
	startTime := time.Now()
	tasks := dedupe(urls)
	if len(tasks) == 0 {
		return Summary{}, fmt.Errorf("%w: batch received no URLs", utils.ErrEmptyInput)
	}
	if dropped := len(urls) - len(tasks); dropped > 0 {
		p.log.Infof("Dropped %d duplicate or blank seed URLs", dropped)
	}

	p.processed.Store(0)
	p.accepted.Store(0)
	p.failed.Store(0)

	summary := Summary{Total: len(tasks)}
	pending := p.skipFinished(tasks, &summary)
	total := len(pending)

	p.log.Infof("Starting batch of %d seeds (%d skipped, workers: %d)", total, summary.Skipped, p.opts.NumWorkers)

	sem := semaphore.NewWeighted(int64(p.opts.NumWorkers))
	var wg sync.WaitGroup

	for _, task := range pending {
		if ctx.Err() != nil {
			p.log.Warnf("Stopping dispatch: %v", ctx.Err())
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			p.log.Warnf("Stopping dispatch: %v", err)
			break
		}
		wg.Add(1)
		go func(t seedTask) {
			defer wg.Done()
			defer sem.Release(1)
			p.processSeed(ctx, t, total)
		}(task)
	}
	wg.Wait()

	summary.Processed = int(p.processed.Load())
	summary.Accepted = int(p.accepted.Load())
	summary.Failed = int(p.failed.Load())
	summary.Duration = time.Since(startTime)
	p.logSummary(summary)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	p.sinkErrMu.Lock()
	defer p.sinkErrMu.Unlock()
	return summary, p.sinkErr
}

// skipFinished drops seeds already in a terminal state in the store
func (p *Processor) skipFinished(tasks []seedTask, summary *Summary) []seedTask {
	if p.opts.Store == nil {
		return tasks
	}
	pending := make([]seedTask, 0, len(tasks))
	for _, t := range tasks {
		status, _, err := p.opts.Store.CheckSeedStatus(t.key)
		if err != nil {
			p.log.WithField("seed", t.website).Warnf("State lookup failed, processing anyway: %v", err)
		}
		if status.IsTerminal() {
			p.log.WithField("seed", t.website).Debugf("Skipping seed finished in earlier run (%s)", status)
			summary.Skipped++
			continue
		}
		pending = append(pending, t)
	}
	return pending
}

// processSeed extracts, classifies and records one seed
func (p *Processor) processSeed(ctx context.Context, t seedTask, total int) {
	seedLog := p.log.WithField("seed", t.website)
	startTime := time.Now()

	if p.opts.Store != nil {
		if _, err := p.opts.Store.MarkSeedPending(t.key); err != nil {
			seedLog.Warnf("Failed to mark seed pending: %v", err)
		}
	}

	record, outcome := p.extractor.Extract(ctx, t.fetchURL, true)
	if ctx.Err() != nil && outcome.Kind == models.OutcomeTransportError {
		seedLog.Debugf("Seed interrupted by cancellation: %s", outcome)
		return
	}

	result := p.Classify(t.website, t.fetchURL, record, outcome)
	result.Duration = time.Since(startTime)

	var writeErr error
	if result.Accepted {
		p.accepted.Add(1)
		writeErr = p.sink.WriteResult(models.NewResultRow(result.Website, result.Record))
		seedLog.WithField("duration", result.Duration).Info("Contacts found")
	} else {
		p.failed.Add(1)
		writeErr = p.sink.WriteFailed(models.FailedRow{Website: result.Website, Code: result.Reason})
		seedLog.WithFields(logrus.Fields{"reason": result.Reason, "duration": result.Duration}).Info("Seed failed")
	}
	if writeErr != nil {
		seedLog.Errorf("Failed to write row: %v", writeErr)
		p.sinkErrMu.Lock()
		if p.sinkErr == nil {
			p.sinkErr = writeErr
		}
		p.sinkErrMu.Unlock()
	}

	p.recordState(seedLog, t.key, result)

	n := int(p.processed.Add(1))
	if n%p.opts.ProgressInterval == 0 {
		p.log.Infof("Progress: %d/%d seeds processed", n, total)
		if p.opts.OnProgress != nil {
			p.opts.OnProgress(n, total)
		}
	}
}

// Classify maps an extraction outcome to an accepted record or a failed-row
// reason. Validation, when enabled, runs on non-empty successful records.
func (p *Processor) Classify(website, seedURL string, record *models.ContactRecord, outcome models.FetchOutcome) SeedResult {
	result := SeedResult{Website: website, Outcome: outcome}

	switch outcome.Kind {
	case models.OutcomeHTTPError:
		result.Reason = strconv.Itoa(outcome.StatusCode)
		return result
	case models.OutcomeTransportError:
		if errors.Is(outcome.Err, utils.ErrRobotsDisallowed) {
			result.Reason = models.ReasonRobotsDisallowed
		} else {
			result.Reason = models.ReasonUnreachable
		}
		return result
	}

	if record == nil || record.IsEmpty() {
		result.Reason = models.ReasonNoContact
		return result
	}
	if p.opts.Validator != nil {
		record = p.opts.Validator.Validate(record, seedURL)
		if record.IsEmpty() {
			result.Reason = models.ReasonNoContact
			return result
		}
	}

	result.Accepted = true
	result.Record = record
	return result
}

// recordState stores the seed's terminal status when a store is attached
func (p *Processor) recordState(seedLog *logrus.Entry, key string, result SeedResult) {
	if p.opts.Store == nil {
		return
	}
	now := time.Now()
	entry := &models.SeedDBEntry{Status: models.SeedStatusSuccess, ProcessedAt: now, LastAttempt: now}
	if !result.Accepted {
		entry = &models.SeedDBEntry{Status: models.SeedStatusFailure, Reason: result.Reason, LastAttempt: now}
		if result.Outcome.Err != nil {
			entry.ErrorType = utils.CategorizeError(result.Outcome.Err)
		}
	}
	if err := p.opts.Store.UpdateSeedStatus(key, entry); err != nil {
		seedLog.Warnf("Failed to record seed state: %v", err)
	}
}

// logSummary logs the totals of a run
func (p *Processor) logSummary(s Summary) {
	p.log.Info("============================================")
	p.log.Infof("Batch completed in %v", s.Duration)
	p.log.Infof("Total: %d seeds (%d processed, %d accepted, %d failed, %d skipped)",
		s.Total, s.Processed, s.Accepted, s.Failed, s.Skipped)
	p.log.Info("============================================")
}
