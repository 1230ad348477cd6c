package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amopromo/flightdeck/internal/cache"
	"github.com/amopromo/flightdeck/internal/db/repositories"
	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/metrics"
	"github.com/amopromo/flightdeck/internal/models"
	gormmodels "github.com/amopromo/flightdeck/internal/models/gorm"
	"github.com/amopromo/flightdeck/internal/upstream"
)

// Mode selects how much of the durable dataset a run touches
type Mode string

const (
	// ModeFull refreshes every record and deactivates rows missing from
	// the snapshot
	ModeFull Mode = "full"
	// ModeIncremental writes only records that differ and never
	// deactivates anything
	ModeIncremental Mode = "incremental"
)

// ErrImportInProgress is returned when a run is requested while another
// run against the same dataset is still active
var ErrImportInProgress = errors.New("airport import already in progress")

// ParseMode validates a mode string from a flag or query param. Empty
// selects ModeFull.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeIncremental:
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("invalid import mode %q: must be full or incremental", s)
	}
}

// Options are the knobs of one import invocation
type Options struct {
	Mode        Mode
	ForceUpdate bool
	DryRun      bool
}

// Counts summarizes per-record outcomes of a run
type Counts struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Deactivated int `json:"deactivated"`
}

// Run is the transient record of one import invocation. It is not
// persisted; it exists for logging and the trigger response.
type Run struct {
	ID           string    `json:"id"`
	Mode         Mode      `json:"mode"`
	DryRun       bool      `json:"dry_run"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Counts       Counts    `json:"counts"`
	CacheWarning string    `json:"cache_warning,omitempty"`
}

// AirportsFetcher is the upstream collaborator contract
type AirportsFetcher interface {
	FetchAirports(ctx context.Context) (map[string]models.AirportRecord, []upstream.ParseError, error)
}

// Pipeline orchestrates a refresh of the durable airport dataset from the
// upstream airports API and re-primes the cache store afterwards
type Pipeline struct {
	fetcher AirportsFetcher
	repo    *repositories.AirportRepository
	store   *cache.AirportStore
	metrics *metrics.MetricsRegistry
	running atomic.Bool
}

func NewPipeline(fetcher AirportsFetcher, repo *repositories.AirportRepository, store *cache.AirportStore, reg *metrics.MetricsRegistry) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		repo:    repo,
		store:   store,
		metrics: reg,
	}
}

// Run executes one import. A total upstream fetch failure aborts the run;
// per-record failures are counted and do not. Dry runs perform every
// comparison but issue no durable writes and never touch the cache store.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Run, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode

	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrImportInProgress
	}
	defer p.running.Store(false)

	run := &Run{
		ID:        uuid.NewString(),
		Mode:      opts.Mode,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}

	logging.Info("Airport import started",
		"run_id", run.ID, "mode", string(opts.Mode),
		"force_update", opts.ForceUpdate, "dry_run", opts.DryRun)

	fetched, parseErrs, err := p.fetcher.FetchAirports(ctx)
	if err != nil {
		p.countRun("fetch_failed", run.StartedAt)
		return nil, fmt.Errorf("airport import %s: %w", run.ID, err)
	}
	for _, perr := range parseErrs {
		run.Counts.Failed++
		logging.Warn("Skipping malformed upstream airport record",
			"run_id", run.ID, "iata", perr.Code, "reason", perr.Reason)
	}

	existing, err := p.loadExisting(ctx)
	if err != nil {
		p.countRun("db_failed", run.StartedAt)
		return nil, fmt.Errorf("airport import %s: loading existing records: %w", run.ID, err)
	}

	now := time.Now().UTC()
	codes := make([]string, 0, len(fetched))
	for code := range fetched {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if err := p.processRecord(ctx, run, opts, fetched[code], existing[code], now); err != nil {
			run.Counts.Failed++
			logging.Error("Failed to write airport record",
				"run_id", run.ID, "iata", code, "error", err.Error())
		}
	}

	if opts.Mode == ModeFull && !opts.DryRun {
		deactivated, err := p.repo.DeactivateMissing(ctx, codes)
		if err != nil {
			logging.Error("Failed to deactivate missing airports", "run_id", run.ID, "error", err.Error())
		} else {
			run.Counts.Deactivated = int(deactivated)
		}
	}

	// The cache is primed only after every durable write of this run has
	// completed, and only for real runs. Best effort: a cache failure never
	// rolls back committed durable writes.
	if !opts.DryRun {
		if result, err := p.store.CacheAirportsData(ctx, fetched); err != nil {
			run.CacheWarning = err.Error()
			logging.Warn("Cache prime failed after import; durable store is authoritative",
				"run_id", run.ID, "error", err.Error())
		} else if result.SerializeFailed > 0 {
			run.CacheWarning = fmt.Sprintf("%d records failed cache serialization", result.SerializeFailed)
		}
	}

	run.FinishedAt = time.Now().UTC()
	p.countRecords(run.Counts)
	p.countRun("success", run.StartedAt)

	logging.Info("Airport import finished",
		"run_id", run.ID,
		"created", run.Counts.Created,
		"updated", run.Counts.Updated,
		"skipped", run.Counts.Skipped,
		"failed", run.Counts.Failed,
		"deactivated", run.Counts.Deactivated,
		"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds())

	return run, nil
}

func (p *Pipeline) loadExisting(ctx context.Context) (map[string]*gormmodels.Airport, error) {
	rows, err := p.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*gormmodels.Airport, len(rows))
	for i := range rows {
		existing[rows[i].IATA] = &rows[i]
	}
	return existing, nil
}

func (p *Pipeline) processRecord(ctx context.Context, run *Run, opts Options, rec models.AirportRecord, prior *gormmodels.Airport, now time.Time) error {
	desired := rec.Entity()
	desired.LastSync = now

	if prior == nil {
		if !opts.DryRun {
			// Upsert so a concurrent creation of the same code degrades to
			// an update instead of a unique-constraint failure
			if err := p.repo.Upsert(ctx, &desired); err != nil {
				return err
			}
		}
		run.Counts.Created++
		return nil
	}

	if !opts.ForceUpdate && prior.FieldsEqual(desired) {
		run.Counts.Skipped++
		return nil
	}

	if !opts.DryRun {
		if err := p.repo.Update(ctx, &desired); err != nil {
			return err
		}
	}
	run.Counts.Updated++
	return nil
}

func (p *Pipeline) countRun(outcome string, started time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.ImportRunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.ImportRunDuration.Observe(time.Since(started).Seconds())
}

func (p *Pipeline) countRecords(c Counts) {
	if p.metrics == nil {
		return
	}
	p.metrics.ImportRecordsTotal.WithLabelValues("created").Add(float64(c.Created))
	p.metrics.ImportRecordsTotal.WithLabelValues("updated").Add(float64(c.Updated))
	p.metrics.ImportRecordsTotal.WithLabelValues("skipped").Add(float64(c.Skipped))
	p.metrics.ImportRecordsTotal.WithLabelValues("failed").Add(float64(c.Failed))
}
