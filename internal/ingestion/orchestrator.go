package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var defaultRetryBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Option configures an optional Orchestrator dependency.
type Option func(*Orchestrator)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock overrides the orchestrator's notion of "now", for deterministic
// tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRetrySchedule overrides the fetch retry backoff schedule (default
// 1s, 2s, 4s).
func WithRetrySchedule(backoff []time.Duration) Option {
	return func(o *Orchestrator) { o.retryBackoff = backoff }
}

// Orchestrator composes the registry, field discovery, validator, delete
// policy and both storage variants into the fixed twelve-step run lifecycle.
// It owns retries and failure finalization; adapters never do either.
type Orchestrator struct {
	registry         *Registry
	runs             RunJournal
	rawStore         RawEventStore
	fieldCatalog     FieldCatalogStore
	flatSeries       SeriesStore
	flatObservations ObservationStore
	gieStore         GIEStore
	datasetConfig    *DatasetConfigLoader
	limiter          *ConcurrencyLimiter
	validator        *Validator

	logger       *slog.Logger
	now          func() time.Time
	retryBackoff []time.Duration
}

// NewOrchestrator wires the fixed set of collaborators the run lifecycle
// needs. flatSeries/flatObservations serve the flat storage variant;
// gieStore serves the relational GIE variant; datasets are routed between
// them via Registry.GIESource.
func NewOrchestrator(
	registry *Registry,
	runs RunJournal,
	rawStore RawEventStore,
	fieldCatalog FieldCatalogStore,
	flatSeries SeriesStore,
	flatObservations ObservationStore,
	gieStore GIEStore,
	datasetConfig *DatasetConfigLoader,
	limiter *ConcurrencyLimiter,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		registry:         registry,
		runs:             runs,
		rawStore:         rawStore,
		fieldCatalog:     fieldCatalog,
		flatSeries:       flatSeries,
		flatObservations: flatObservations,
		gieStore:         gieStore,
		datasetConfig:    datasetConfig,
		limiter:          limiter,
		validator:        NewValidator(),
		logger:           slog.Default(),
		now:              time.Now,
		retryBackoff:     defaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// counters tracks the run's best-effort row counts as the lifecycle
// progresses, so a failure tail can report accurate partial progress.
type counters struct {
	fetched  int
	inserted int
	deleted  int
}

// Run executes the twelve-step lifecycle for one dataset_id invocation.
// Unknown dataset_id and a failing ParamValidator check (Configuration
// errors) abort before any run is opened; every other failure closes the
// open run FAILED and re-raises.
func (o *Orchestrator) Run(ctx context.Context, datasetID string, params FetchParams) error {
	factory, err := o.registry.Get(datasetID)
	if err != nil {
		return err
	}

	adapter := factory()

	if err := validateParams(adapter, params); err != nil {
		return err
	}

	gieSource, isGIE := o.registry.GIESource(datasetID)

	deleteConfig := o.datasetConfig.DeleteConfigFor(datasetID)
	validationConfig := o.datasetConfig.ValidationOverrideFor(datasetID, ValidationConfigFor(adapter))

	release, err := o.limiter.Acquire(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("acquire concurrency slot for %s: %w", datasetID, err)
	}
	defer release()

	runID, _, err := o.runs.Open(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("open run journal for %s: %w", datasetID, err)
	}

	c := &counters{}

	if err := o.runBody(ctx, adapter, datasetID, gieSource, isGIE, params, deleteConfig, validationConfig, runID, c); err != nil {
		o.closeFailed(ctx, runID, c, err)
		return err
	}

	o.closeSuccess(ctx, runID, c)

	return nil
}

func (o *Orchestrator) runBody(
	ctx context.Context,
	adapter Adapter,
	datasetID, gieSource string,
	isGIE bool,
	params FetchParams,
	deleteConfig DeleteConfig,
	validationConfig ValidationConfig,
	runID uuid.UUID,
	c *counters,
) error {
	raw, err := o.fetchWithRetry(ctx, adapter, params)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", datasetID, err)
	}

	if err := o.persistRaw(ctx, datasetID, raw, runID); err != nil {
		return fmt.Errorf("persist raw events for %s: %w", datasetID, err)
	}

	if err := o.discoverFields(ctx, datasetID); err != nil {
		return fmt.Errorf("discover fields for %s: %w", datasetID, err)
	}

	records, err := adapter.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", datasetID, err)
	}

	c.fetched = len(records)

	observations, err := normalizeAll(adapter, records)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", datasetID, err)
	}

	c.inserted = len(observations)

	if err := o.validator.Validate(observations, validationConfig); err != nil {
		return err
	}

	deleted, err := o.applyDeletePolicy(ctx, datasetID, gieSource, isGIE, deleteConfig)
	if err != nil {
		return fmt.Errorf("apply delete policy for %s: %w", datasetID, err)
	}

	c.deleted = deleted

	if !isGIE {
		series, err := adapter.DefineSeries(observations)
		if err != nil {
			return fmt.Errorf("define series for %s: %w", datasetID, err)
		}

		if err := o.flatSeries.RegisterSeries(ctx, series); err != nil {
			return fmt.Errorf("register series for %s: %w", datasetID, err)
		}
	}

	inserted, err := o.upsertObservations(ctx, gieSource, isGIE, observations, runID)
	if err != nil {
		return fmt.Errorf("upsert observations for %s: %w", datasetID, err)
	}

	c.inserted = inserted

	return nil
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, adapter Adapter, params FetchParams) (Raw, error) {
	var lastErr error

	attempts := len(o.retryBackoff) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := o.retryBackoff[attempt-1]

			o.logger.Warn("fetch attempt failed, retrying",
				slog.String("dataset_id", adapter.DatasetID()),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.Any("error", lastErr),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Raw{}, ctx.Err()
			}
		}

		raw, err := adapter.Fetch(ctx, params)
		if err == nil {
			return raw, nil
		}

		lastErr = err
	}

	return Raw{}, lastErr
}

func (o *Orchestrator) persistRaw(ctx context.Context, datasetID string, raw Raw, runID uuid.UUID) error {
	ingestedAt := o.now().UTC()

	if raw.IsDocument() {
		return o.rawStore.InsertDocument(ctx, RawEvent{
			ID:             uuid.New(),
			DatasetID:      datasetID,
			IngestedAt:     ingestedAt,
			IngestionRunID: &runID,
			RawPayload:     raw.Document,
		})
	}

	events := make([]RawEvent, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		events = append(events, RawEvent{
			ID:             uuid.New(),
			DatasetID:      datasetID,
			IngestedAt:     ingestedAt,
			IngestionRunID: &runID,
			RawPayload:     row,
		})
	}

	return o.rawStore.InsertRows(ctx, events)
}

func (o *Orchestrator) discoverFields(ctx context.Context, datasetID string) error {
	entries, err := DiscoverFields(ctx, o.rawStore, datasetID)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	return o.fieldCatalog.UpsertFields(ctx, entries)
}

func normalizeAll(adapter Adapter, records []Record) ([]Observation, error) {
	observations := make([]Observation, 0, len(records))

	for _, record := range records {
		obs, err := adapter.Normalize(record)
		if err != nil {
			return nil, err
		}

		observations = append(observations, obs...)
	}

	return observations, nil
}

func (o *Orchestrator) applyDeletePolicy(
	ctx context.Context, datasetID, gieSource string, isGIE bool, config DeleteConfig,
) (int, error) {
	if isGIE {
		deleted, err := ApplyGIEDeletePolicy(ctx, o.gieStore, gieSource, config.WindowDays, o.now().UTC())
		return int(deleted), err
	}

	deleted, err := ApplyDeletePolicy(ctx, o.flatObservations, datasetID, config, o.now().UTC())

	return int(deleted), err
}

func (o *Orchestrator) upsertObservations(
	ctx context.Context, gieSource string, isGIE bool, observations []Observation, runID uuid.UUID,
) (int, error) {
	if isGIE {
		inserted, err := o.gieStore.InsertRows(ctx, observations, runID)
		return int(inserted), err
	}

	inserted, err := o.flatObservations.Upsert(ctx, observations, runID)

	return int(inserted), err
}

func (o *Orchestrator) closeSuccess(ctx context.Context, runID uuid.UUID, c *counters) {
	err := o.runs.Close(ctx, runID, RunResult{
		Status:       RunStatusSuccess,
		FinishedAt:   o.now().UTC(),
		RowsFetched:  c.fetched,
		RowsInserted: c.inserted,
		RowsDeleted:  c.deleted,
	})
	if err != nil {
		o.logger.Error("failed to close run journal after success", slog.String("run_id", runID.String()), slog.Any("error", err))
	}
}

func (o *Orchestrator) closeFailed(ctx context.Context, runID uuid.UUID, c *counters, cause error) {
	err := o.runs.Close(ctx, runID, RunResult{
		Status:       RunStatusFailed,
		FinishedAt:   o.now().UTC(),
		RowsFetched:  c.fetched,
		RowsInserted: c.inserted,
		RowsDeleted:  c.deleted,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		o.logger.Error("failed to close run journal after failure", slog.String("run_id", runID.String()), slog.Any("error", err))
	}
}
