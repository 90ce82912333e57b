package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RawEventStore appends verbatim upstream payloads and serves them back for
// field discovery. Implementations live in internal/storage.
type RawEventStore interface {
	// InsertRows writes one raw-event row per source row (tabular batch).
	InsertRows(ctx context.Context, events []RawEvent) error

	// InsertDocument writes one raw-event row holding a whole JSON document.
	InsertDocument(ctx context.Context, event RawEvent) error

	// FetchAllForDataset returns every raw event recorded for datasetID, in
	// no particular order, for field discovery to scan.
	FetchAllForDataset(ctx context.Context, datasetID string) ([]RawEvent, error)
}

// FieldCatalogStore upserts discovered fields with do-nothing-on-conflict
// semantics: once a field is catalogued, the first row wins.
type FieldCatalogStore interface {
	UpsertFields(ctx context.Context, entries []FieldCatalogEntry) error
}

// SeriesStore registers canonical series metadata for the flat variant.
// Inserts are on-conflict-do-nothing: series attributes are write-once.
type SeriesStore interface {
	RegisterSeries(ctx context.Context, series []SeriesMeta) error
}

// ObservationStore is the flat-variant (series_id, observation_time) upsert
// path and its retention deleter.
type ObservationStore interface {
	RetentionDeleter

	// Upsert dedups observations by (SeriesID, Time) — last write in the
	// batch wins — then issues one atomic upsert, overwriting value,
	// ingestion_time, quality_flag, raw_payload and ingestion_run_id on
	// conflict. Returns the number of rows written.
	Upsert(ctx context.Context, observations []Observation, runID uuid.UUID) (int64, error)
}

// GIEStore is the relational-variant insert path: get-or-create the asset
// and series rows, then insert the daily value. There is no upsert; the
// rolling-window delete in ApplyGIEDeletePolicy is the idempotence
// mechanism.
type GIEStore interface {
	GIERollingDeleter

	InsertRows(ctx context.Context, observations []Observation, runID uuid.UUID) (int64, error)
}

// RunJournal records one row per orchestrator invocation.
type RunJournal interface {
	// Open inserts a RUNNING row and returns its run_id and started_at.
	Open(ctx context.Context, datasetID string) (uuid.UUID, time.Time, error)

	// Close transitions a run to a terminal state exactly once.
	Close(ctx context.Context, runID uuid.UUID, result RunResult) error
}
