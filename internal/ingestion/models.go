// Package ingestion implements the registry-driven orchestration engine that
// dispatches per-source adapters through a fixed run lifecycle: open a run,
// fetch with retry, persist raw payloads, discover fields, parse, normalize,
// validate, prune by retention policy, register series, upsert observations,
// and close the run.
package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// FetchParams bundles the dataset-specific parameters an Orchestrator.Run
// caller may supply. Adapters read only the keys they understand; unused
// fields are ignored.
type FetchParams struct {
	FromDate       string
	ToDate         string
	SiteIDs        []int
	OperatorKeys   []string
	PointKeys      []string
	DirectionKeys  []string
	Indicators     []string
	Limit          int
	PublicationIDs []string
	Country        string
}

// Raw is what Adapter.Fetch returns: either a rectangular batch of rows
// (tabular upstreams) or a single JSON document (GIE). Exactly one of Rows
// or Document is populated.
type Raw struct {
	Rows     []Record
	Document map[string]interface{}
}

// IsDocument reports whether this Raw carries a whole-document payload
// rather than a row batch.
func (r Raw) IsDocument() bool {
	return r.Document != nil
}

// Record is one row produced by Adapter.Parse: an untyped field bag mirroring
// the shape of the upstream payload before normalization.
type Record map[string]interface{}

// Observation is one normalized, persistable sample. SeriesID is left empty
// for GIE-backed adapters, whose series are resolved inline at insert time
// from GIESeries by asset/variable/source.
type Observation struct {
	SeriesID    string
	Time        time.Time
	Value       float64
	QualityFlag string
	RawPayload  map[string]interface{}

	// Extra carries the fields consulted by required_fields validation
	// rules; the adapters set it to the whole source record the observation
	// was normalized from.
	Extra map[string]interface{}

	GIE *GIESeries
}

// GIESeries identifies the relational-variant series an observation belongs
// to: an asset (country), a variable, and a source (GIE_AGSI or GIE_ALSI).
type GIESeries struct {
	AssetName    string
	AssetLevel   string
	AssetQuality string
	Variable     string
	Source       string
}

// SeriesMeta is canonical series metadata returned by Adapter.DefineSeries
// for the flat storage variant. GIE adapters return no SeriesMeta; their
// series are created inline by the relational insert path.
type SeriesMeta struct {
	SeriesID       string
	DatasetID      string
	Source         string
	DataItem       string
	Description    string
	Unit           string
	Frequency      string // "daily" | "intraday"
	TimezoneSource string
	IsActive       bool
	CreatedAt      time.Time
}

// RawEvent is a verbatim upstream payload with provenance, persisted before
// any parsing happens.
type RawEvent struct {
	ID              uuid.UUID
	Source          string
	DatasetID       string
	SeriesHint      string
	EventTime       *time.Time
	IngestedAt      time.Time
	IngestionRunID  *uuid.UUID
	RawPayload      map[string]interface{}
}

// FieldCatalogEntry is a per-dataset discovered field, written once and never
// overwritten (first-wins, per the current behavior recorded in SPEC_FULL.md §9).
type FieldCatalogEntry struct {
	DatasetID    string
	FieldName    string
	InferredType string
	Nullable     bool
	ExampleValue string
	FirstSeenAt  time.Time
}

// RunStatus is the terminal or in-flight state of an IngestionRun.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// IngestionRun is one invocation of the orchestrator.
type IngestionRun struct {
	RunID        uuid.UUID
	DatasetID    string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       RunStatus
	RowsFetched  int
	RowsInserted int
	RowsDeleted  int
	ErrorMessage string
}

// RunResult is what Orchestrator passes to RunJournal.Close on every exit
// path, success or failure.
type RunResult struct {
	Status       RunStatus
	FinishedAt   time.Time
	RowsFetched  int
	RowsInserted int
	RowsDeleted  int
	ErrorMessage string
}
