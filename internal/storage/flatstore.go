package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

// ErrNoDatabaseConnection is returned when a store is constructed with a nil
// Connection.
var ErrNoDatabaseConnection = errors.New("no database connection provided")

// FlatStore implements the flat-variant ingestion.RawEventStore,
// ingestion.FieldCatalogStore, ingestion.SeriesStore, ingestion.ObservationStore
// and ingestion.RunJournal interfaces against raw_events, field_catalog,
// meta_series, data_observations and ingestion_runs.
type FlatStore struct {
	conn *Connection
}

var (
	_ ingestion.RawEventStore     = (*FlatStore)(nil)
	_ ingestion.FieldCatalogStore = (*FlatStore)(nil)
	_ ingestion.SeriesStore       = (*FlatStore)(nil)
	_ ingestion.ObservationStore  = (*FlatStore)(nil)
	_ ingestion.RunJournal        = (*FlatStore)(nil)
)

// NewFlatStore returns a FlatStore backed by conn. Returns
// ErrNoDatabaseConnection if conn is nil.
func NewFlatStore(conn *Connection) (*FlatStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &FlatStore{conn: conn}, nil
}

// Open inserts a RUNNING ingestion_runs row.
func (s *FlatStore) Open(ctx context.Context, datasetID string) (uuid.UUID, time.Time, error) {
	runID := uuid.New()
	startedAt := time.Now().UTC()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO ingestion_runs (run_id, dataset_id, started_at, status)
		VALUES ($1, $2, $3, $4)
	`, runID, datasetID, startedAt, ingestion.RunStatusRunning)
	if err != nil {
		return uuid.UUID{}, time.Time{}, fmt.Errorf("insert ingestion_runs row: %w", err)
	}

	return runID, startedAt, nil
}

// Close transitions a run to a terminal state.
func (s *FlatStore) Close(ctx context.Context, runID uuid.UUID, result ingestion.RunResult) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE ingestion_runs
		SET finished_at = $2, status = $3, rows_fetched = $4, rows_inserted = $5,
		    rows_deleted = $6, error_message = $7
		WHERE run_id = $1
	`, runID, result.FinishedAt, result.Status, result.RowsFetched, result.RowsInserted,
		result.RowsDeleted, nullIfEmpty(result.ErrorMessage))
	if err != nil {
		return fmt.Errorf("close ingestion_runs row %s: %w", runID, err)
	}

	return nil
}

// InsertRows writes one raw_events row per source row.
func (s *FlatStore) InsertRows(ctx context.Context, events []ingestion.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin raw event batch: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_events (id, source, dataset_id, series_hint, event_time, ingested_at, ingestion_run_id, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare raw event insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		payload, err := json.Marshal(event.RawPayload)
		if err != nil {
			return fmt.Errorf("marshal raw payload: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, event.ID, sourceOrDataset(event), event.DatasetID,
			nullIfEmpty(event.SeriesHint), event.EventTime, event.IngestedAt, event.IngestionRunID, payload); err != nil {
			return fmt.Errorf("insert raw event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit raw event batch: %w", err)
	}

	return nil
}

// InsertDocument writes one raw_events row holding a whole JSON document.
func (s *FlatStore) InsertDocument(ctx context.Context, event ingestion.RawEvent) error {
	payload, err := json.Marshal(event.RawPayload)
	if err != nil {
		return fmt.Errorf("marshal raw document: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO raw_events (id, source, dataset_id, series_hint, event_time, ingested_at, ingestion_run_id, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, sourceOrDataset(event), event.DatasetID, nullIfEmpty(event.SeriesHint), event.EventTime,
		event.IngestedAt, event.IngestionRunID, payload)
	if err != nil {
		return fmt.Errorf("insert raw document: %w", err)
	}

	return nil
}

// FetchAllForDataset returns every raw event recorded for datasetID.
func (s *FlatStore) FetchAllForDataset(ctx context.Context, datasetID string) ([]ingestion.RawEvent, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, dataset_id, event_time, ingested_at, ingestion_run_id, raw_payload
		FROM raw_events
		WHERE dataset_id = $1
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query raw events for %s: %w", datasetID, err)
	}
	defer rows.Close()

	var events []ingestion.RawEvent

	for rows.Next() {
		var (
			event      ingestion.RawEvent
			eventTime  sql.NullTime
			runID      uuid.NullUUID
			payload    []byte
		)

		if err := rows.Scan(&event.ID, &event.DatasetID, &eventTime, &event.IngestedAt, &runID, &payload); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}

		if eventTime.Valid {
			event.EventTime = &eventTime.Time
		}

		if runID.Valid {
			event.IngestionRunID = &runID.UUID
		}

		if err := json.Unmarshal(payload, &event.RawPayload); err != nil {
			return nil, fmt.Errorf("unmarshal raw payload: %w", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw events for %s: %w", datasetID, err)
	}

	return events, nil
}

// UpsertFields writes discovered fields with do-nothing-on-conflict
// semantics: the first row to catalogue a field wins.
func (s *FlatStore) UpsertFields(ctx context.Context, entries []ingestion.FieldCatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin field catalog batch: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO field_catalog (dataset_id, field_name, inferred_type, nullable, example_value, first_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (dataset_id, field_name) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare field catalog upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, entry.DatasetID, entry.FieldName, entry.InferredType,
			entry.Nullable, entry.ExampleValue, entry.FirstSeenAt); err != nil {
			return fmt.Errorf("upsert field catalog entry %s.%s: %w", entry.DatasetID, entry.FieldName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit field catalog batch: %w", err)
	}

	return nil
}

// RegisterSeries inserts canonical series metadata, on-conflict-do-nothing:
// series attributes are write-once.
func (s *FlatStore) RegisterSeries(ctx context.Context, series []ingestion.SeriesMeta) error {
	if len(series) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin series batch: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO meta_series (series_id, dataset_id, source, data_item, description, unit, frequency,
			timezone_source, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (series_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare series insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()

	for _, meta := range series {
		unit := meta.Unit
		if unit == "" {
			unit = "UNKNOWN"
		}

		timezoneSource := meta.TimezoneSource
		if timezoneSource == "" {
			timezoneSource = "UTC"
		}

		createdAt := meta.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		if _, err := stmt.ExecContext(ctx, meta.SeriesID, meta.DatasetID, meta.Source, meta.DataItem,
			meta.Description, unit, meta.Frequency, timezoneSource, true, createdAt); err != nil {
			return fmt.Errorf("insert series %s: %w", meta.SeriesID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit series batch: %w", err)
	}

	return nil
}

// Upsert dedups observations by (SeriesID, Time) — last write in the batch
// wins — then issues one atomic multi-row upsert.
func (s *FlatStore) Upsert(ctx context.Context, observations []ingestion.Observation, runID uuid.UUID) (int64, error) {
	deduped := dedupObservations(observations)
	if len(deduped) == 0 {
		return 0, nil
	}

	const columnsPerRow = 7

	placeholders := make([]string, 0, len(deduped))
	args := make([]interface{}, 0, len(deduped)*columnsPerRow)
	ingestionTime := time.Now().UTC()

	for i, obs := range deduped {
		payload, err := json.Marshal(obs.RawPayload)
		if err != nil {
			return 0, fmt.Errorf("marshal observation payload for %s: %w", obs.SeriesID, err)
		}

		base := i * columnsPerRow
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, obs.SeriesID, obs.Time, ingestionTime, obs.Value, obs.QualityFlag, payload, runID)
	}

	query := fmt.Sprintf(`
		INSERT INTO data_observations (series_id, observation_time, ingestion_time, value, quality_flag,
			raw_payload, ingestion_run_id)
		VALUES %s
		ON CONFLICT (series_id, observation_time) DO UPDATE
		SET ingestion_time = EXCLUDED.ingestion_time,
		    value = EXCLUDED.value,
		    quality_flag = EXCLUDED.quality_flag,
		    raw_payload = EXCLUDED.raw_payload,
		    ingestion_run_id = EXCLUDED.ingestion_run_id
	`, strings.Join(placeholders, ", "))

	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("upsert observations: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return int64(len(deduped)), nil //nolint: nilerr
	}

	return rowsAffected, nil
}

// DeleteOlderThan removes data_observations rows for datasetID with an
// observation_time before cutoff.
func (s *FlatStore) DeleteOlderThan(ctx context.Context, datasetID string, cutoff time.Time) (int64, error) {
	result, err := s.conn.ExecContext(ctx, `
		DELETE FROM data_observations
		USING meta_series
		WHERE data_observations.series_id = meta_series.series_id
		  AND meta_series.dataset_id = $1
		  AND data_observations.observation_time < $2
	`, datasetID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete observations older than %s for %s: %w", cutoff, datasetID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted observations for %s: %w", datasetID, err)
	}

	return rowsAffected, nil
}

// dedupObservations keeps the last occurrence of each (SeriesID, Time) pair,
// preserving encounter order for the rest. A single Postgres upsert statement
// cannot affect the same row twice, so this dedup is mandatory before the
// batch VALUES list is built.
func dedupObservations(observations []ingestion.Observation) []ingestion.Observation {
	type key struct {
		seriesID string
		time     time.Time
	}

	index := make(map[key]int, len(observations))
	deduped := make([]ingestion.Observation, 0, len(observations))

	for _, obs := range observations {
		k := key{obs.SeriesID, obs.Time}
		if i, ok := index[k]; ok {
			deduped[i] = obs
			continue
		}

		index[k] = len(deduped)
		deduped = append(deduped, obs)
	}

	return deduped
}

// sourceOrDataset returns event.Source, falling back to event.DatasetID when
// an adapter left Source unset.
func sourceOrDataset(event ingestion.RawEvent) string {
	if event.Source != "" {
		return event.Source
	}

	return event.DatasetID
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: s, Valid: true}
}
