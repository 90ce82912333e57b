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

// ErrObservationMissingGIE is returned when InsertRows receives an
// Observation with a nil GIE field; every GIE-routed observation must carry
// asset/variable/source identification.
var ErrObservationMissingGIE = errors.New("observation missing GIE series identification")

// GIEStore implements ingestion.GIEStore against the relational variant:
// meta.assets, meta.series and energy.daily.
type GIEStore struct {
	conn *Connection
}

var _ ingestion.GIEStore = (*GIEStore)(nil)

// NewGIEStore returns a GIEStore backed by conn. Returns
// ErrNoDatabaseConnection if conn is nil.
func NewGIEStore(conn *Connection) (*GIEStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &GIEStore{conn: conn}, nil
}

// InsertRows get-or-creates the asset and series rows for each observation,
// then inserts the daily value. There is no upsert; DeleteRollingWindow
// clearing the affected date range before the run's insert step is what
// keeps repeated runs idempotent.
func (s *GIEStore) InsertRows(ctx context.Context, observations []ingestion.Observation, runID uuid.UUID) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin GIE insert batch: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	var inserted int64

	for _, obs := range observations {
		if obs.GIE == nil {
			return 0, ErrObservationMissingGIE
		}

		assetID, err := getOrCreateAsset(ctx, tx, obs.GIE)
		if err != nil {
			return 0, fmt.Errorf("get-or-create asset %s: %w", obs.GIE.AssetName, err)
		}

		seriesID, err := getOrCreateSeries(ctx, tx, assetID, obs.GIE)
		if err != nil {
			return 0, fmt.Errorf("get-or-create series for %s/%s: %w", obs.GIE.AssetName, obs.GIE.Variable, err)
		}

		payload, err := json.Marshal(obs.RawPayload)
		if err != nil {
			return 0, fmt.Errorf("marshal observation payload: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO energy.daily (series_id, value_date, value, quality_flag, raw_payload, ingestion_run_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, seriesID, obs.Time.UTC().Format("2006-01-02"), obs.Value, nullIfEmpty(obs.QualityFlag), payload, runID)
		if err != nil {
			return 0, fmt.Errorf("insert energy.daily row for series %d: %w", seriesID, err)
		}

		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit GIE insert batch: %w", err)
	}

	return inserted, nil
}

// DeleteRollingWindow removes energy.daily rows for the given GIE source
// with a value_date on or after cutoff, so the run's subsequent insert can
// repopulate that window from the latest response. Rows older than cutoff
// are untouched.
func (s *GIEStore) DeleteRollingWindow(ctx context.Context, gieSource string, cutoff time.Time) (int64, error) {
	result, err := s.conn.ExecContext(ctx, `
		DELETE FROM energy.daily
		USING meta.series
		WHERE energy.daily.series_id = meta.series.series_id
		  AND meta.series.source = $1
		  AND energy.daily.value_date >= $2
	`, gieSource, cutoff.UTC().Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("delete rolling window for %s: %w", gieSource, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted rows for %s: %w", gieSource, err)
	}

	return rowsAffected, nil
}

func getOrCreateAsset(ctx context.Context, tx *sql.Tx, gie *ingestion.GIESeries) (int64, error) {
	var assetID int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO meta.assets (name, level, quality)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET level = EXCLUDED.level, quality = EXCLUDED.quality
		RETURNING asset_id
	`, gie.AssetName, gie.AssetLevel, nullIfEmpty(gie.AssetQuality)).Scan(&assetID)
	if err != nil {
		return 0, err
	}

	return assetID, nil
}

func getOrCreateSeries(ctx context.Context, tx *sql.Tx, assetID int64, gie *ingestion.GIESeries) (int64, error) {
	uniqueConcat := seriesUniqueConcat(assetID, gie.Variable, gie.Source)

	var seriesID int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO meta.series (asset_id, variable, source, series_unique_concat)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (series_unique_concat) DO UPDATE SET series_unique_concat = meta.series.series_unique_concat
		RETURNING series_id
	`, assetID, gie.Variable, gie.Source, uniqueConcat).Scan(&seriesID)
	if err != nil {
		return 0, err
	}

	return seriesID, nil
}

func seriesUniqueConcat(assetID int64, variable, source string) string {
	parts := []string{fmt.Sprintf("%d", assetID), strings.ToUpper(variable), strings.ToUpper(source)}
	return strings.Join(parts, "|")
}
