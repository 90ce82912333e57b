package ingestion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

// fakeAdapter is a minimal in-memory Adapter used to exercise the
// orchestrator without a real upstream.
type fakeAdapter struct {
	datasetID  string
	fetchCalls int
	failFetch  int // number of leading Fetch calls that return an error
	rows       []ingestion.Record
	validation *ingestion.ValidationConfig
}

func (a *fakeAdapter) DatasetID() string { return a.datasetID }

func (a *fakeAdapter) Fetch(_ context.Context, _ ingestion.FetchParams) (ingestion.Raw, error) {
	a.fetchCalls++
	if a.fetchCalls <= a.failFetch {
		return ingestion.Raw{}, errors.New("upstream unavailable")
	}

	return ingestion.Raw{Rows: a.rows}, nil
}

func (a *fakeAdapter) Parse(raw ingestion.Raw) ([]ingestion.Record, error) {
	return raw.Rows, nil
}

func (a *fakeAdapter) Normalize(record ingestion.Record) ([]ingestion.Observation, error) {
	value, ok := record["value"].(float64)
	if !ok {
		return nil, nil
	}

	seriesID := ingestion.BuildSeriesID(a.datasetID, record["id"].(string))

	return []ingestion.Observation{{
		SeriesID:   seriesID,
		Time:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Value:      value,
		RawPayload: record,
		Extra:      record,
	}}, nil
}

func (a *fakeAdapter) DefineSeries(observations []ingestion.Observation) ([]ingestion.SeriesMeta, error) {
	seen := make(map[string]struct{})

	series := make([]ingestion.SeriesMeta, 0, len(observations))
	for _, obs := range observations {
		if _, ok := seen[obs.SeriesID]; ok {
			continue
		}

		seen[obs.SeriesID] = struct{}{}
		series = append(series, ingestion.SeriesMeta{SeriesID: obs.SeriesID, DatasetID: a.datasetID, Frequency: "daily"})
	}

	return series, nil
}

func (a *fakeAdapter) TimeField() string { return "observation_time" }

func (a *fakeAdapter) ValidationConfig() ingestion.ValidationConfig {
	if a.validation == nil {
		return ingestion.ValidationConfig{}
	}

	return *a.validation
}

// fakeParamValidatingAdapter wraps fakeAdapter to exercise the
// ingestion.ParamValidator path: ValidateParams fails every call,
// regardless of params, the way entsog.Adapter fails when no selector was
// supplied.
type fakeParamValidatingAdapter struct {
	*fakeAdapter
	validateErr error
}

func (a *fakeParamValidatingAdapter) ValidateParams(_ ingestion.FetchParams) error {
	return a.validateErr
}

type fakeRunJournal struct {
	opened    []string
	closed    []ingestion.RunResult
	openErr   error
	lastRunID uuid.UUID
}

func (j *fakeRunJournal) Open(_ context.Context, datasetID string) (uuid.UUID, time.Time, error) {
	if j.openErr != nil {
		return uuid.UUID{}, time.Time{}, j.openErr
	}

	j.opened = append(j.opened, datasetID)
	j.lastRunID = uuid.New()

	return j.lastRunID, time.Now().UTC(), nil
}

func (j *fakeRunJournal) Close(_ context.Context, _ uuid.UUID, result ingestion.RunResult) error {
	j.closed = append(j.closed, result)
	return nil
}

type fakeSeriesStore struct {
	registered []ingestion.SeriesMeta
}

func (s *fakeSeriesStore) RegisterSeries(_ context.Context, series []ingestion.SeriesMeta) error {
	s.registered = append(s.registered, series...)
	return nil
}

type fakeObservationStore struct {
	upserted       []ingestion.Observation
	deleteCalls    int
	deleteDatasets []string
}

func (s *fakeObservationStore) Upsert(_ context.Context, observations []ingestion.Observation, _ uuid.UUID) (int64, error) {
	s.upserted = append(s.upserted, observations...)
	return int64(len(observations)), nil
}

func (s *fakeObservationStore) DeleteOlderThan(_ context.Context, datasetID string, _ time.Time) (int64, error) {
	s.deleteCalls++
	s.deleteDatasets = append(s.deleteDatasets, datasetID)

	return 0, nil
}

type fakeGIEStore struct{}

func (s *fakeGIEStore) DeleteRollingWindow(_ context.Context, _ string, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeGIEStore) InsertRows(_ context.Context, observations []ingestion.Observation, _ uuid.UUID) (int64, error) {
	return int64(len(observations)), nil
}

func newTestOrchestrator(t *testing.T, adapter ingestion.Adapter, isGIE bool) (
	*ingestion.Orchestrator, *fakeRunJournal, *fakeObservationStore, *fakeSeriesStore,
) {
	t.Helper()

	registry := ingestion.NewRegistry()
	if isGIE {
		registry.RegisterGIE(adapter.DatasetID(), "GIE_AGSI", func() ingestion.Adapter { return adapter })
	} else {
		registry.Register(adapter.DatasetID(), func() ingestion.Adapter { return adapter })
	}

	runs := &fakeRunJournal{}
	rawStore := &fakeRawEventStore{}
	fieldCatalog := &fakeFieldCatalogStore{}
	seriesStore := &fakeSeriesStore{}
	obsStore := &fakeObservationStore{}
	gieStore := &fakeGIEStore{}

	datasetConfig, err := ingestion.LoadDatasetConfig(t.TempDir() + "/missing.yaml")
	require.NoError(t, err)

	limiter := ingestion.NewConcurrencyLimiter(1)

	o := ingestion.NewOrchestrator(
		registry, runs, rawStore, fieldCatalog, seriesStore, obsStore, gieStore, datasetConfig, limiter,
		ingestion.WithRetrySchedule([]time.Duration{0, 0, 0}),
	)

	return o, runs, obsStore, seriesStore
}

type fakeFieldCatalogStore struct {
	upserted []ingestion.FieldCatalogEntry
}

func (s *fakeFieldCatalogStore) UpsertFields(_ context.Context, entries []ingestion.FieldCatalogEntry) error {
	s.upserted = append(s.upserted, entries...)
	return nil
}

func TestOrchestrator_EmptyUpstream(t *testing.T) {
	adapter := &fakeAdapter{datasetID: "GAS_QUALITY"}
	o, runs, obsStore, seriesStore := newTestOrchestrator(t, adapter, false)

	err := o.Run(context.Background(), "GAS_QUALITY", ingestion.FetchParams{})
	require.NoError(t, err)

	require.Len(t, runs.closed, 1)
	assert.Equal(t, ingestion.RunStatusSuccess, runs.closed[0].Status)
	assert.Equal(t, 0, runs.closed[0].RowsFetched)
	assert.Equal(t, 0, runs.closed[0].RowsInserted)
	assert.Empty(t, obsStore.upserted)
	assert.Empty(t, seriesStore.registered)
}

func TestOrchestrator_SingleRowSuccess(t *testing.T) {
	adapter := &fakeAdapter{
		datasetID: "GAS_QUALITY",
		rows: []ingestion.Record{
			{"id": "77_CV", "value": 39.5},
			{"id": "77_WOBBE", "value": 49.2},
		},
	}

	o, runs, obsStore, seriesStore := newTestOrchestrator(t, adapter, false)

	err := o.Run(context.Background(), "GAS_QUALITY", ingestion.FetchParams{})
	require.NoError(t, err)

	require.Len(t, runs.closed, 1)
	assert.Equal(t, ingestion.RunStatusSuccess, runs.closed[0].Status)
	assert.Equal(t, 2, runs.closed[0].RowsInserted)
	assert.Len(t, obsStore.upserted, 2)
	assert.Len(t, seriesStore.registered, 2)
}

func TestOrchestrator_UnknownDataset_NoRunOpened(t *testing.T) {
	adapter := &fakeAdapter{datasetID: "GAS_QUALITY"}
	o, runs, _, _ := newTestOrchestrator(t, adapter, false)

	err := o.Run(context.Background(), "NOT_REGISTERED", ingestion.FetchParams{})
	require.ErrorIs(t, err, ingestion.ErrUnknownDataset)
	assert.Empty(t, runs.opened)
}

func TestOrchestrator_ParamValidationFailure_NoRunOpened(t *testing.T) {
	configErr := errors.New("entsog requires indicators, or both point_keys and direction_keys")
	adapter := &fakeParamValidatingAdapter{
		fakeAdapter: &fakeAdapter{datasetID: "ENTSOG"},
		validateErr: configErr,
	}

	o, runs, _, _ := newTestOrchestrator(t, adapter, false)

	err := o.Run(context.Background(), "ENTSOG", ingestion.FetchParams{})
	require.ErrorIs(t, err, configErr)
	assert.Empty(t, runs.opened)
	assert.Empty(t, runs.closed)
	assert.Zero(t, adapter.fetchCalls)
}

func TestOrchestrator_FetchRetriesThenSucceeds(t *testing.T) {
	adapter := &fakeAdapter{
		datasetID: "GAS_QUALITY",
		failFetch: 2,
		rows:      []ingestion.Record{{"id": "77_CV", "value": 39.5}},
	}

	o, runs, _, _ := newTestOrchestrator(t, adapter, false)

	err := o.Run(context.Background(), "GAS_QUALITY", ingestion.FetchParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, adapter.fetchCalls)
	assert.Equal(t, ingestion.RunStatusSuccess, runs.closed[0].Status)
}

func TestOrchestrator_FetchExhaustsRetries_RunFailed(t *testing.T) {
	adapter := &fakeAdapter{datasetID: "GAS_QUALITY", failFetch: 99}
	o, runs, _, _ := newTestOrchestrator(t, adapter, false)

	err := o.Run(context.Background(), "GAS_QUALITY", ingestion.FetchParams{})
	require.Error(t, err)
	require.Len(t, runs.closed, 1)
	assert.Equal(t, ingestion.RunStatusFailed, runs.closed[0].Status)
	assert.NotEmpty(t, runs.closed[0].ErrorMessage)
}

func TestOrchestrator_ValidationFailure_NoObservationsWritten(t *testing.T) {
	minRows := 10
	adapter := &fakeAdapter{
		datasetID:  "GAS_QUALITY",
		rows:       []ingestion.Record{{"id": "77_CV", "value": 39.5}},
		validation: &ingestion.ValidationConfig{MinRowCount: minRows},
	}

	o, runs, obsStore, _ := newTestOrchestrator(t, adapter, false)

	err := o.Run(context.Background(), "GAS_QUALITY", ingestion.FetchParams{})
	require.Error(t, err)

	var valErr *ingestion.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "min_row_count", valErr.Rule)

	assert.Equal(t, ingestion.RunStatusFailed, runs.closed[0].Status)
	assert.Empty(t, obsStore.upserted)
}
