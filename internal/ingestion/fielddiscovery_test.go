package ingestion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

type fakeRawEventStore struct {
	events []ingestion.RawEvent
}

func (f *fakeRawEventStore) InsertRows(_ context.Context, events []ingestion.RawEvent) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeRawEventStore) InsertDocument(_ context.Context, event ingestion.RawEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRawEventStore) FetchAllForDataset(_ context.Context, datasetID string) ([]ingestion.RawEvent, error) {
	var out []ingestion.RawEvent

	for _, e := range f.events {
		if e.DatasetID == datasetID {
			out = append(out, e)
		}
	}

	return out, nil
}

func TestDiscoverFields_TypesAndNullability(t *testing.T) {
	store := &fakeRawEventStore{
		events: []ingestion.RawEvent{
			{DatasetID: "GAS_QUALITY", RawPayload: map[string]interface{}{"cv": 39.5, "siteId": 77, "note": nil}},
			{DatasetID: "GAS_QUALITY", RawPayload: map[string]interface{}{"cv": 40.1, "siteId": 78, "note": "ok"}},
		},
	}

	entries, err := ingestion.DiscoverFields(context.Background(), store, "GAS_QUALITY")
	require.NoError(t, err)

	byName := make(map[string]ingestion.FieldCatalogEntry)
	for _, e := range entries {
		byName[e.FieldName] = e
	}

	assert.Equal(t, "float", byName["cv"].InferredType)
	assert.False(t, byName["cv"].Nullable)
	assert.Equal(t, "integer", byName["siteId"].InferredType)
	assert.Equal(t, "null,string", byName["note"].InferredType)
	assert.True(t, byName["note"].Nullable)
}

func TestDiscoverFields_NoEventsYieldsNoFields(t *testing.T) {
	store := &fakeRawEventStore{}

	entries, err := ingestion.DiscoverFields(context.Background(), store, "GAS_QUALITY")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
