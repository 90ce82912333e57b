package gie_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/adapters/gie"
	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

func TestALSIAdapter_FlattensNestedSubMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"name": "France", "gasDayStart": "2024-03-01", "status": "Actual", "sendOut": {"full": "12.3"}}
		]}`))
	}))
	defer server.Close()

	client := gie.NewClient("key").WithHTTPClient(routeToServer(server))
	adapter := gie.NewALSIAdapter(client)

	raw, err := adapter.Fetch(context.Background(), ingestion.FetchParams{})
	require.NoError(t, err)

	records, err := adapter.Parse(raw)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sendOut_full", records[0]["variable"])

	observations, err := adapter.Normalize(records[0])
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, 12.3, observations[0].Value)
	assert.Equal(t, "GIE_ALSI", observations[0].GIE.Source)
}

func TestDeleteLookbackDays(t *testing.T) {
	assert.Equal(t, 10, gie.DeleteLookbackDays)
}
