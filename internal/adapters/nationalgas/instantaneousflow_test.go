package nationalgas_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/adapters/nationalgas"
	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

func TestInstantaneousFlowAdapter_FetchAndNormalize(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"instantaneousFlow": [
				{"sites": [
					{"siteName": "Bacton", "siteGasDetail": [
						{"applicableAt": "2024-03-01T12:00:00Z", "flowRate": 123.4, "qualityIndicator": "A"}
					]}
				]}
			]
		}`))
	})

	adapter := nationalgas.NewInstantaneousFlowAdapter(client)

	raw, err := adapter.Fetch(context.Background(), ingestion.FetchParams{})
	require.NoError(t, err)
	require.Len(t, raw.Rows, 1)

	observations, err := adapter.Normalize(raw.Rows[0])
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, 123.4, observations[0].Value)
	assert.Equal(t, ingestion.BuildSeriesID("INSTANTANEOUS_FLOW", "Bacton", "FLOWRATE"), observations[0].SeriesID)

	series, err := adapter.DefineSeries(observations)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Europe/London", series[0].TimezoneSource)
}

func TestInstantaneousFlowAdapter_Normalize_MissingFlowRateSkipsRow(t *testing.T) {
	adapter := nationalgas.NewInstantaneousFlowAdapter(nationalgas.NewClient())

	observations, err := adapter.Normalize(ingestion.Record{"siteName": "Bacton", "applicableAt": "2024-03-01T12:00:00Z"})
	require.NoError(t, err)
	assert.Empty(t, observations)
}
