package nationalgas_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/adapters/nationalgas"
	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*nationalgas.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := nationalgas.NewClient(
		nationalgas.WithHTTPClient(routeToServer(server)),
		nationalgas.WithRequestsPerSecond(1000),
	)

	return client, server
}

// routeToServer returns an http.Client that sends every request to server,
// whatever host the request URL names: the adapters call fixed upstream
// URLs, and server.Client() only reroutes example.com.
func routeToServer(server *httptest.Server) *http.Client {
	target, err := url.Parse(server.URL)
	if err != nil {
		panic(err)
	}

	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		rerouted := req.Clone(req.Context())
		rerouted.URL.Scheme = target.Scheme
		rerouted.URL.Host = target.Host

		return server.Client().Transport.RoundTrip(rerouted)
	})}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestGasQualityAdapter_FetchAndNormalize(t *testing.T) {
	calls := 0

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"siteId": "77",
				"areaName": "North",
				"siteName": "St Fergus",
				"siteGasQualityDetail": [
					{"publishedTime": "2024-03-01T00:00:00Z", "CV": 39.5, "WI": 51.2}
				]
			}
		]`))
	})

	adapter := nationalgas.NewGasQualityAdapter(client)

	raw, err := adapter.Fetch(context.Background(), ingestion.FetchParams{FromDate: "2024-03-01", ToDate: "2024-03-03"})
	require.NoError(t, err)
	require.Len(t, raw.Rows, 1)
	assert.Equal(t, 1, calls) // one 2-day chunk covers the whole range

	records, err := adapter.Parse(raw)
	require.NoError(t, err)
	require.Len(t, records, 1)

	observations, err := adapter.Normalize(records[0])
	require.NoError(t, err)
	require.Len(t, observations, 2) // CV and WI each become their own observation

	values := make(map[string]float64)
	for _, obs := range observations {
		values[obs.SeriesID] = obs.Value
	}

	assert.Equal(t, 39.5, values[ingestion.BuildSeriesID("GAS_QUALITY", "77", "CV")])
	assert.Equal(t, 51.2, values[ingestion.BuildSeriesID("GAS_QUALITY", "77", "WI")])

	series, err := adapter.DefineSeries(observations)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, "intraday", series[0].Frequency)
}

func TestGasQualityAdapter_Normalize_MissingSiteIDSkipsRow(t *testing.T) {
	adapter := nationalgas.NewGasQualityAdapter(nationalgas.NewClient())

	observations, err := adapter.Normalize(ingestion.Record{"publishedTime": "2024-03-01T00:00:00Z", "CV": 39.5})
	require.NoError(t, err)
	assert.Empty(t, observations)
}

func TestGasQualityAdapter_TimeField(t *testing.T) {
	adapter := nationalgas.NewGasQualityAdapter(nationalgas.NewClient())
	assert.Equal(t, "observation_time", adapter.TimeField())
}
