package nationalgas_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/adapters/nationalgas"
)

func TestClient_GetJSON_RetriesOnceOn429(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := nationalgas.NewClient(
		nationalgas.WithHTTPClient(server.Client()),
		nationalgas.WithRequestsPerSecond(1000),
		nationalgas.WithRateLimitSleep(10*time.Millisecond),
		nationalgas.WithLogger(slog.Default()),
	)

	body, err := client.GetJSON(context.Background(), server.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 2, attempts)
}

func TestClient_GetJSON_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := nationalgas.NewClient(
		nationalgas.WithHTTPClient(server.Client()),
		nationalgas.WithRequestsPerSecond(1000),
	)

	_, err := client.GetJSON(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
