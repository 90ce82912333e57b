package gie

import (
	"context"
	"fmt"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

const (
	// DatasetALSI is the registry tag for this adapter.
	DatasetALSI = "GIE_ALSI"

	alsiURL    = "https://alsi.gie.eu/api"
	alsiSource = "GIE_ALSI"
)

// ALSIAdapter fetches EU LNG terminal send-out levels. Its sub-metric
// fields (nested objects in the upstream document) are flattened by
// transformDocument the same way AGSI's are.
type ALSIAdapter struct {
	client *Client
}

// NewALSIAdapter returns an adapter backed by client.
func NewALSIAdapter(client *Client) *ALSIAdapter {
	return &ALSIAdapter{client: client}
}

func (a *ALSIAdapter) DatasetID() string { return DatasetALSI }

func (a *ALSIAdapter) Fetch(ctx context.Context, params ingestion.FetchParams) (ingestion.Raw, error) {
	document, err := a.client.FetchDocument(ctx, alsiURL, params.Country)
	if err != nil {
		return ingestion.Raw{}, fmt.Errorf("fetch alsi: %w", err)
	}

	return ingestion.Raw{Document: document}, nil
}

func (a *ALSIAdapter) Parse(raw ingestion.Raw) ([]ingestion.Record, error) {
	return transformDocument(raw.Document), nil
}

func (a *ALSIAdapter) Normalize(record ingestion.Record) ([]ingestion.Observation, error) {
	return normalizeGIERecord(record, alsiSource)
}

func (a *ALSIAdapter) DefineSeries([]ingestion.Observation) ([]ingestion.SeriesMeta, error) {
	return nil, nil
}

func (a *ALSIAdapter) TimeField() string { return "date" }

// DeleteLookbackDays is the default rolling-window size, in days, used for
// both GIE datasets' retention policy when no dataset config override is
// present.
const DeleteLookbackDays = 10
