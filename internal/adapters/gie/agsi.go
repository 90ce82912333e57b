package gie

import (
	"context"
	"fmt"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

const (
	// DatasetAGSI is the registry tag for this adapter.
	DatasetAGSI = "GIE_AGSI"

	agsiURL    = "https://agsi.gie.eu/api"
	agsiSource = "GIE_AGSI"
)

// AGSIAdapter fetches EU gas storage inventory levels. Series for this
// dataset are created inline by the relational GIE storage path, so
// DefineSeries always returns nil.
type AGSIAdapter struct {
	client *Client
}

// NewAGSIAdapter returns an adapter backed by client.
func NewAGSIAdapter(client *Client) *AGSIAdapter {
	return &AGSIAdapter{client: client}
}

func (a *AGSIAdapter) DatasetID() string { return DatasetAGSI }

func (a *AGSIAdapter) Fetch(ctx context.Context, params ingestion.FetchParams) (ingestion.Raw, error) {
	document, err := a.client.FetchDocument(ctx, agsiURL, params.Country)
	if err != nil {
		return ingestion.Raw{}, fmt.Errorf("fetch agsi: %w", err)
	}

	return ingestion.Raw{Document: document}, nil
}

func (a *AGSIAdapter) Parse(raw ingestion.Raw) ([]ingestion.Record, error) {
	return transformDocument(raw.Document), nil
}

func (a *AGSIAdapter) Normalize(record ingestion.Record) ([]ingestion.Observation, error) {
	return normalizeGIERecord(record, agsiSource)
}

func (a *AGSIAdapter) DefineSeries([]ingestion.Observation) ([]ingestion.SeriesMeta, error) {
	return nil, nil
}

func (a *AGSIAdapter) TimeField() string { return "date" }
