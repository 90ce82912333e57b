package nationalgas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

const (
	// DatasetGasPublications is the registry tag for this adapter.
	DatasetGasPublications = "GAS_PUBLICATIONS"

	gasPublicationsURL = "https://api.nationalgas.com/operationaldata/v1/publications/gasday"
)

type gasPublication struct {
	PublicationID   string `json:"publicationId"`
	PublicationName string `json:"publicationName"`
	Publications    []struct {
		ApplicableFor    string  `json:"applicableFor"`
		Value            any     `json:"value"`
		QualityIndicator *string `json:"qualityIndicator"`
		GeneratedAt      string  `json:"generatedTimeStamp"`
	} `json:"publications"`
}

// GasPublicationsAdapter fetches published gas-day values for a fixed set of
// publication ids.
type GasPublicationsAdapter struct {
	client         *Client
	publicationIDs []string
}

// NewGasPublicationsAdapter returns an adapter that requests publicationIDs
// unless FetchParams.PublicationIDs is non-empty, in which case those ids
// are requested instead.
func NewGasPublicationsAdapter(client *Client, publicationIDs []string) *GasPublicationsAdapter {
	return &GasPublicationsAdapter{client: client, publicationIDs: publicationIDs}
}

func (a *GasPublicationsAdapter) DatasetID() string { return DatasetGasPublications }

func (a *GasPublicationsAdapter) Fetch(ctx context.Context, params ingestion.FetchParams) (ingestion.Raw, error) {
	publicationIDs := a.publicationIDs
	if len(params.PublicationIDs) > 0 {
		publicationIDs = params.PublicationIDs
	}

	payload := map[string]interface{}{
		"fromDate":       params.FromDate,
		"toDate":         params.ToDate,
		"publicationIds": publicationIDs,
		"latestValue":    "Y",
	}

	body, err := a.client.PostJSON(ctx, gasPublicationsURL, payload)
	if err != nil {
		return ingestion.Raw{}, fmt.Errorf("fetch gas publications: %w", err)
	}

	var publications []gasPublication
	if err := json.Unmarshal(body, &publications); err != nil {
		return ingestion.Raw{}, fmt.Errorf("decode gas publications response: %w", err)
	}

	var rows []ingestion.Record

	for _, pub := range publications {
		for _, entry := range pub.Publications {
			rows = append(rows, ingestion.Record{
				"publicationId":      pub.PublicationID,
				"publicationName":    pub.PublicationName,
				"applicableFor":      entry.ApplicableFor,
				"value":              entry.Value,
				"qualityIndicator":   entry.QualityIndicator,
				"generatedTimeStamp": entry.GeneratedAt,
			})
		}
	}

	return ingestion.Raw{Rows: rows}, nil
}

func (a *GasPublicationsAdapter) Parse(raw ingestion.Raw) ([]ingestion.Record, error) {
	return raw.Rows, nil
}

func (a *GasPublicationsAdapter) Normalize(record ingestion.Record) ([]ingestion.Observation, error) {
	pubID, ok := record["publicationId"].(string)
	if !ok || pubID == "" {
		return nil, nil
	}

	applicableFor, ok := record["applicableFor"]
	if !ok || applicableFor == nil {
		return nil, nil
	}

	ts, err := parseTime(applicableFor)
	if err != nil {
		return nil, nil
	}

	value, ok := asFloat(record["value"])
	if !ok {
		return nil, nil
	}

	qualityFlag := ""
	if q, ok := record["qualityIndicator"].(*string); ok && q != nil {
		qualityFlag = *q
	} else if q, ok := record["qualityIndicator"].(string); ok {
		qualityFlag = q
	}

	seriesID := ingestion.BuildSeriesID(DatasetGasPublications, pubID)

	return []ingestion.Observation{{
		SeriesID:    seriesID,
		Time:        ts,
		Value:       value,
		QualityFlag: qualityFlag,
		RawPayload:  record,
		Extra:       record,
	}}, nil
}

func (a *GasPublicationsAdapter) DefineSeries(observations []ingestion.Observation) ([]ingestion.SeriesMeta, error) {
	seen := make(map[string]struct{})

	series := make([]ingestion.SeriesMeta, 0, len(observations))

	for _, obs := range observations {
		if _, ok := seen[obs.SeriesID]; ok {
			continue
		}

		seen[obs.SeriesID] = struct{}{}

		parts := strings.Split(obs.SeriesID, "_")
		if len(parts) < 3 {
			continue
		}

		pubID := parts[len(parts)-1]

		series = append(series, ingestion.SeriesMeta{
			SeriesID:       obs.SeriesID,
			DatasetID:      DatasetGasPublications,
			Source:         gasQualitySource,
			DataItem:       pubID,
			Description:    fmt.Sprintf("Publication %s", pubID),
			Unit:           "UNKNOWN",
			Frequency:      "daily",
			TimezoneSource: "UTC",
			IsActive:       true,
		})
	}

	return series, nil
}

func (a *GasPublicationsAdapter) TimeField() string { return "observation_time" }
