package nationalgas

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

const (
	// DatasetGasQuality is the registry tag for this adapter.
	DatasetGasQuality = "GAS_QUALITY"

	gasQualityHistoricURL = "https://api.nationalgas.com/operationaldata/v1/gasquality/historicdata"
	gasQualitySource      = "NATIONAL_GAS"
	chunkDays             = 2
)

// gasQualityKeyColumns are identifier/time columns excluded from the set of
// numeric metric columns a row is exploded into.
var gasQualityKeyColumns = map[string]struct{}{
	"siteId":        {},
	"areaName":      {},
	"siteName":      {},
	"publishedTime": {},
}

// GasQualityAdapter fetches site gas quality readings in 2-day chunks and
// explodes every numeric metric column on a row into its own observation.
type GasQualityAdapter struct {
	client *Client
}

// NewGasQualityAdapter returns an adapter backed by client.
func NewGasQualityAdapter(client *Client) *GasQualityAdapter {
	return &GasQualityAdapter{client: client}
}

func (a *GasQualityAdapter) DatasetID() string { return DatasetGasQuality }

type gasQualitySite struct {
	SiteID               string           `json:"siteId"`
	AreaName             string           `json:"areaName"`
	SiteName             string           `json:"siteName"`
	SiteGasQualityDetail []map[string]any `json:"siteGasQualityDetail"`
}

// Fetch walks [FromDate, ToDate) in 2-day chunks, POSTing each chunk and
// flattening every site's siteGasQualityDetail rows into one flat row each
// (identifier fields merged in), exactly as the upstream historic endpoint
// groups them.
func (a *GasQualityAdapter) Fetch(ctx context.Context, params ingestion.FetchParams) (ingestion.Raw, error) {
	start, err := time.Parse("2006-01-02", params.FromDate)
	if err != nil {
		return ingestion.Raw{}, fmt.Errorf("parse from_date %q: %w", params.FromDate, err)
	}

	end, err := time.Parse("2006-01-02", params.ToDate)
	if err != nil {
		return ingestion.Raw{}, fmt.Errorf("parse to_date %q: %w", params.ToDate, err)
	}

	var rows []ingestion.Record

	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, chunkDays)
		if next.After(end) {
			next = end
		}

		payload := map[string]interface{}{
			"fromDate": cur.Format("2006-01-02"),
			"toDate":   next.Format("2006-01-02"),
		}
		if len(params.SiteIDs) > 0 {
			payload["siteIds"] = params.SiteIDs
		}

		body, err := a.client.PostJSON(ctx, gasQualityHistoricURL, payload)
		if err != nil {
			return ingestion.Raw{}, fmt.Errorf("fetch gas quality chunk %s to %s: %w", payload["fromDate"], payload["toDate"], err)
		}

		var sites []gasQualitySite
		if err := json.Unmarshal(body, &sites); err != nil {
			return ingestion.Raw{}, fmt.Errorf("decode gas quality chunk response: %w", err)
		}

		for _, site := range sites {
			for _, point := range site.SiteGasQualityDetail {
				row := make(ingestion.Record, len(point)+3)
				row["siteId"] = site.SiteID
				row["areaName"] = site.AreaName
				row["siteName"] = site.SiteName

				for k, v := range point {
					row[k] = v
				}

				rows = append(rows, row)
			}
		}

		cur = next
	}

	return ingestion.Raw{Rows: rows}, nil
}

func (a *GasQualityAdapter) Parse(raw ingestion.Raw) ([]ingestion.Record, error) {
	return raw.Rows, nil
}

// Normalize explodes every numeric metric column (everything but the
// identifier/time columns) on the row into its own Observation.
func (a *GasQualityAdapter) Normalize(record ingestion.Record) ([]ingestion.Observation, error) {
	siteID, ok := record["siteId"].(string)
	if !ok || siteID == "" {
		return nil, nil
	}

	publishedTime, ok := record["publishedTime"]
	if !ok || publishedTime == nil {
		return nil, nil
	}

	ts, err := parseTime(publishedTime)
	if err != nil {
		return nil, nil
	}

	var observations []ingestion.Observation

	for column, raw := range record {
		if _, excluded := gasQualityKeyColumns[column]; excluded {
			continue
		}

		value, ok := asFloat(raw)
		if !ok {
			continue
		}

		seriesID := ingestion.BuildSeriesID(DatasetGasQuality, siteID, strings.ToUpper(column))

		observations = append(observations, ingestion.Observation{
			SeriesID:   seriesID,
			Time:       ts,
			Value:      value,
			RawPayload: record,
			Extra:      record,
		})
	}

	return observations, nil
}

// DefineSeries recovers site_id and data_item from the series_id rather than
// threading extra state, mirroring how the upstream derives both from the
// already-built series_id string.
func (a *GasQualityAdapter) DefineSeries(observations []ingestion.Observation) ([]ingestion.SeriesMeta, error) {
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

		siteID := parts[len(parts)-2]
		dataItem := parts[len(parts)-1]

		series = append(series, ingestion.SeriesMeta{
			SeriesID:       obs.SeriesID,
			DatasetID:      DatasetGasQuality,
			Source:         gasQualitySource,
			DataItem:       dataItem,
			Description:    fmt.Sprintf("%s at site %s", dataItem, siteID),
			Unit:           "UNKNOWN",
			Frequency:      "intraday",
			TimezoneSource: "UTC",
			IsActive:       true,
		})
	}

	return series, nil
}

func (a *GasQualityAdapter) TimeField() string { return "observation_time" }

func parseTime(raw interface{}) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("time value is not a string: %v", raw)
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}

func asFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}

		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
