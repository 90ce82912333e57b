package nationalgas

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

const (
	// DatasetInstantaneousFlow is the registry tag for this adapter.
	DatasetInstantaneousFlow = "INSTANTANEOUS_FLOW"

	instantaneousFlowURL    = "https://api.nationalgas.com/operationaldata/v1/instantaneousflow/sites"
	instantaneousFlowPrefix = "NG_INSTANTANEOUS_FLOW_"
)

type instantaneousFlowResponse struct {
	InstantaneousFlow []struct {
		Sites []struct {
			SiteName      string `json:"siteName"`
			SiteGasDetail []struct {
				ApplicableAt     string  `json:"applicableAt"`
				FlowRate         float64 `json:"flowRate"`
				QualityIndicator *string `json:"qualityIndicator"`
				ScheduleTime     string  `json:"scheduleTime"`
			} `json:"siteGasDetail"`
		} `json:"sites"`
	} `json:"instantaneousFlow"`
}

// InstantaneousFlowAdapter fetches the live site flow-rate snapshot. There
// is no date range: the upstream endpoint always returns the current state.
type InstantaneousFlowAdapter struct {
	client *Client
}

// NewInstantaneousFlowAdapter returns an adapter backed by client.
func NewInstantaneousFlowAdapter(client *Client) *InstantaneousFlowAdapter {
	return &InstantaneousFlowAdapter{client: client}
}

func (a *InstantaneousFlowAdapter) DatasetID() string { return DatasetInstantaneousFlow }

func (a *InstantaneousFlowAdapter) Fetch(ctx context.Context, _ ingestion.FetchParams) (ingestion.Raw, error) {
	body, err := a.client.GetJSON(ctx, instantaneousFlowURL)
	if err != nil {
		return ingestion.Raw{}, fmt.Errorf("fetch instantaneous flow: %w", err)
	}

	var resp instantaneousFlowResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ingestion.Raw{}, fmt.Errorf("decode instantaneous flow response: %w", err)
	}

	var rows []ingestion.Record

	for _, block := range resp.InstantaneousFlow {
		for _, site := range block.Sites {
			for _, detail := range site.SiteGasDetail {
				row := ingestion.Record{
					"siteName":         site.SiteName,
					"applicableAt":     detail.ApplicableAt,
					"flowRate":         detail.FlowRate,
					"qualityIndicator": detail.QualityIndicator,
					"scheduleTime":     detail.ScheduleTime,
				}
				rows = append(rows, row)
			}
		}
	}

	return ingestion.Raw{Rows: rows}, nil
}

func (a *InstantaneousFlowAdapter) Parse(raw ingestion.Raw) ([]ingestion.Record, error) {
	return raw.Rows, nil
}

func (a *InstantaneousFlowAdapter) Normalize(record ingestion.Record) ([]ingestion.Observation, error) {
	siteName, ok := record["siteName"].(string)
	if !ok || siteName == "" {
		return nil, nil
	}

	applicableAt, ok := record["applicableAt"]
	if !ok || applicableAt == nil {
		return nil, nil
	}

	ts, err := parseTime(applicableAt)
	if err != nil {
		return nil, nil
	}

	flowRate, ok := asFloat(record["flowRate"])
	if !ok {
		return nil, nil
	}

	qualityFlag := ""
	if q, ok := record["qualityIndicator"].(*string); ok && q != nil {
		qualityFlag = *q
	} else if q, ok := record["qualityIndicator"].(string); ok {
		qualityFlag = q
	}

	seriesID := ingestion.BuildSeriesID(DatasetInstantaneousFlow, siteName, "FLOWRATE")

	return []ingestion.Observation{{
		SeriesID:    seriesID,
		Time:        ts,
		Value:       flowRate,
		QualityFlag: qualityFlag,
		RawPayload:  record,
		Extra:       record,
	}}, nil
}

func (a *InstantaneousFlowAdapter) DefineSeries(observations []ingestion.Observation) ([]ingestion.SeriesMeta, error) {
	seen := make(map[string]struct{})

	series := make([]ingestion.SeriesMeta, 0, len(observations))

	for _, obs := range observations {
		if _, ok := seen[obs.SeriesID]; ok {
			continue
		}

		seen[obs.SeriesID] = struct{}{}

		if len(obs.SeriesID) <= len(instantaneousFlowPrefix) {
			continue
		}

		site := obs.SeriesID[len(instantaneousFlowPrefix):]

		const suffix = "_FLOWRATE"
		if len(site) <= len(suffix) {
			continue
		}

		site = site[:len(site)-len(suffix)]

		series = append(series, ingestion.SeriesMeta{
			SeriesID:       obs.SeriesID,
			DatasetID:      DatasetInstantaneousFlow,
			Source:         gasQualitySource,
			DataItem:       "flowRate",
			Description:    fmt.Sprintf("Instantaneous Flow at %s", site),
			Unit:           "UNKNOWN",
			Frequency:      "intraday",
			TimezoneSource: "Europe/London",
			IsActive:       true,
		})
	}

	return series, nil
}

func (a *InstantaneousFlowAdapter) TimeField() string { return "observation_time" }
