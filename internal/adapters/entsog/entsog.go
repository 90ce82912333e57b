// Package entsog implements the ENTSOG adapter, the one National Gas-family
// dataset served from a different host (transparency.entsog.eu).
package entsog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/adapters/nationalgas"
	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

const (
	// DatasetID is the registry tag for this adapter.
	DatasetID = "ENTSOG"

	baseURL = "https://transparency.entsog.eu/api/v1/operationaldatas"
	source  = "ENTSOG"
)

// ErrMissingSelector is returned by Fetch when neither an indicator nor a
// point/direction key pair was supplied: ENTSOG's API degrades to a 500 on
// an unbounded query, so the adapter refuses to make the call at all.
var ErrMissingSelector = errors.New("entsog requires indicators, or both point_keys and direction_keys")

var requiredKeys = []string{"indicator", "pointKey", "directionKey"}

// Adapter fetches operational data points filtered by indicator and/or
// point/direction key.
type Adapter struct {
	client *nationalgas.Client
}

// NewAdapter returns an adapter backed by client. ENTSOG shares the National
// Gas HTTP client's politeness throttle and 429 handling even though it is a
// different host: both upstreams are flaky in the same way.
func NewAdapter(client *nationalgas.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) DatasetID() string { return DatasetID }

// ValidateParams implements ingestion.ParamValidator: a missing selector is a
// Configuration error the orchestrator must catch before opening a run or
// acquiring a concurrency slot, not a transient Fetch failure to retry.
func (a *Adapter) ValidateParams(params ingestion.FetchParams) error {
	if len(params.Indicators) == 0 && (len(params.PointKeys) == 0 || len(params.DirectionKeys) == 0) {
		return ErrMissingSelector
	}

	return nil
}

type entsogResponse struct {
	OperationalDatas []ingestion.Record `json:"operationaldatas"`
}

// Fetch validates the selector, builds the query string, and returns either
// the "operationaldatas" envelope or a bare array, whichever the upstream
// sent.
func (a *Adapter) Fetch(ctx context.Context, params ingestion.FetchParams) (ingestion.Raw, error) {
	if len(params.Indicators) == 0 && (len(params.PointKeys) == 0 || len(params.DirectionKeys) == 0) {
		return ingestion.Raw{}, ErrMissingSelector
	}

	query := url.Values{}
	query.Set("periodType", "day")

	if params.FromDate != "" {
		query.Set("periodFrom", params.FromDate)
	}

	if params.ToDate != "" {
		query.Set("periodTo", params.ToDate)
	}

	if len(params.OperatorKeys) > 0 {
		query.Set("operatorKey", strings.Join(params.OperatorKeys, ","))
	}

	if len(params.PointKeys) > 0 {
		query.Set("pointKey", strings.Join(params.PointKeys, ","))
	}

	if len(params.DirectionKeys) > 0 {
		query.Set("directionKey", strings.Join(params.DirectionKeys, ","))
	}

	if len(params.Indicators) > 0 {
		normalized := make([]string, len(params.Indicators))
		for i, indicator := range params.Indicators {
			normalized[i] = strings.ReplaceAll(indicator, " ", "")
		}

		query.Set("indicator", strings.Join(normalized, ","))
	}

	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	body, err := a.client.GetJSON(ctx, baseURL+"?"+query.Encode())
	if err != nil {
		return ingestion.Raw{}, fmt.Errorf("fetch entsog: %w", err)
	}

	records, err := decodeResponse(body)
	if err != nil {
		return ingestion.Raw{}, err
	}

	return ingestion.Raw{Rows: records}, nil
}

func decodeResponse(body []byte) ([]ingestion.Record, error) {
	trimmed := strings.TrimSpace(string(body))

	if strings.HasPrefix(trimmed, "[") {
		var rows []ingestion.Record
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode entsog array response: %w", err)
		}

		return rows, nil
	}

	var wrapped entsogResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode entsog response: %w", err)
	}

	return wrapped.OperationalDatas, nil
}

func (a *Adapter) Parse(raw ingestion.Raw) ([]ingestion.Record, error) {
	return raw.Rows, nil
}

// Normalize requires indicator, pointKey and directionKey all be present,
// plus a convertible value and a periodFrom timestamp.
func (a *Adapter) Normalize(record ingestion.Record) ([]ingestion.Observation, error) {
	for _, key := range requiredKeys {
		if _, ok := record[key]; !ok {
			return nil, nil
		}
	}

	indicator, _ := record["indicator"].(string)
	point, _ := record["pointKey"].(string)
	direction, _ := record["directionKey"].(string)

	periodFrom, ok := record["periodFrom"]
	if !ok || periodFrom == nil {
		return nil, nil
	}

	ts, err := parseTime(periodFrom)
	if err != nil {
		return nil, nil
	}

	value, ok := asFloat(record["value"])
	if !ok {
		return nil, nil
	}

	qualityFlag, _ := record["flowStatus"].(string)

	seriesID := ingestion.BuildSeriesID(DatasetID, indicator, point, direction)

	return []ingestion.Observation{{
		SeriesID:    seriesID,
		Time:        ts,
		Value:       value,
		QualityFlag: qualityFlag,
		RawPayload:  record,
		Extra:       record,
	}}, nil
}

// DefineSeries recovers the indicator, point and direction from the series
// id: BuildSeriesID turned the indicator's spaces into underscores, so
// rejoining the middle segments with a space is a best-effort reconstruction
// for the description field only.
func (a *Adapter) DefineSeries(observations []ingestion.Observation) ([]ingestion.SeriesMeta, error) {
	seen := make(map[string]struct{})

	series := make([]ingestion.SeriesMeta, 0, len(observations))

	for _, obs := range observations {
		if _, ok := seen[obs.SeriesID]; ok {
			continue
		}

		seen[obs.SeriesID] = struct{}{}

		parts := strings.Split(obs.SeriesID, "_")
		if len(parts) < 5 {
			continue
		}

		indicator := strings.Join(parts[2:len(parts)-2], " ")
		point := parts[len(parts)-2]
		direction := parts[len(parts)-1]

		series = append(series, ingestion.SeriesMeta{
			SeriesID:       obs.SeriesID,
			DatasetID:      DatasetID,
			Source:         source,
			DataItem:       indicator,
			Description:    fmt.Sprintf("%s at %s (%s)", indicator, point, direction),
			Unit:           "UNKNOWN",
			Frequency:      "daily",
			TimezoneSource: "Europe/Brussels",
			IsActive:       true,
		})
	}

	return series, nil
}

func (a *Adapter) TimeField() string { return "observation_time" }

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
