package gie

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

// excludedKeys are the entry fields that are never treated as a variable:
// identifiers, the day boundaries already extracted, and the free-text info
// field.
var excludedKeys = map[string]struct{}{
	"name":        {},
	"code":        {},
	"url":         {},
	"updatedAt":   {},
	"gasDayStart": {},
	"gasDayEnd":   {},
	"info":        {},
}

// isNullLike mirrors the upstream's NULL_LIKE_VALUES: an empty or
// whitespace-only string is treated the same as a JSON null.
func isNullLike(value interface{}) bool {
	if value == nil {
		return true
	}

	s, ok := value.(string)

	return ok && strings.TrimSpace(s) == ""
}

// transformDocument flattens one AGSI/ALSI document's "data" array into
// country/date/variable/value rows. Nested dict-valued fields (ALSI's
// sub-metrics) are flattened to "<key>_<subkey>"; list-valued fields are
// skipped entirely, matching the upstream's behavior. A row whose value
// can't convert to a float is dropped rather than failing the whole batch.
func transformDocument(document map[string]interface{}) []ingestion.Record {
	rawData, ok := document["data"].([]interface{})
	if !ok {
		return nil
	}

	var rows []ingestion.Record

	for _, entry := range rawData {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		country, ok := fields["name"].(string)
		if !ok || country == "" {
			continue
		}

		gasDayStart, ok := fields["gasDayStart"]
		if !ok || gasDayStart == nil {
			continue
		}

		date, err := parseGasDay(gasDayStart)
		if err != nil {
			continue
		}

		quality, _ := fields["status"].(string)

		for key, value := range fields {
			if _, excluded := excludedKeys[key]; excluded {
				continue
			}

			switch v := value.(type) {
			case []interface{}:
				continue
			case map[string]interface{}:
				for subKey, subValue := range v {
					row, ok := buildRow(country, date, key+"_"+subKey, subValue, quality)
					if ok {
						rows = append(rows, row)
					}
				}
			default:
				row, ok := buildRow(country, date, key, value, quality)
				if ok {
					rows = append(rows, row)
				}
			}
		}
	}

	return rows
}

func buildRow(country string, date time.Time, variable string, value interface{}, quality string) (ingestion.Record, bool) {
	if isNullLike(value) {
		return nil, false
	}

	numeric, ok := asFloat(value)
	if !ok {
		return nil, false
	}

	return ingestion.Record{
		"country":  country,
		"date":     date,
		"variable": variable,
		"value":    numeric,
		"quality":  quality,
	}, true
}

func parseGasDay(raw interface{}) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("gasDayStart is not a string: %v", raw)
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized gasDayStart format: %q", s)
}

// normalizeGIERecord converts one transformed row into an Observation
// carrying a GIESeries instead of a flat SeriesID: GIE series are resolved
// to an asset/series pair inline, at insert time.
func normalizeGIERecord(record ingestion.Record, source string) ([]ingestion.Observation, error) {
	country, ok := record["country"].(string)
	if !ok || country == "" {
		return nil, nil
	}

	date, ok := record["date"].(time.Time)
	if !ok {
		return nil, nil
	}

	variable, ok := record["variable"].(string)
	if !ok || variable == "" {
		return nil, nil
	}

	value, ok := record["value"].(float64)
	if !ok {
		return nil, nil
	}

	quality, _ := record["quality"].(string)

	return []ingestion.Observation{{
		Time:        date,
		Value:       value,
		QualityFlag: quality,
		RawPayload:  record,
		Extra:       record,
		GIE: &ingestion.GIESeries{
			AssetName:    country,
			AssetLevel:   "Country",
			AssetQuality: quality,
			Variable:     variable,
			Source:       source,
		},
	}}, nil
}

func asFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}

		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	case bool:
		return 0, false
	default:
		return 0, false
	}
}
