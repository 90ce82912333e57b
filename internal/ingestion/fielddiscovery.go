package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const exampleValueMaxLen = 200

// fieldAccumulator tracks what DiscoverFields has seen for one field across
// every raw event scanned so far.
type fieldAccumulator struct {
	types     map[string]struct{}
	nullCount int
	example   interface{}
	hasSeen   bool
}

// DiscoverFields scans every raw event recorded for datasetID and derives a
// field catalog: per top-level key, the set of observed types, whether any
// null was seen, and a truncated example value. A field with multiple
// observed types gets a comma-joined, alphabetically sorted inferred_type.
func DiscoverFields(ctx context.Context, rawStore RawEventStore, datasetID string) ([]FieldCatalogEntry, error) {
	events, err := rawStore.FetchAllForDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("discover fields: fetch raw events: %w", err)
	}

	fields := make(map[string]*fieldAccumulator)
	order := make([]string, 0)

	for _, event := range events {
		for name, value := range event.RawPayload {
			acc, ok := fields[name]
			if !ok {
				acc = &fieldAccumulator{types: make(map[string]struct{})}
				fields[name] = acc
				order = append(order, name)
			}

			accumulateField(acc, value)
		}
	}

	sort.Strings(order)

	entries := make([]FieldCatalogEntry, 0, len(order))
	for _, name := range order {
		acc := fields[name]
		entries = append(entries, FieldCatalogEntry{
			DatasetID:    datasetID,
			FieldName:    name,
			InferredType: inferredTypeLabel(acc.types),
			Nullable:     acc.nullCount > 0,
			ExampleValue: truncateExample(acc.example),
		})
	}

	return entries, nil
}

func accumulateField(acc *fieldAccumulator, value interface{}) {
	kind := classifyType(value)
	acc.types[kind] = struct{}{}

	if kind == "null" {
		acc.nullCount++
		return
	}

	if !acc.hasSeen {
		acc.example = value
		acc.hasSeen = true
	}
}

// classifyType mirrors the Python classifier order: null, bool checked
// before numeric (a JSON bool never satisfies the numeric checks below so
// order only matters for documentation), integer, float, else string.
func classifyType(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		if strings.ContainsAny(v.String(), ".eE") {
			return "float"
		}

		return "integer"
	case int, int32, int64:
		return "integer"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}

		return "float"
	default:
		return "string"
	}
}

func inferredTypeLabel(types map[string]struct{}) string {
	if len(types) == 0 {
		return "null"
	}

	labels := make([]string, 0, len(types))
	for t := range types {
		labels = append(labels, t)
	}

	sort.Strings(labels)

	return strings.Join(labels, ",")
}

func truncateExample(value interface{}) string {
	if value == nil {
		return ""
	}

	s := fmt.Sprintf("%v", value)
	if len(s) > exampleValueMaxLen {
		return s[:exampleValueMaxLen]
	}

	return s
}
