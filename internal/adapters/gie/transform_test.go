package gie

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformDocument_FlattensScalarAndNestedFields(t *testing.T) {
	document := map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{
				"name":        "Germany",
				"code":        "DE",
				"gasDayStart": "2024-03-01",
				"status":      "Actual",
				"gasInStorage": 85.5,
				"injection":   "",
				"trend": map[string]interface{}{
					"full":  "42.1",
					"empty": nil,
				},
				"tags": []interface{}{"a", "b"},
			},
		},
	}

	rows := transformDocument(document)

	byVariable := make(map[string]map[string]interface{})
	for _, row := range rows {
		byVariable[row["variable"].(string)] = row
	}

	require.Contains(t, byVariable, "gasInStorage")
	assert.Equal(t, 85.5, byVariable["gasInStorage"]["value"])
	assert.Equal(t, "Germany", byVariable["gasInStorage"]["country"])
	assert.Equal(t, "Actual", byVariable["gasInStorage"]["quality"])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), byVariable["gasInStorage"]["date"])

	require.Contains(t, byVariable, "trend_full")
	assert.Equal(t, 42.1, byVariable["trend_full"]["value"])

	assert.NotContains(t, byVariable, "trend_empty") // null-like value dropped
	assert.NotContains(t, byVariable, "injection")   // empty-string value dropped
	assert.NotContains(t, byVariable, "tags")        // list-valued field skipped
	assert.NotContains(t, byVariable, "name")        // excluded key
}

func TestTransformDocument_SkipsEntryMissingGasDayStart(t *testing.T) {
	document := map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"name": "France", "gasInStorage": 50.0},
		},
	}

	rows := transformDocument(document)
	assert.Empty(t, rows)
}
