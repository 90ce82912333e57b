package ingestion_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

func TestValidator_NoRules_Passes(t *testing.T) {
	v := ingestion.NewValidator()
	err := v.Validate(nil, ingestion.ValidationConfig{})
	require.NoError(t, err)
}

func TestValidator_MinRowCount(t *testing.T) {
	v := ingestion.NewValidator()
	obs := []ingestion.Observation{{SeriesID: "a"}, {SeriesID: "b"}, {SeriesID: "c"}}

	err := v.Validate(obs, ingestion.ValidationConfig{MinRowCount: 10})

	var valErr *ingestion.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "min_row_count", valErr.Rule)
	assert.Contains(t, valErr.Error(), "min_row_count=10")
}

func TestValidator_RequiredFields_MissingAtIndex(t *testing.T) {
	v := ingestion.NewValidator()
	obs := []ingestion.Observation{
		{SeriesID: "a", Extra: map[string]interface{}{"pub_id": "X1", "applicable_for": "2024-01-01"}},
		{SeriesID: "b", Extra: map[string]interface{}{"pub_id": "X2"}},
	}

	err := v.Validate(obs, ingestion.ValidationConfig{RequiredFields: []string{"pub_id", "applicable_for"}})

	var valErr *ingestion.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "required_fields", valErr.Rule)
	assert.Equal(t, 1, valErr.Index)
}

func TestValidator_DateRange(t *testing.T) {
	v := ingestion.NewValidator()
	minDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	obs := []ingestion.Observation{
		{SeriesID: "a", Time: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	err := v.Validate(obs, ingestion.ValidationConfig{DateRange: &ingestion.DateRange{MinDate: &minDate, MaxDate: &maxDate}})

	var valErr *ingestion.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "date_range", valErr.Rule)
}
