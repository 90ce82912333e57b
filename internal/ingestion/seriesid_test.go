package ingestion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

func TestBuildSeriesID(t *testing.T) {
	tests := []struct {
		name      string
		datasetID string
		parts     []string
		want      string
	}{
		{
			name:      "simple parts",
			datasetID: "GAS_QUALITY",
			parts:     []string{"77", "CV"},
			want:      "NG_GAS_QUALITY_77_CV",
		},
		{
			name:      "strips punctuation and spaces",
			datasetID: "ENTSOG",
			parts:     []string{"Physical Flow", "IT(TAP), Entry"},
			want:      "NG_ENTSOG_PHYSICAL_FLOW_ITTAP_ENTRY",
		},
		{
			name:      "skips empty parts",
			datasetID: "INSTANTANEOUS_FLOW",
			parts:     []string{"Bacton", "", "FLOWRATE"},
			want:      "NG_INSTANTANEOUS_FLOW_BACTON_FLOWRATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ingestion.BuildSeriesID(tt.datasetID, tt.parts...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSeriesID_Deterministic(t *testing.T) {
	first := ingestion.BuildSeriesID("GAS_PUBLICATIONS", "AA123")
	second := ingestion.BuildSeriesID("GAS_PUBLICATIONS", "AA123")
	assert.Equal(t, first, second)
}
