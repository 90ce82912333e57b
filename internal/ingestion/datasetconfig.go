package ingestion

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultDatasetConfigPath is used when INGESTION_DATASET_CONFIG_PATH is unset.
const DefaultDatasetConfigPath = "datasets.yaml"

// DatasetConfigPathEnvVar names the environment variable carrying an
// override path for the dataset configuration file.
const DatasetConfigPathEnvVar = "INGESTION_DATASET_CONFIG_PATH"

// DatasetEntry is one dataset's retention and validation override, as
// authored in the YAML config file. Validation fields are pointers so an
// absent key in YAML is distinguishable from an explicit zero value.
type DatasetEntry struct {
	Delete         *DeleteConfigYAML `yaml:"delete_policy"`
	MinRowCount    *int              `yaml:"min_row_count"`
	RequiredFields []string          `yaml:"required_fields"`
}

// DeleteConfigYAML is the YAML shape of DeleteConfig.
type DeleteConfigYAML struct {
	Strategy   string `yaml:"strategy"`
	WindowDays int    `yaml:"window_days"`
}

// DatasetConfigFile is the top-level YAML document: dataset_id -> config.
type DatasetConfigFile struct {
	Datasets map[string]DatasetEntry `yaml:"datasets"`
}

// DatasetConfigLoader loads retention and validation overrides per dataset.
// Loading an absent file or an unconfigured dataset both yield an empty
// config, per the orchestrator's "absent config yields an empty config"
// step.
type DatasetConfigLoader struct {
	datasets map[string]DatasetEntry
}

// LoadDatasetConfig reads path and returns a loader. A missing file is not
// an error: the loader is empty and every dataset falls back to an empty
// config.
func LoadDatasetConfig(path string) (*DatasetConfigLoader, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &DatasetConfigLoader{datasets: map[string]DatasetEntry{}}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("load dataset config %s: %w", path, err)
	}

	var doc DatasetConfigFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse dataset config %s: %w", path, err)
	}

	if doc.Datasets == nil {
		doc.Datasets = map[string]DatasetEntry{}
	}

	return &DatasetConfigLoader{datasets: doc.Datasets}, nil
}

// DeleteConfigFor returns the retention policy for datasetID, or a
// zero-value DeleteConfig (pruning disabled) if unconfigured.
func (l *DatasetConfigLoader) DeleteConfigFor(datasetID string) DeleteConfig {
	entry, ok := l.datasets[datasetID]
	if !ok || entry.Delete == nil {
		return DeleteConfig{}
	}

	return DeleteConfig{Strategy: entry.Delete.Strategy, WindowDays: entry.Delete.WindowDays}
}

// ValidationOverrideFor returns the validation rules configured for
// datasetID, merged over the adapter's own ValidationConfig: a
// dataset-config field wins when set, otherwise the adapter's value is kept.
func (l *DatasetConfigLoader) ValidationOverrideFor(datasetID string, base ValidationConfig) ValidationConfig {
	entry, ok := l.datasets[datasetID]
	if !ok {
		return base
	}

	if entry.MinRowCount != nil {
		base.MinRowCount = *entry.MinRowCount
	}

	if len(entry.RequiredFields) > 0 {
		base.RequiredFields = entry.RequiredFields
	}

	return base
}
