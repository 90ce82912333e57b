package ingestion

import "strings"

var seriesIDStripper = strings.NewReplacer(",", "", "(", "", ")", "", " ", "_")

// BuildSeriesID constructs the canonical series_id: NG_<DATASET_ID>_<PART1>_
// <PART2>_... Each part is uppercased, has ",", "(", ")" stripped and spaces
// replaced with underscores, then empty parts are skipped. This is a total,
// deterministic function: the same inputs always yield the same string.
func BuildSeriesID(datasetID string, parts ...string) string {
	components := make([]string, 0, len(parts)+1)
	components = append(components, "NG", datasetID)

	for _, part := range parts {
		cleaned := seriesIDStripper.Replace(strings.ToUpper(strings.TrimSpace(part)))
		if cleaned == "" {
			continue
		}

		components = append(components, cleaned)
	}

	return strings.Join(components, "_")
}
