package ingestion

import "context"

// Adapter is a stateless per-dataset translator between an upstream API and
// canonical observations. Adapters must not touch the database, must not
// retry, and must not mutate shared state — the orchestrator owns all of
// that. Violations of this contract are a programming error caught by
// review, not at runtime.
type Adapter interface {
	// DatasetID is the stable tag this adapter handles, e.g. "GAS_QUALITY".
	DatasetID() string

	// Fetch performs the single outbound call to the upstream API. The
	// orchestrator retries Fetch itself; Fetch must not retry internally.
	Fetch(ctx context.Context, params FetchParams) (Raw, error)

	// Parse converts a Raw payload into an ordered list of row records.
	// Empty input yields empty output. A Raw of the wrong shape for this
	// adapter (e.g. a document where rows were expected) is a programming
	// error and should be returned as one.
	Parse(raw Raw) ([]Record, error)

	// Normalize expands one Record into zero, one, or many Observations.
	// A record with a non-numeric or missing value is filtered out, never
	// an error.
	Normalize(record Record) ([]Observation, error)

	// DefineSeries returns deduplicated canonical series metadata derived
	// from what was just normalized. GIE adapters return nil: their series
	// are created inline by the relational insert path.
	DefineSeries(observations []Observation) ([]SeriesMeta, error)

	// TimeField names the time attribute consulted by date-range validation
	// and the delete policy.
	TimeField() string
}

// Validatable is implemented by adapters that declare validation rules.
// Adapters without rules simply don't implement it — ValidationConfigFor
// treats that as an empty configuration.
type Validatable interface {
	ValidationConfig() ValidationConfig
}

// ValidationConfigFor returns the adapter's declared validation rules, or a
// zero-value ValidationConfig (no rules) if the adapter doesn't implement
// Validatable.
func ValidationConfigFor(adapter Adapter) ValidationConfig {
	if v, ok := adapter.(Validatable); ok {
		return v.ValidationConfig()
	}

	return ValidationConfig{}
}

// ParamValidator is implemented by adapters whose Fetch depends on
// caller-supplied parameters that can be checked without an upstream call
// (e.g. ENTSOG's indicator/point/direction selector). Run calls
// ValidateParams before opening a run journal entry or acquiring a
// concurrency slot, so a malformed request is a Configuration error: it
// surfaces immediately, with no run opened and no retry.
type ParamValidator interface {
	ValidateParams(params FetchParams) error
}

// validateParams runs the adapter's ValidateParams check, if it implements
// ParamValidator. Adapters without parameter preconditions simply don't
// implement it.
func validateParams(adapter Adapter, params FetchParams) error {
	if v, ok := adapter.(ParamValidator); ok {
		return v.ValidateParams(params)
	}

	return nil
}
