package ingestion

import (
	"fmt"
	"time"
)

// DateRange bounds a date_range validation rule. Nil bounds are unchecked.
type DateRange struct {
	MinDate *time.Time
	MaxDate *time.Time
}

// ValidationConfig is the set of optional rules an adapter declares for its
// normalized batch. A zero-value ValidationConfig passes everything.
type ValidationConfig struct {
	MinRowCount    int
	RequiredFields []string
	DateRange      *DateRange
}

// ValidationError reports the first rule violated, with enough context to
// diagnose it: the rule name and, for per-record rules, the record's index
// in the normalized batch.
type ValidationError struct {
	Rule    string
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("validation failed: rule=%s index=%d: %s", e.Rule, e.Index, e.Message)
	}

	return fmt.Sprintf("validation failed: rule=%s: %s", e.Rule, e.Message)
}

// Validator runs adapter-declared rules over a normalized batch. On the
// first violation it fails fast with a *ValidationError; no rules means it
// always passes.
type Validator struct{}

// NewValidator returns a ready-to-use Validator. It holds no state.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks observations against config, in the order: min_row_count,
// required_fields, date_range.
func (v *Validator) Validate(observations []Observation, config ValidationConfig) error {
	if config.MinRowCount > 0 && len(observations) < config.MinRowCount {
		return &ValidationError{
			Rule:  "min_row_count",
			Index: -1,
			Message: fmt.Sprintf(
				"min_row_count=%d but normalized batch has %d rows", config.MinRowCount, len(observations),
			),
		}
	}

	if len(config.RequiredFields) > 0 {
		if err := validateRequiredFields(observations, config.RequiredFields); err != nil {
			return err
		}
	}

	if config.DateRange != nil {
		if err := validateDateRange(observations, *config.DateRange); err != nil {
			return err
		}
	}

	return nil
}

func validateRequiredFields(observations []Observation, required []string) error {
	for i, obs := range observations {
		for _, field := range required {
			value, ok := obs.Extra[field]
			if !ok || value == nil {
				return &ValidationError{
					Rule:    "required_fields",
					Index:   i,
					Message: fmt.Sprintf("missing required field %q", field),
				}
			}
		}
	}

	return nil
}

func validateDateRange(observations []Observation, dateRange DateRange) error {
	for i, obs := range observations {
		t := obs.Time.UTC()

		if dateRange.MinDate != nil && t.Before(dateRange.MinDate.UTC()) {
			return &ValidationError{
				Rule:    "date_range",
				Index:   i,
				Message: fmt.Sprintf("%s is before min_date %s", t, dateRange.MinDate.UTC()),
			}
		}

		if dateRange.MaxDate != nil && t.After(dateRange.MaxDate.UTC()) {
			return &ValidationError{
				Rule:    "date_range",
				Index:   i,
				Message: fmt.Sprintf("%s is after max_date %s", t, dateRange.MaxDate.UTC()),
			}
		}
	}

	return nil
}
