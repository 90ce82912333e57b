package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedDeleteStrategy is returned when DeleteConfig.Strategy names
// a strategy that isn't registered.
var ErrUnsupportedDeleteStrategy = errors.New("unsupported delete strategy")

// DeleteConfig is the retention policy declared for a dataset. An empty
// Strategy disables pruning for that dataset.
type DeleteConfig struct {
	Strategy   string
	WindowDays int
}

// RetentionDeleter is the flat-variant store operation the delete policy
// drives: delete observations of this dataset's series older than cutoff.
type RetentionDeleter interface {
	DeleteOlderThan(ctx context.Context, datasetID string, cutoff time.Time) (int64, error)
}

// deleteStrategy computes a cutoff from now and windowDays and applies it
// via deleter, returning the number of rows removed.
type deleteStrategy func(ctx context.Context, deleter RetentionDeleter, datasetID string, windowDays int, now time.Time) (int64, error)

// deleteStrategies is the extensible strategy registry mentioned in the
// component design: "last_n_days" is the only strategy the upstream sources
// currently need, but the selector is keyed by name so new ones can be added
// without touching the orchestrator.
var deleteStrategies = map[string]deleteStrategy{ //nolint:gochecknoglobals
	"last_n_days": lastNDays,
}

func lastNDays(ctx context.Context, deleter RetentionDeleter, datasetID string, windowDays int, now time.Time) (int64, error) {
	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	return deleter.DeleteOlderThan(ctx, datasetID, cutoff)
}

// ApplyDeletePolicy runs the configured retention strategy for a flat-variant
// dataset. An empty Strategy or zero WindowDays is a no-op (returns 0, nil),
// matching the Python engine's "absent config yields an empty config"
// behavior.
func ApplyDeletePolicy(
	ctx context.Context, deleter RetentionDeleter, datasetID string, config DeleteConfig, now time.Time,
) (int64, error) {
	if config.Strategy == "" || config.WindowDays == 0 {
		return 0, nil
	}

	strategy, ok := deleteStrategies[config.Strategy]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedDeleteStrategy, config.Strategy)
	}

	return strategy(ctx, deleter, datasetID, config.WindowDays, now)
}

// GIERollingDeleter is the relational-variant store operation the GIE delete
// specialization drives: delete energy.daily rows for this source whose
// value_date falls on or after cutoff, so the subsequent insert re-populates
// the same rolling window.
type GIERollingDeleter interface {
	DeleteRollingWindow(ctx context.Context, source string, cutoff time.Time) (int64, error)
}

// ApplyGIEDeletePolicy implements the GIE specialization of the delete
// policy: a rolling-window overwrite keyed by source rather than dataset_id,
// and cutoff is inclusive (value_date >= cutoff) rather than exclusive.
func ApplyGIEDeletePolicy(
	ctx context.Context, deleter GIERollingDeleter, source string, windowDays int, now time.Time,
) (int64, error) {
	if windowDays == 0 {
		return 0, nil
	}

	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	return deleter.DeleteRollingWindow(ctx, source, cutoff)
}
