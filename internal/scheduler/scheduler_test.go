package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasmarket-eu/ingestor/internal/ingestion"
	"github.com/gasmarket-eu/ingestor/internal/scheduler"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, datasetID string, _ ingestion.FetchParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, datasetID)

	return nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func TestScheduler_FiresEachJobOnItsOwnInterval(t *testing.T) {
	runner := &fakeRunner{}
	jobs := []scheduler.Job{
		{Name: "intraday", Interval: 10 * time.Millisecond, Datasets: []string{"GAS_QUALITY", "INSTANTANEOUS_FLOW"}},
		{Name: "daily", Interval: 25 * time.Millisecond, Datasets: []string{"GAS_PUBLICATIONS"}},
	}

	s := scheduler.NewScheduler(runner, jobs)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	s.Run(ctx)

	require.Eventually(t, func() bool { return runner.callCount() >= 2 }, time.Second, time.Millisecond)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	runner := &fakeRunner{}
	jobs := []scheduler.Job{
		{Name: "intraday", Interval: 5 * time.Millisecond, Datasets: []string{"GAS_QUALITY"}},
	}

	s := scheduler.NewScheduler(runner, jobs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})

	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}

	assert.LessOrEqual(t, runner.callCount(), 1)
}
