package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtreporter/internal/config"
	"vtreporter/internal/storage"
	logx "vtreporter/pkg/logx"
)

type fakeRunStore struct {
	mu      sync.Mutex
	entries []storage.RunEntry
	failAll bool
}

func (f *fakeRunStore) AppendRun(_ context.Context, e storage.RunEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("disk full")
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRunStore) RecentRuns(_ context.Context, n int) ([]storage.RunEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("disk full")
	}
	out := make([]storage.RunEntry, 0, n)
	for i := len(f.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

func (f *fakeRunStore) Close() error { return nil }

func noopJob(context.Context) (RunInfo, error) { return RunInfo{}, nil }

func TestCronModeSkipsInvalidExpressions(t *testing.T) {
	cfg := config.ScheduleConfig{
		Mode:           config.ModeCron,
		CronExpression: "0 */4 * * *; definitely not cron; 30 9 * * *",
	}
	s := New(cfg, noopJob, nil, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, []string{"0 */4 * * *", "30 9 * * *"}, s.Expressions())
}

func TestCronModeAllInvalidStaysIdle(t *testing.T) {
	cfg := config.ScheduleConfig{Mode: config.ModeCron, CronExpression: "nope; also nope"}
	s := New(cfg, noopJob, nil, logx.Nop())
	err := s.Start(context.Background())
	defer s.Stop()

	assert.ErrorIs(t, err, ErrNoValidExpressions)
	assert.Empty(t, s.Expressions())
}

func TestIntervalDelayUnits(t *testing.T) {
	tests := []struct {
		unit  string
		value int
		want  time.Duration
	}{
		{config.UnitMinutes, 15, 15 * time.Minute},
		{config.UnitHours, 2, 2 * time.Hour},
		{config.UnitDaily, 1, 24 * time.Hour},
		{"fortnights", 3, 5 * time.Minute},
	}
	for _, tt := range tests {
		s := New(config.ScheduleConfig{Mode: config.ModeInterval, Unit: tt.unit, Value: tt.value}, noopJob, nil, logx.Nop())
		assert.Equal(t, tt.want, s.intervalDelay(), "unit %q", tt.unit)
	}
}

func TestIntervalRearmsAfterCompletion(t *testing.T) {
	const jobTook = 30 * time.Millisecond

	var (
		mu     sync.Mutex
		starts []time.Time
	)
	done := make(chan struct{})
	job := func(context.Context) (RunInfo, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		n := len(starts)
		mu.Unlock()
		time.Sleep(jobTook)
		if n == 3 {
			close(done)
		}
		return RunInfo{}, nil
	}

	// Zero value means zero base delay, so consecutive starts are spaced by
	// the job duration alone if and only if the timer is re-armed after
	// completion rather than from a fixed epoch.
	s := New(config.ScheduleConfig{Mode: config.ModeInterval, Unit: config.UnitMinutes, Value: 0}, job, nil, logx.Nop())
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never reached three runs")
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(starts), 3)
	for i := 1; i < 3; i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, jobTook,
			"run %d started %v after run %d; next run must be armed only after the previous completes", i, gap, i-1)
	}
}

func TestRunJobRecordsFailure(t *testing.T) {
	rs := &fakeRunStore{}
	job := func(context.Context) (RunInfo, error) {
		return RunInfo{}, errors.New("smtp down")
	}
	s := New(config.ScheduleConfig{Mode: config.ModeInterval, Unit: config.UnitMinutes, Value: 5}, job, rs, logx.Nop())

	s.runJob(context.Background(), "interval")

	runs := s.RecentRuns(context.Background(), 10)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].OK)
	assert.Equal(t, "interval", runs[0].Trigger)
	assert.Contains(t, runs[0].Error, "smtp down")

	rs.mu.Lock()
	defer rs.mu.Unlock()
	require.Len(t, rs.entries, 1)
	assert.False(t, rs.entries[0].OK)
}

func TestRunJobRecordsSuccessDetails(t *testing.T) {
	job := func(context.Context) (RunInfo, error) {
		return RunInfo{RowsShown: 12, Matched: 40, Recipients: 3}, nil
	}
	s := New(config.ScheduleConfig{Mode: config.ModeInterval, Unit: config.UnitMinutes, Value: 5}, job, nil, logx.Nop())

	s.runJob(context.Background(), "cron")

	runs := s.RecentRuns(context.Background(), 1)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].OK)
	assert.Equal(t, 12, runs[0].RowsShown)
	assert.Equal(t, 40, runs[0].Matched)
	assert.Equal(t, 3, runs[0].Recipients)
}

func TestHistoryRingCapsAtFifty(t *testing.T) {
	var n int
	job := func(context.Context) (RunInfo, error) {
		n++
		return RunInfo{RowsShown: n}, nil
	}
	s := New(config.ScheduleConfig{Mode: config.ModeInterval, Unit: config.UnitMinutes, Value: 5}, job, nil, logx.Nop())

	for i := 0; i < historySize+10; i++ {
		s.runJob(context.Background(), "interval")
	}

	runs := s.RecentRuns(context.Background(), 0)
	require.Len(t, runs, historySize)
	// Newest first, oldest ten evicted.
	assert.Equal(t, historySize+10, runs[0].RowsShown)
	assert.Equal(t, 11, runs[len(runs)-1].RowsShown)
}

func TestRecentRunsFallsBackToRingOnStoreError(t *testing.T) {
	rs := &fakeRunStore{failAll: true}
	s := New(config.ScheduleConfig{Mode: config.ModeInterval, Unit: config.UnitMinutes, Value: 5}, noopJob, rs, logx.Nop())

	s.runJob(context.Background(), "interval")

	runs := s.RecentRuns(context.Background(), 5)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].OK)
}

func TestUpcomingTodayLiteralFieldsOnly(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	exprs := []string{
		"30 9,14 * * *", // 09:30 already past, 14:30 upcoming
		"0 */4 * * *",   // stepped hour field is not literal, contributes nothing
	}
	got := UpcomingToday(exprs, now, 10)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC), got[0])
}

func TestUpcomingTodaySortsDedupsAndCaps(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	exprs := []string{
		"0 18,6,12 * * *",
		"0 12 * * *", // duplicate of 12:00 above
	}
	got := UpcomingToday(exprs, now, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 6, got[0].Hour())
	assert.Equal(t, 12, got[1].Hour())
}

func TestUpcomingTodayExpandsCommaListCombinations(t *testing.T) {
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	got := UpcomingToday([]string{"0,30 9,18 * * *"}, now, 10)
	require.Len(t, got, 4)
	want := []string{"09:00", "09:30", "18:00", "18:30"}
	for i, at := range got {
		assert.Equal(t, want[i], at.Format("15:04"))
	}
}

func TestUpcomingTodayIgnoresOutOfRangeValues(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	got := UpcomingToday([]string{"75 9 * * *", "30 27 * * *"}, now, 10)
	assert.Empty(t, got)
}

func TestUpcomingTodayManyExpressions(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var exprs []string
	for h := 1; h <= 20; h++ {
		exprs = append(exprs, fmt.Sprintf("0 %d * * *", h))
	}
	got := UpcomingToday(exprs, now, 10)
	require.Len(t, got, 10)
	assert.Equal(t, 1, got[0].Hour())
	assert.Equal(t, 10, got[9].Hour())
}
