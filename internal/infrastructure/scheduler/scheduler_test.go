package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"15 20 * * *", false},
		{"0 0 * * *", false},
		{"*/30 9-17 * * 1-5", false},
		{"0,30 8 1 1-12/3 *", false},
		{"15 20 * *", true},
		{"60 0 * * *", true},
		{"0 24 * * *", true},
		{"0 0 0 * *", true},
		{"*/0 * * * *", true},
		{"5-1 * * * *", true},
		{"a * * * *", true},
	}
	for _, tt := range tests {
		_, err := ParseCronExpression(tt.expr)
		if tt.wantErr {
			assert.Error(t, err, tt.expr)
		} else {
			assert.NoError(t, err, tt.expr)
		}
	}
}

func TestCronExpression_NextInKolkata(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	ce := MustParseCronExpression("15 20 * * *")

	before := time.Date(2026, 10, 14, 19, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 10, 14, 20, 15, 0, 0, loc), ce.Next(before))

	at := time.Date(2026, 10, 14, 20, 15, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 10, 15, 20, 15, 0, 0, loc), ce.Next(at), "strictly after")

	utc := time.Date(2026, 10, 14, 14, 44, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 14, 20, 15, 0, 0, loc), ce.Next(utc.In(loc)))
}

func TestCronExpression_Weekdays(t *testing.T) {
	ce := MustParseCronExpression("0 9 * * 1-5")
	sat := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	next := ce.Next(sat)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, "0 9 * * 1-5", ce.String())
}

type fakeJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
	panic bool
}

func (j *fakeJob) Name() string        { return j.name }
func (j *fakeJob) Description() string { return "test job" }
func (j *fakeJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

type everyTick struct{}

func (everyTick) Next(t time.Time) time.Time { return t }
func (everyTick) String() string             { return "every tick" }

func TestScheduler_RegisterErrors(t *testing.T) {
	s := New(Config{})
	assert.ErrorIs(t, s.Register(nil, everyTick{}), ErrNilJob)
	assert.ErrorIs(t, s.Register(&fakeJob{name: "a"}, nil), ErrNilSchedule)
	require.NoError(t, s.Register(&fakeJob{name: "a"}, everyTick{}))
	assert.ErrorIs(t, s.Register(&fakeJob{name: "a"}, everyTick{}), ErrJobAlreadyExists)
	assert.Error(t, s.RegisterCron(&fakeJob{name: "b"}, "bad"))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(Config{})
	ok := &fakeJob{name: "ok"}
	failing := &fakeJob{name: "failing", err: errors.New("nope")}
	panicking := &fakeJob{name: "panicking", panic: true}
	require.NoError(t, s.RegisterCron(ok, "0 0 * * *"))
	require.NoError(t, s.RegisterCron(failing, "0 0 * * *"))
	require.NoError(t, s.RegisterCron(panicking, "0 0 * * *"))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "nope")

	_, err = s.RunNow(context.Background(), "panicking")
	assert.ErrorContains(t, err, "job panic")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	info, err := s.GetJobInfo("failing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.FailCount)
	assert.Equal(t, "0 0 * * *", info.Schedule)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond})
	job := &fakeJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, everyTick{}))

	var mu sync.Mutex
	var results []JobResult
	s.OnJobComplete(func(r JobResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load(), "a running job is not started again")

	close(job.block)
	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, results)
	assert.Equal(t, "slow", results[0].JobName)
}

func TestScheduler_JobTimeout(t *testing.T) {
	s := New(Config{JobTimeout: 10 * time.Millisecond})
	job := &fakeJob{name: "stuck", block: make(chan struct{})}
	require.NoError(t, s.Register(job, everyTick{}))

	_, err := s.RunNow(context.Background(), "stuck")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
