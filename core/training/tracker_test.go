package training_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/training"
	testutil "github.com/purelifecenter/portal/tests"
)

// flakyRemote fails the next `failures` saves with err.
type flakyRemote struct {
	training.Remote

	mu       sync.Mutex
	failures int
	err      error
	saves    int
}

func (r *flakyRemote) SaveProgress(ctx context.Context, lessonID string, sp training.SaveProgress) (training.Progress, error) {
	r.mu.Lock()
	r.saves++
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return training.Progress{}, r.err
	}
	r.mu.Unlock()
	return r.Remote.SaveProgress(ctx, lessonID, sp)
}

func (r *flakyRemote) fail(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures, r.err, r.saves = n, err, 0
}

type memBackup struct {
	mu   sync.Mutex
	rows map[string]training.Progress
}

func newMemBackup() *memBackup {
	return &memBackup{rows: map[string]training.Progress{}}
}

func (b *memBackup) Load(userID, lessonID string) (training.Progress, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.rows[userID+"/"+lessonID]
	return p, ok, nil
}

func (b *memBackup) Store(p training.Progress) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[p.UserID+"/"+p.LessonID] = p
	return nil
}

func (b *memBackup) Clear(userID, lessonID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rows, userID+"/"+lessonID)
	return nil
}

func (b *memBackup) has(userID, lessonID string) bool {
	_, ok, _ := b.Load(userID, lessonID)
	return ok
}

func newTracker(t *testing.T, f *fixture, backup training.Backup) (*training.Tracker, *flakyRemote) {
	t.Helper()
	remote := &flakyRemote{Remote: training.NewServiceRemote(f.svc, f.member.ID)}
	tr := training.NewTracker(f.member.ID, remote, backup, testutil.NewLogger(), training.TrackerOptions{
		InitialBackoff: time.Millisecond,
	})
	require.NoError(t, tr.Open(context.Background(), f.lessons[0].ID))
	return tr, remote
}

func TestTracker_Tick(t *testing.T) {
	f := setup(t)
	backup := newMemBackup()
	tr, _ := newTracker(t, f, backup)

	assert.Equal(t, f.lessons[0].ID, tr.Lesson().ID)
	require.NoError(t, tr.Tick(1500*time.Millisecond, 1))
	require.NoError(t, tr.Tick(1500*time.Millisecond, 3))
	assert.Equal(t, 3, tr.Progress().WatchedSeconds, "sub-second time is carried over")
	assert.Equal(t, 3, tr.Progress().PositionSeconds)
	assert.True(t, backup.has(f.member.ID, f.lessons[0].ID), "every tick is backed up")

	require.NoError(t, tr.Tick(0, -1))
	assert.Equal(t, 3, tr.Progress().PositionSeconds, "negative positions are ignored")
	assert.False(t, tr.CanAdvance())
	assert.Equal(t, training.ErrLessonLocked, tr.Next(context.Background(), f.lessons[1].ID))
}

func TestTracker_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient failures", func(t *testing.T) {
		f := setup(t)
		backup := newMemBackup()
		tr, remote := newTracker(t, f, backup)
		require.NoError(t, tr.Tick(20*time.Second, 20))

		remote.fail(2, errors.New("connection refused"))
		require.NoError(t, tr.Save(ctx))
		assert.Equal(t, 3, remote.saves)
		assert.False(t, backup.has(f.member.ID, f.lessons[0].ID), "confirmed saves clear the backup")

		p, err := f.svc.GetProgress(ctx, f.member.ID, f.lessons[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 20, p.WatchedSeconds)

		remote.fail(0, nil)
		require.NoError(t, tr.Save(ctx))
		assert.Zero(t, remote.saves, "nothing to save")
	})

	t.Run("keeps the backup after the last attempt", func(t *testing.T) {
		f := setup(t)
		backup := newMemBackup()
		tr, remote := newTracker(t, f, backup)
		require.NoError(t, tr.Tick(30*time.Second, 30))

		remote.fail(10, errors.New("portal unavailable"))
		err := tr.Save(ctx)
		require.Error(t, err)
		assert.Equal(t, 3, remote.saves)
		require.True(t, backup.has(f.member.ID, f.lessons[0].ID))

		p, err := f.svc.GetProgress(ctx, f.member.ID, f.lessons[0].ID)
		require.NoError(t, err)
		assert.Zero(t, p.WatchedSeconds)

		// a new session pushes the backup once the portal is back
		tr2, _ := newTracker(t, f, backup)
		assert.Equal(t, 30, tr2.Progress().WatchedSeconds)
		assert.False(t, backup.has(f.member.ID, f.lessons[0].ID))
		p, err = f.svc.GetProgress(ctx, f.member.ID, f.lessons[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 30, p.WatchedSeconds)
	})

	t.Run("does not retry rejected saves", func(t *testing.T) {
		f := setup(t)
		tr, remote := newTracker(t, f, newMemBackup())
		require.NoError(t, tr.Tick(time.Second, 1))

		remote.fail(10, core.NewFieldError("watched_seconds", "invalid"))
		require.Error(t, tr.Save(ctx))
		assert.Equal(t, 1, remote.saves)

		remote.fail(10, training.ErrLessonNotFound)
		require.Error(t, tr.Save(ctx))
		assert.Equal(t, 1, remote.saves)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		f := setup(t)
		tr, remote := newTracker(t, f, newMemBackup())
		require.NoError(t, tr.Tick(time.Second, 1))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		remote.fail(10, errors.New("timeout"))
		require.Error(t, tr.Save(cctx))
		assert.LessOrEqual(t, remote.saves, 1)
	})
}

type retry struct {
	attempt int
	wait    time.Duration
}

func TestTracker_RetrySchedule(t *testing.T) {
	ctx := context.Background()
	track := func(t *testing.T, opts training.TrackerOptions) (*training.Tracker, *flakyRemote, *[]retry) {
		f := setup(t)
		var retries []retry
		opts.OnRetry = func(attempt int, wait time.Duration) {
			retries = append(retries, retry{attempt, wait})
		}
		remote := &flakyRemote{Remote: training.NewServiceRemote(f.svc, f.member.ID)}
		tr := training.NewTracker(f.member.ID, remote, newMemBackup(), testutil.NewLogger(), opts)
		require.NoError(t, tr.Open(ctx, f.lessons[0].ID))
		require.NoError(t, tr.Tick(5*time.Second, 5))
		return tr, remote, &retries
	}

	t.Run("defaults", func(t *testing.T) {
		tr, remote, retries := track(t, training.TrackerOptionsFromConfig(core.NewTestConfig()))

		remote.fail(10, errors.New("portal unavailable"))
		start := time.Now()
		require.Error(t, tr.Save(ctx))
		assert.Equal(t, 3, remote.saves)
		assert.Equal(t, []retry{{1, 500 * time.Millisecond}, {2, time.Second}}, *retries)
		assert.GreaterOrEqual(t, time.Since(start), 1500*time.Millisecond)
	})

	t.Run("waits are capped", func(t *testing.T) {
		tr, remote, retries := track(t, training.TrackerOptions{Attempts: 6, InitialBackoff: time.Millisecond})

		remote.fail(10, errors.New("portal unavailable"))
		require.Error(t, tr.Save(ctx))
		assert.Equal(t, 6, remote.saves)
		assert.Equal(t, []retry{
			{1, time.Millisecond}, {2, 2 * time.Millisecond}, {3, 4 * time.Millisecond},
			{4, 4 * time.Millisecond}, {5, 4 * time.Millisecond},
		}, *retries)
	})
}

func TestTracker_Next(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	backup := newMemBackup()
	tr, remote := newTracker(t, f, backup)

	require.NoError(t, tr.Tick(61*time.Second, 61))
	require.True(t, tr.CanAdvance())

	// navigation continues when the portal is down; the backup keeps the completion
	remote.fail(10, errors.New("portal unavailable"))
	require.NoError(t, tr.Next(ctx, f.lessons[1].ID))
	assert.Equal(t, f.lessons[1].ID, tr.Lesson().ID)
	assert.True(t, tr.CanAdvance(), "no threshold on the second lesson")
	stored, ok, err := backup.Load(f.member.ID, f.lessons[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.Completed)

	remote.fail(0, nil)
	require.NoError(t, tr.Open(ctx, f.lessons[0].ID))
	assert.True(t, tr.Progress().Completed)
	assert.False(t, backup.has(f.member.ID, f.lessons[0].ID))

	p, err := f.svc.GetProgress(ctx, f.member.ID, f.lessons[0].ID)
	require.NoError(t, err)
	assert.True(t, p.Completed)
	assert.Equal(t, 61, p.WatchedSeconds)
	assert.Equal(t, []string{core.TopicLessonCompleted}, f.events.Topics())

	require.NoError(t, tr.Next(ctx, f.lessons[1].ID))
	require.NoError(t, tr.Next(ctx, f.lessons[2].ID))
	s, err := f.svc.Summary(ctx, f.member.ID, f.module.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Completed)
}
