package training

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
)

type (
	// Remote is the portal as seen by one signed-in user.
	Remote interface {
		GetLesson(ctx context.Context, lessonID string) (Lesson, error)
		GetProgress(ctx context.Context, lessonID string) (Progress, error)
		SaveProgress(ctx context.Context, lessonID string, sp SaveProgress) (Progress, error)
	}

	// Backup keeps progress that has not reached the portal yet.
	Backup interface {
		// Load returns false when nothing is backed up for the lesson.
		Load(userID, lessonID string) (Progress, bool, error)
		Store(p Progress) error
		Clear(userID, lessonID string) error
	}
)

type TrackerOptions struct {
	// Attempts is the number of remote save attempts, 3 when zero.
	Attempts uint
	// InitialBackoff is the wait before the second attempt, doubled after each failure
	// up to 4x its value. 500ms when zero.
	InitialBackoff time.Duration
	// OnRetry, when set, is called after a failed attempt with the wait before the next one.
	OnRetry func(attempt int, wait time.Duration)
}

// TrackerOptionsFromConfig reads the retry policy from the training config.
func TrackerOptionsFromConfig(conf *core.Config) TrackerOptions {
	return TrackerOptions{Attempts: conf.Training.SaveAttempts, InitialBackoff: conf.Training.SaveInitialBackoff}
}

// Tracker follows one user through lessons. Watch time is accumulated and backed up locally
// on every tick, and only dropped from the backup once the portal confirmed it.
type Tracker struct {
	userID string
	remote Remote
	backup Backup
	log    core.Logger
	opts   TrackerOptions

	mu       sync.Mutex
	lesson   Lesson
	progress Progress
	pending  time.Duration // watch time below one second
	version  int           // bumped on every local change
	saved    int           // version confirmed by the portal
}

func NewTracker(userID string, remote Remote, backup Backup, log core.Logger, opts TrackerOptions) *Tracker {
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	return &Tracker{userID: userID, remote: remote, backup: backup, log: log, opts: opts}
}

func (t *Tracker) Lesson() Lesson {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lesson
}

func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Open loads a lesson, reconciling the portal progress with the local backup.
// A backup holding newer data is pushed to the portal.
func (t *Tracker) Open(ctx context.Context, lessonID string) error {
	lesson, err := t.remote.GetLesson(ctx, lessonID)
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	remote, err := t.remote.GetProgress(ctx, lessonID)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	remote.UserID, remote.LessonID, remote.ModuleID = t.userID, lesson.ID, lesson.ModuleID

	local, found, err := t.backup.Load(t.userID, lessonID)
	if err != nil {
		t.log.Warn("loading progress backup", errors.Wrap(err, lessonID))
		found = false
	}

	t.mu.Lock()
	t.lesson = lesson
	t.progress = remote
	t.pending = 0
	t.version, t.saved = 0, 0
	ahead := found && isAhead(local, remote)
	if found {
		t.progress = remote.Merge(local)
	}
	if ahead {
		t.version = 1
	}
	t.mu.Unlock()

	if !ahead {
		if found {
			if err := t.backup.Clear(t.userID, lessonID); err != nil {
				t.log.Warn("clearing progress backup", errors.Wrap(err, lessonID))
			}
		}
		return nil
	}
	// the backup is kept when this fails
	_ = t.Save(ctx)
	return nil
}

// isAhead reports whether local carries something the portal does not have.
func isAhead(local, remote Progress) bool {
	return local.WatchedSeconds > remote.WatchedSeconds ||
		(local.Completed && !remote.Completed) ||
		local.UpdatedAt.After(remote.UpdatedAt)
}

// Tick records elapsed watch time and the player position, then backs them up.
func (t *Tracker) Tick(elapsed time.Duration, positionSeconds int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elapsed > 0 {
		t.pending += elapsed
		whole := t.pending / time.Second
		t.progress.WatchedSeconds += int(whole)
		t.pending -= whole * time.Second
	}
	if positionSeconds >= 0 {
		t.progress.PositionSeconds = positionSeconds
	}
	t.progress.UpdatedAt = core.NowFunc()
	t.version++
	return errors.Wrap(t.backup.Store(t.progress), "backing up progress")
}

// CanAdvance reports whether the current lesson unlocks the next one.
func (t *Tracker) CanAdvance() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canAdvance()
}

func (t *Tracker) canAdvance() bool {
	return t.progress.Completed || t.lesson.ThresholdMet(t.progress.WatchedSeconds)
}

// Save backs up the current progress and sends it to the portal, retrying with an
// exponential backoff. The backup is cleared only once the portal confirmed the save and
// nothing changed meanwhile.
func (t *Tracker) Save(ctx context.Context) error {
	t.mu.Lock()
	if t.version == t.saved {
		t.mu.Unlock()
		return nil
	}
	snapshot, version := t.progress, t.version
	lessonID := t.lesson.ID
	if err := t.backup.Store(snapshot); err != nil {
		t.log.Warn("backing up progress", errors.Wrap(err, lessonID))
	}
	t.mu.Unlock()

	sp := SaveProgress{
		WatchedSeconds:  snapshot.WatchedSeconds,
		PositionSeconds: snapshot.PositionSeconds,
		Completed:       snapshot.Completed,
		UpdatedAt:       snapshot.UpdatedAt,
	}
	attempt := 0
	op := func() (Progress, error) {
		attempt++
		p, err := t.remote.SaveProgress(ctx, lessonID, sp)
		if err != nil {
			var verr *core.ValidationError
			if errors.As(err, &verr) || core.IsNotFound(err) || core.IsForbidden(err) {
				return Progress{}, backoff.Permanent(err)
			}
			return Progress{}, err
		}
		return p, nil
	}
	notify := func(err error, wait time.Duration) {
		t.log.Debug("progress save failed, retrying", map[string]interface{}{
			"lesson": lessonID, "attempt": attempt, "wait": wait.String(), "error": err.Error(),
		})
		if t.opts.OnRetry != nil {
			t.opts.OnRetry(attempt, wait)
		}
	}

	saved, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(t.newBackOff()),
		backoff.WithMaxTries(t.opts.Attempts),
		backoff.WithNotify(notify),
	)
	if err != nil {
		t.log.Error("saving progress", errors.Wrapf(err, "lesson %s after %d attempts", lessonID, attempt))
		return errors.Wrap(err, "saving progress")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lesson.ID != lessonID {
		if err := t.backup.Clear(t.userID, lessonID); err != nil {
			t.log.Warn("clearing progress backup", errors.Wrap(err, lessonID))
		}
		return nil
	}
	t.progress = t.progress.Merge(saved)
	if t.progress.Completed && t.progress.CompletedAt == nil {
		t.progress.CompletedAt = saved.CompletedAt
	}
	if t.version == version {
		t.saved = version
		if err := t.backup.Clear(t.userID, lessonID); err != nil {
			t.log.Warn("clearing progress backup", errors.Wrap(err, lessonID))
		}
	}
	return nil
}

func (t *Tracker) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 4 * t.opts.InitialBackoff
	return b
}

// Next moves to nextLessonID once the current lesson is completed or its threshold is met.
// The current lesson is completed and saved first; a failed save stays in the backup.
func (t *Tracker) Next(ctx context.Context, nextLessonID string) error {
	t.mu.Lock()
	if !t.canAdvance() {
		t.mu.Unlock()
		return ErrLessonLocked
	}
	if err := t.backup.Store(t.progress); err != nil {
		t.log.Warn("backing up progress", errors.Wrap(err, t.lesson.ID))
	}
	if !t.progress.Completed {
		now := core.NowFunc()
		t.progress.Completed = true
		t.progress.CompletedAt = &now
		t.progress.UpdatedAt = now
		t.version++
	}
	t.mu.Unlock()

	if err := t.Save(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	return t.Open(ctx, nextLessonID)
}

// serviceRemote binds a Service to one user.
type serviceRemote struct {
	svc    Service
	userID string
}

var _ Remote = (*serviceRemote)(nil)

// NewServiceRemote lets a Tracker run in process against svc.
func NewServiceRemote(svc Service, userID string) Remote {
	return &serviceRemote{svc: svc, userID: userID}
}

func (r *serviceRemote) GetLesson(ctx context.Context, lessonID string) (Lesson, error) {
	return r.svc.GetLesson(ctx, lessonID)
}

func (r *serviceRemote) GetProgress(ctx context.Context, lessonID string) (Progress, error) {
	return r.svc.GetProgress(ctx, r.userID, lessonID)
}

func (r *serviceRemote) SaveProgress(ctx context.Context, lessonID string, sp SaveProgress) (Progress, error) {
	return r.svc.SaveProgress(ctx, r.userID, lessonID, sp)
}
