package training_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
	"github.com/purelifecenter/portal/core/training"
	"github.com/purelifecenter/portal/core/user"
	emailsvc "github.com/purelifecenter/portal/services/email"
	inmemdb "github.com/purelifecenter/portal/storage/database/inmem"
	testutil "github.com/purelifecenter/portal/tests"
)

type fixture struct {
	svc     training.Service
	events  *testutil.Publisher
	member  user.User
	module  training.Module
	lessons []training.Lesson
}

// setup creates a published module with three lessons; the first one requires 60 seconds.
func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.Open()
	conf := core.NewTestConfig()
	log := testutil.NewLogger()
	userRepo := inmemdb.NewUserRepository(db)

	f := &fixture{events: &testutil.Publisher{}}
	f.member = testutil.CreateUser(t, userRepo, "Max Member", "max", "max@example.com", "", []string{user.RoleMember}, true)
	users := user.NewService(userRepo, emailsvc.NewConsoleServiceMock(conf, log), conf, log)
	f.svc = training.NewService(inmemdb.NewTrainingRepository(db), users, f.events, log)

	nm := training.NewModule{Title: " Onboarding ", Published: true}
	require.NoError(t, nm.Validate())
	m, err := f.svc.CreateModule(ctx, nm)
	require.NoError(t, err)
	f.module = m

	for i, nl := range []training.NewLesson{
		{Title: "Welcome", DurationSeconds: 120, RequiredSeconds: 60, SortOrder: 1},
		{Title: "Products", DurationSeconds: 300, RequiredSeconds: 0, SortOrder: 2},
		{Title: "Wrap up", SortOrder: 3},
	} {
		nl.ModuleID = m.ID
		require.NoError(t, nl.Validate(), i)
		l, err := f.svc.CreateLesson(ctx, nl)
		require.NoError(t, err)
		f.lessons = append(f.lessons, l)
	}
	return f
}

func TestNewLesson_Validate(t *testing.T) {
	tests := []struct {
		name    string
		nl      training.NewLesson
		wantErr string
	}{
		{"valid", training.NewLesson{Title: "Intro", DurationSeconds: 60, RequiredSeconds: 60}, ""},
		{"no duration", training.NewLesson{Title: "Intro", RequiredSeconds: 600}, ""},
		{"required above duration", training.NewLesson{Title: "Intro", DurationSeconds: 60, RequiredSeconds: 61}, "required_seconds"},
		{"blank title", training.NewLesson{Title: "  "}, "title"},
		{"bad url", training.NewLesson{Title: "Intro", VideoURL: "nope"}, "video_url"},
		{"negative", training.NewLesson{Title: "Intro", RequiredSeconds: -1}, "required_seconds"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.nl.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, core.ErrorFields(err), tc.wantErr)
		})
	}
}

func TestProgress_Merge(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	done := t0.Add(-time.Hour)

	stored := training.Progress{WatchedSeconds: 90, PositionSeconds: 90, UpdatedAt: t1, Completed: true, CompletedAt: &done}
	incoming := training.Progress{WatchedSeconds: 40, PositionSeconds: 10, UpdatedAt: t0}

	got := stored.Merge(incoming)
	assert.Equal(t, 90, got.WatchedSeconds, "watched time never decreases")
	assert.Equal(t, 90, got.PositionSeconds, "older positions are ignored")
	assert.True(t, got.Completed)
	assert.Equal(t, done, *got.CompletedAt)

	got = incoming.Merge(stored)
	assert.Equal(t, 90, got.WatchedSeconds)
	assert.Equal(t, 90, got.PositionSeconds)
	assert.Equal(t, t1, got.UpdatedAt)
	assert.True(t, got.Completed, "completion never reverts")
	assert.Equal(t, done, *got.CompletedAt)
}

func TestService_Modules(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	assert.Equal(t, "Onboarding", f.module.Title)
	draft, err := f.svc.CreateModule(ctx, training.NewModule{Title: "Draft"})
	require.NoError(t, err)

	published, err := f.svc.QueryModules(ctx, true)
	require.NoError(t, err)
	require.Len(t, published, 1)
	all, err := f.svc.QueryModules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	draft, err = f.svc.UpdateModule(ctx, draft.ID, training.UpdateModule{Published: core.BoolPtr(true), Title: core.StringPtr(" Advanced ")})
	require.NoError(t, err)
	assert.True(t, draft.Published)
	assert.Equal(t, "Advanced", draft.Title)

	lessons, err := f.svc.Lessons(ctx, f.module.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 3)
	assert.Equal(t, "Welcome", lessons[0].Title)

	_, err = f.svc.UpdateLesson(ctx, lessons[0].ID, training.UpdateLesson{RequiredSeconds: core.IntPtr(500)})
	assert.Contains(t, core.ErrorFields(err), "required_seconds")
	moved, err := f.svc.UpdateLesson(ctx, lessons[0].ID, training.UpdateLesson{SortOrder: core.IntPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, moved.SortOrder)
	lessons, err = f.svc.Lessons(ctx, f.module.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", lessons[2].Title)

	_, err = f.svc.CreateLesson(ctx, training.NewLesson{ModuleID: "missing", Title: "x"})
	assert.True(t, core.IsNotFound(err))

	_, err = f.svc.SaveProgress(ctx, f.member.ID, f.lessons[1].ID, training.SaveProgress{WatchedSeconds: 10})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteModule(ctx, f.module.ID))
	_, err = f.svc.GetLesson(ctx, f.lessons[1].ID)
	assert.True(t, core.IsNotFound(err), "lessons are deleted with their module")
	progress, err := f.svc.Progress(ctx, f.member.ID, f.module.ID)
	require.NoError(t, err)
	assert.Empty(t, progress)
}

func TestService_SaveProgress(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	lesson := f.lessons[0]

	p, err := f.svc.GetProgress(ctx, f.member.ID, lesson.ID)
	require.NoError(t, err)
	assert.Zero(t, p.WatchedSeconds)
	assert.Equal(t, f.module.ID, p.ModuleID)

	p, err = f.svc.SaveProgress(ctx, f.member.ID, lesson.ID, training.SaveProgress{
		WatchedSeconds: 30, PositionSeconds: 30, UpdatedAt: now.Add(-30 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, p.WatchedSeconds)

	// a stale report from another device
	p, err = f.svc.SaveProgress(ctx, f.member.ID, lesson.ID, training.SaveProgress{
		WatchedSeconds: 10, PositionSeconds: 5, UpdatedAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, p.WatchedSeconds)
	assert.Equal(t, 30, p.PositionSeconds)

	// future timestamps are clamped
	p, err = f.svc.SaveProgress(ctx, f.member.ID, lesson.ID, training.SaveProgress{
		WatchedSeconds: 45, PositionSeconds: 45, UpdatedAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, now, p.UpdatedAt)
	assert.Equal(t, 45, p.PositionSeconds)

	_, err = f.svc.SaveProgress(ctx, f.member.ID, lesson.ID, training.SaveProgress{WatchedSeconds: 50, Completed: true})
	assert.Contains(t, core.ErrorFields(err), "completed")
	_, err = f.svc.Complete(ctx, f.member.ID, lesson.ID)
	assert.Error(t, err)
	assert.Empty(t, f.events.Topics())

	p, err = f.svc.SaveProgress(ctx, f.member.ID, lesson.ID, training.SaveProgress{WatchedSeconds: 60, Completed: true})
	require.NoError(t, err)
	assert.True(t, p.Completed)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, now, *p.CompletedAt)

	// completing again publishes nothing
	_, err = f.svc.Complete(ctx, f.member.ID, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{core.TopicLessonCompleted}, f.events.Topics())

	_, err = f.svc.SaveProgress(ctx, f.member.ID, "missing", training.SaveProgress{})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Next(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Next(ctx, f.member.ID, f.lessons[0].ID)
	assert.Equal(t, training.ErrLessonLocked, err)

	_, err = f.svc.SaveProgress(ctx, f.member.ID, f.lessons[0].ID, training.SaveProgress{WatchedSeconds: 61})
	require.NoError(t, err)
	next, err := f.svc.Next(ctx, f.member.ID, f.lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.lessons[1].ID, next.ID)

	// no threshold on the second lesson
	next, err = f.svc.Next(ctx, f.member.ID, f.lessons[1].ID)
	require.NoError(t, err)
	assert.Equal(t, f.lessons[2].ID, next.ID)

	_, err = f.svc.Next(ctx, f.member.ID, f.lessons[2].ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_SummaryAndReport(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	s, err := f.svc.Summary(ctx, f.member.ID, f.module.ID)
	require.NoError(t, err)
	assert.Equal(t, training.Summary{ModuleID: f.module.ID, Total: 3}, s)

	for _, l := range f.lessons[1:] {
		_, err := f.svc.Complete(ctx, f.member.ID, l.ID)
		require.NoError(t, err)
	}
	_, err = f.svc.SaveProgress(ctx, f.member.ID, f.lessons[0].ID, training.SaveProgress{WatchedSeconds: 12, PositionSeconds: 12})
	require.NoError(t, err)

	s, err = f.svc.Summary(ctx, f.member.ID, f.module.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 66, s.Percent)

	file, err := f.svc.ExportReport(ctx, training.ProgressFilter{ModuleID: f.module.ID}, export.FormatCSV)
	require.NoError(t, err)
	body := string(file.Body)
	assert.True(t, strings.HasPrefix(body, "\ufeff\"user_id\",\"user_name\""))
	assert.Contains(t, body, "\"Max Member\",\"Onboarding\",\"Welcome\",\"12\",\"12\",\"false\",\"\"")
	assert.Equal(t, 4, strings.Count(body, "\r\n"))
	assert.True(t, strings.HasPrefix(file.Filename, "training-progress-"))
}
