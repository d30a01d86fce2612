package training

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
	"github.com/purelifecenter/portal/core/user"
)

var (
	ErrModuleNotFound   = core.NewNotFoundError("training module")
	ErrLessonNotFound   = core.NewNotFoundError("lesson")
	ErrProgressNotFound = core.NewNotFoundError("lesson progress")
	ErrNoNextLesson     = core.NewNotFoundError("next lesson")
	// ErrLessonLocked is returned when moving past a lesson whose threshold is not met.
	ErrLessonLocked    = errors.New("complete the current lesson to unlock the next one")
	ErrThresholdNotMet = errors.New("the required watch time has not been reached")
)

// LessonCompletedEvent is published once per completed lesson.
type LessonCompletedEvent struct {
	UserID   string `json:"user_id"`
	ModuleID string `json:"module_id"`
	LessonID string `json:"lesson_id"`
}

type (
	Repository interface {
		CreateModule(ctx context.Context, m Module) (Module, error)
		QueryModules(ctx context.Context, publishedOnly bool) ([]Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		UpdateModule(ctx context.Context, m Module) (Module, error)
		// DeleteModule removes the module with its lessons and progress.
		DeleteModule(ctx context.Context, id string) error

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		// QueryLessons returns the module lessons by sort_order then created_at.
		QueryLessons(ctx context.Context, moduleID string) ([]Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		GetProgress(ctx context.Context, userID, lessonID string) (Progress, error)
		QueryProgress(ctx context.Context, filter ProgressFilter) ([]Progress, error)
		// UpsertProgress stores p merged with the stored row (see Progress.Merge).
		UpsertProgress(ctx context.Context, p Progress) (Progress, error)
	}

	// UserDirectory names users in reports.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		CreateModule(ctx context.Context, nm NewModule) (Module, error)
		QueryModules(ctx context.Context, publishedOnly bool) ([]Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error)
		DeleteModule(ctx context.Context, id string) error

		CreateLesson(ctx context.Context, nl NewLesson) (Lesson, error)
		Lessons(ctx context.Context, moduleID string) ([]Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		// GetProgress returns the stored progress or a zero Progress for the lesson.
		GetProgress(ctx context.Context, userID, lessonID string) (Progress, error)
		Progress(ctx context.Context, userID, moduleID string) ([]Progress, error)
		SaveProgress(ctx context.Context, userID, lessonID string, sp SaveProgress) (Progress, error)
		Complete(ctx context.Context, userID, lessonID string) (Progress, error)
		// Next returns the lesson after lessonID, or ErrLessonLocked.
		Next(ctx context.Context, userID, lessonID string) (Lesson, error)
		Summary(ctx context.Context, userID, moduleID string) (Summary, error)
		ExportReport(ctx context.Context, filter ProgressFilter, format export.Format) (export.File, error)
	}

	service struct {
		repo   Repository
		users  UserDirectory
		events core.EventPublisher
		log    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users UserDirectory, events core.EventPublisher, log core.Logger) Service {
	if events == nil {
		events = core.NoopPublisher{}
	}
	return &service{repo: repo, users: users, events: events, log: log}
}

// Modules

func (svc *service) CreateModule(ctx context.Context, nm NewModule) (Module, error) {
	now := core.NowFunc()
	return svc.repo.CreateModule(ctx, Module{
		ID:          uuid.New().String(),
		Title:       nm.Title,
		Description: nm.Description,
		Published:   nm.Published,
		SortOrder:   nm.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryModules(ctx context.Context, publishedOnly bool) ([]Module, error) {
	return svc.repo.QueryModules(ctx, publishedOnly)
}

func (svc *service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *service) UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error) {
	m, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	m = um.Apply(m)
	m.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateModule(ctx, m)
}

func (svc *service) DeleteModule(ctx context.Context, id string) error {
	if _, err := svc.repo.GetModule(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteModule(ctx, id)
}

// Lessons

func (svc *service) CreateLesson(ctx context.Context, nl NewLesson) (Lesson, error) {
	if _, err := svc.repo.GetModule(ctx, nl.ModuleID); err != nil {
		return Lesson{}, err
	}
	now := core.NowFunc()
	return svc.repo.CreateLesson(ctx, Lesson{
		ID:              uuid.New().String(),
		ModuleID:        nl.ModuleID,
		Title:           nl.Title,
		Content:         nl.Content,
		VideoURL:        nl.VideoURL,
		DurationSeconds: nl.DurationSeconds,
		RequiredSeconds: nl.RequiredSeconds,
		SortOrder:       nl.SortOrder,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *service) Lessons(ctx context.Context, moduleID string) ([]Lesson, error) {
	if _, err := svc.repo.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	return svc.repo.QueryLessons(ctx, moduleID)
}

func (svc *service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

func (svc *service) UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error) {
	l, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if l, err = ul.Apply(l); err != nil {
		return Lesson{}, err
	}
	l.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *service) DeleteLesson(ctx context.Context, id string) error {
	if _, err := svc.repo.GetLesson(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteLesson(ctx, id)
}

// Progress

func (svc *service) GetProgress(ctx context.Context, userID, lessonID string) (Progress, error) {
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Progress{}, err
	}
	return svc.progress(ctx, userID, l)
}

func (svc *service) progress(ctx context.Context, userID string, l Lesson) (Progress, error) {
	p, err := svc.repo.GetProgress(ctx, userID, l.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return Progress{UserID: userID, LessonID: l.ID, ModuleID: l.ModuleID}, nil
		}
		return Progress{}, errors.Wrap(err, "getting progress")
	}
	return p, nil
}

func (svc *service) Progress(ctx context.Context, userID, moduleID string) ([]Progress, error) {
	return svc.repo.QueryProgress(ctx, ProgressFilter{UserID: userID, ModuleID: moduleID})
}

func (svc *service) SaveProgress(ctx context.Context, userID, lessonID string, sp SaveProgress) (Progress, error) {
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Progress{}, err
	}
	current, err := svc.progress(ctx, userID, l)
	if err != nil {
		return Progress{}, err
	}

	now := core.NowFunc()
	if sp.UpdatedAt.IsZero() || sp.UpdatedAt.After(now) {
		sp.UpdatedAt = now
	}
	incoming := Progress{
		UserID:          userID,
		LessonID:        l.ID,
		ModuleID:        l.ModuleID,
		WatchedSeconds:  sp.WatchedSeconds,
		PositionSeconds: sp.PositionSeconds,
		UpdatedAt:       sp.UpdatedAt,
	}
	merged := current.Merge(incoming)
	if sp.Completed && !merged.Completed {
		if !l.ThresholdMet(merged.WatchedSeconds) {
			return Progress{}, core.NewValidationError(ErrThresholdNotMet,
				core.FieldError{Field: "completed", Error: ErrThresholdNotMet.Error()})
		}
		merged.Completed = true
		merged.CompletedAt = &now
	}
	return svc.save(ctx, current, merged)
}

func (svc *service) Complete(ctx context.Context, userID, lessonID string) (Progress, error) {
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Progress{}, err
	}
	current, err := svc.progress(ctx, userID, l)
	if err != nil {
		return Progress{}, err
	}
	if current.Completed {
		return current, nil
	}
	if !l.ThresholdMet(current.WatchedSeconds) {
		return Progress{}, core.NewValidationError(ErrThresholdNotMet)
	}
	now := core.NowFunc()
	p := current
	p.Completed = true
	p.CompletedAt = &now
	p.UpdatedAt = now
	return svc.save(ctx, current, p)
}

func (svc *service) save(ctx context.Context, before, p Progress) (Progress, error) {
	saved, err := svc.repo.UpsertProgress(ctx, p)
	if err != nil {
		return Progress{}, errors.Wrap(err, "saving progress")
	}
	if saved.Completed && !before.Completed {
		ev := LessonCompletedEvent{UserID: saved.UserID, ModuleID: saved.ModuleID, LessonID: saved.LessonID}
		if err := svc.events.Publish(ctx, core.TopicLessonCompleted, ev); err != nil {
			svc.log.Warn("publishing lesson completion", errors.Wrap(err, "publishing"))
		}
	}
	return saved, nil
}

func (svc *service) Next(ctx context.Context, userID, lessonID string) (Lesson, error) {
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	p, err := svc.progress(ctx, userID, l)
	if err != nil {
		return Lesson{}, err
	}
	if !p.Completed && !l.ThresholdMet(p.WatchedSeconds) {
		return Lesson{}, ErrLessonLocked
	}

	lessons, err := svc.repo.QueryLessons(ctx, l.ModuleID)
	if err != nil {
		return Lesson{}, errors.Wrap(err, "querying lessons")
	}
	for i, ls := range lessons {
		if ls.ID == l.ID && i+1 < len(lessons) {
			return lessons[i+1], nil
		}
	}
	return Lesson{}, ErrNoNextLesson
}

func (svc *service) Summary(ctx context.Context, userID, moduleID string) (Summary, error) {
	lessons, err := svc.Lessons(ctx, moduleID)
	if err != nil {
		return Summary{}, err
	}
	progress, err := svc.Progress(ctx, userID, moduleID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying progress")
	}
	return newSummary(moduleID, lessons, progress), nil
}

func (svc *service) ExportReport(ctx context.Context, filter ProgressFilter, format export.Format) (export.File, error) {
	progress, err := svc.repo.QueryProgress(ctx, filter)
	if err != nil {
		return export.File{}, errors.Wrap(err, "querying progress")
	}

	var (
		users   = map[string]string{}
		modules = map[string]string{}
		lessons = map[string]string{}
		rows    = make([]ReportRow, 0, len(progress))
	)
	for _, p := range progress {
		name, ok := users[p.UserID]
		if !ok {
			if u, err := svc.users.GetByID(ctx, p.UserID); err == nil {
				name = u.DisplayName()
			} else if !core.IsNotFound(err) {
				return export.File{}, errors.Wrap(err, "getting user")
			}
			users[p.UserID] = name
		}
		title, ok := modules[p.ModuleID]
		if !ok {
			if m, err := svc.repo.GetModule(ctx, p.ModuleID); err == nil {
				title = m.Title
			}
			modules[p.ModuleID] = title
		}
		lesson, ok := lessons[p.LessonID]
		if !ok {
			if l, err := svc.repo.GetLesson(ctx, p.LessonID); err == nil {
				lesson = l.Title
			}
			lessons[p.LessonID] = lesson
		}
		rows = append(rows, ReportRow{Progress: p, UserName: name, ModuleTitle: title, LessonTitle: lesson})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].UserName != rows[j].UserName {
			return rows[i].UserName < rows[j].UserName
		}
		return rows[i].ModuleTitle < rows[j].ModuleTitle
	})
	return export.Render(reportTable(rows), format, "training-progress", rows)
}
