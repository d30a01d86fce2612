package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/purelifecenter/portal/core/training"
)

const (
	moduleColumns = "id, title, description, published, sort_order, created_at, updated_at"
	lessonColumns = `id, module_id, title, content, video_url, duration_seconds, required_seconds, sort_order,
	created_at, updated_at`
	progressColumns = `user_id, lesson_id, module_id, watched_seconds, position_seconds, completed, completed_at,
	updated_at`
)

type moduleRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Published   bool      `db:"published"`
	SortOrder   int       `db:"sort_order"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r moduleRow) module() training.Module {
	m := training.Module(r)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m
}

type lessonRow struct {
	ID              string    `db:"id"`
	ModuleID        string    `db:"module_id"`
	Title           string    `db:"title"`
	Content         string    `db:"content"`
	VideoURL        string    `db:"video_url"`
	DurationSeconds int       `db:"duration_seconds"`
	RequiredSeconds int       `db:"required_seconds"`
	SortOrder       int       `db:"sort_order"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r lessonRow) lesson() training.Lesson {
	l := training.Lesson(r)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l
}

type progressRow struct {
	UserID          string    `db:"user_id"`
	LessonID        string    `db:"lesson_id"`
	ModuleID        string    `db:"module_id"`
	WatchedSeconds  int       `db:"watched_seconds"`
	PositionSeconds int       `db:"position_seconds"`
	Completed       bool      `db:"completed"`
	CompletedAt     null.Time `db:"completed_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func toProgressRow(p training.Progress) progressRow {
	return progressRow{
		UserID:          p.UserID,
		LessonID:        p.LessonID,
		ModuleID:        p.ModuleID,
		WatchedSeconds:  p.WatchedSeconds,
		PositionSeconds: p.PositionSeconds,
		Completed:       p.Completed,
		CompletedAt:     nullTimePtr(p.CompletedAt),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func (r progressRow) progress() training.Progress {
	p := training.Progress{
		UserID:          r.UserID,
		LessonID:        r.LessonID,
		ModuleID:        r.ModuleID,
		WatchedSeconds:  r.WatchedSeconds,
		PositionSeconds: r.PositionSeconds,
		Completed:       r.Completed,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if r.CompletedAt.Valid {
		at := r.CompletedAt.Time.UTC()
		p.CompletedAt = &at
	}
	return p
}

type trainingRepository struct {
	db *sqlx.DB
}

var _ training.Repository = (*trainingRepository)(nil)

func NewTrainingRepository(db *sqlx.DB) training.Repository {
	return &trainingRepository{db: db}
}

// Modules

func (repo *trainingRepository) CreateModule(ctx context.Context, m training.Module) (training.Module, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO training_modules (`+moduleColumns+`)
		VALUES (:id, :title, :description, :published, :sort_order, :created_at, :updated_at)`,
		moduleRow(m))
	if err != nil {
		return training.Module{}, errors.Wrap(err, "inserting training module")
	}
	return m, nil
}

func (repo *trainingRepository) QueryModules(ctx context.Context, publishedOnly bool) ([]training.Module, error) {
	q := "SELECT " + moduleColumns + " FROM training_modules"
	if publishedOnly {
		q += " WHERE published"
	}
	var rows []moduleRow
	if err := repo.db.SelectContext(ctx, &rows, q+" ORDER BY sort_order, created_at"); err != nil {
		return nil, errors.Wrap(err, "querying training modules")
	}
	modules := make([]training.Module, 0, len(rows))
	for _, r := range rows {
		modules = append(modules, r.module())
	}
	return modules, nil
}

func (repo *trainingRepository) GetModule(ctx context.Context, id string) (training.Module, error) {
	if !isUUID(id) {
		return training.Module{}, training.ErrModuleNotFound
	}
	var row moduleRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+moduleColumns+" FROM training_modules WHERE id = $1", id)
	if err != nil {
		return training.Module{}, trapNoRows(err, training.ErrModuleNotFound, "getting training module")
	}
	return row.module(), nil
}

func (repo *trainingRepository) UpdateModule(ctx context.Context, m training.Module) (training.Module, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE training_modules SET title = :title, description = :description, published = :published,
			sort_order = :sort_order, updated_at = :updated_at
		WHERE id = :id`,
		moduleRow(m)))
	if err != nil {
		return training.Module{}, errors.Wrap(err, "updating training module")
	}
	if n == 0 {
		return training.Module{}, training.ErrModuleNotFound
	}
	return m, nil
}

// DeleteModule relies on ON DELETE CASCADE for lessons and progress.
func (repo *trainingRepository) DeleteModule(ctx context.Context, id string) error {
	if !isUUID(id) {
		return training.ErrModuleNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM training_modules WHERE id = $1", id))
	if err != nil {
		return errors.Wrap(err, "deleting training module")
	}
	if n == 0 {
		return training.ErrModuleNotFound
	}
	return nil
}

// Lessons

func (repo *trainingRepository) CreateLesson(ctx context.Context, l training.Lesson) (training.Lesson, error) {
	if !isUUID(l.ModuleID) {
		return training.Lesson{}, training.ErrModuleNotFound
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO training_lessons (`+lessonColumns+`)
		VALUES (:id, :module_id, :title, :content, :video_url, :duration_seconds, :required_seconds, :sort_order,
			:created_at, :updated_at)`,
		lessonRow(l))
	if isViolation(err, foreignKeyViolation) {
		return training.Lesson{}, training.ErrModuleNotFound
	}
	if err != nil {
		return training.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo *trainingRepository) QueryLessons(ctx context.Context, moduleID string) ([]training.Lesson, error) {
	lessons := make([]training.Lesson, 0)
	if !isUUID(moduleID) {
		return lessons, nil
	}
	var rows []lessonRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+lessonColumns+" FROM training_lessons WHERE module_id = $1 ORDER BY sort_order, created_at", moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	for _, r := range rows {
		lessons = append(lessons, r.lesson())
	}
	return lessons, nil
}

func (repo *trainingRepository) GetLesson(ctx context.Context, id string) (training.Lesson, error) {
	if !isUUID(id) {
		return training.Lesson{}, training.ErrLessonNotFound
	}
	var row lessonRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+lessonColumns+" FROM training_lessons WHERE id = $1", id)
	if err != nil {
		return training.Lesson{}, trapNoRows(err, training.ErrLessonNotFound, "getting lesson")
	}
	return row.lesson(), nil
}

func (repo *trainingRepository) UpdateLesson(ctx context.Context, l training.Lesson) (training.Lesson, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE training_lessons SET title = :title, content = :content, video_url = :video_url,
			duration_seconds = :duration_seconds, required_seconds = :required_seconds, sort_order = :sort_order,
			updated_at = :updated_at
		WHERE id = :id`,
		lessonRow(l)))
	if err != nil {
		return training.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n == 0 {
		return training.Lesson{}, training.ErrLessonNotFound
	}
	return l, nil
}

func (repo *trainingRepository) DeleteLesson(ctx context.Context, id string) error {
	if !isUUID(id) {
		return training.ErrLessonNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM training_lessons WHERE id = $1", id))
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	if n == 0 {
		return training.ErrLessonNotFound
	}
	return nil
}

// Progress

func (repo *trainingRepository) GetProgress(ctx context.Context, userID, lessonID string) (training.Progress, error) {
	if !isUUID(userID) || !isUUID(lessonID) {
		return training.Progress{}, training.ErrProgressNotFound
	}
	var row progressRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+progressColumns+" FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2", userID, lessonID)
	if err != nil {
		return training.Progress{}, trapNoRows(err, training.ErrProgressNotFound, "getting lesson progress")
	}
	return row.progress(), nil
}

func (repo *trainingRepository) QueryProgress(ctx context.Context, filter training.ProgressFilter) ([]training.Progress, error) {
	progress := make([]training.Progress, 0)
	var w where
	for _, f := range [][2]string{{"user_id", filter.UserID}, {"module_id", filter.ModuleID}, {"lesson_id", filter.LessonID}} {
		if f[1] == "" {
			continue
		}
		if !isUUID(f[1]) {
			return progress, nil
		}
		w.add(f[0]+" = ?", f[1])
	}
	var rows []progressRow
	q := "SELECT " + progressColumns + " FROM lesson_progress" + w.String() + " ORDER BY updated_at"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	for _, r := range rows {
		progress = append(progress, r.progress())
	}
	return progress, nil
}

// UpsertProgress merges p into the stored row in a single statement, so concurrent first saves
// cannot lower watched_seconds or revert completion.
func (repo *trainingRepository) UpsertProgress(ctx context.Context, p training.Progress) (training.Progress, error) {
	if !isUUID(p.UserID) || !isUUID(p.LessonID) {
		return training.Progress{}, training.ErrLessonNotFound
	}
	in := toProgressRow(p)
	var row progressRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO lesson_progress AS lp (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET
			watched_seconds = GREATEST(lp.watched_seconds, EXCLUDED.watched_seconds),
			position_seconds = CASE WHEN EXCLUDED.updated_at > lp.updated_at
				THEN EXCLUDED.position_seconds ELSE lp.position_seconds END,
			completed = lp.completed OR EXCLUDED.completed,
			completed_at = CASE
				WHEN lp.completed AND EXCLUDED.completed THEN LEAST(lp.completed_at, EXCLUDED.completed_at)
				WHEN EXCLUDED.completed THEN EXCLUDED.completed_at
				ELSE lp.completed_at END,
			updated_at = GREATEST(lp.updated_at, EXCLUDED.updated_at)
		RETURNING `+progressColumns,
		in.UserID, in.LessonID, in.ModuleID, in.WatchedSeconds, in.PositionSeconds, in.Completed, in.CompletedAt,
		in.UpdatedAt)
	if isViolation(err, foreignKeyViolation) {
		return training.Progress{}, training.ErrLessonNotFound
	}
	if err != nil {
		return training.Progress{}, errors.Wrap(err, "saving lesson progress")
	}
	return row.progress(), nil
}
