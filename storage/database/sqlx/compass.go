package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/compass"
)

const (
	compassSettingsColumns = `enabled, show_disclaimer, allow_health_topics, save_history, welcome_message,
	disclaimer_text, system_prompt, model, max_questions_per_day, updated_by, updated_at`
	sessionColumns = "id, user_id, user_name, topic, question_count, rating, started_at, ended_at"
)

var sessionOrderings = []string{"started_at", "question_count", "rating", "topic", "user_name"}

type compassRepository struct {
	db *sqlx.DB
}

var _ compass.Repository = (*compassRepository)(nil)

func NewCompassRepository(db *sqlx.DB) compass.Repository {
	return &compassRepository{db: db}
}

func (repo *compassRepository) GetSettings(ctx context.Context) (compass.Settings, error) {
	var s compass.Settings
	err := repo.db.GetContext(ctx, &s, "SELECT "+compassSettingsColumns+" FROM compass_settings WHERE id = 1")
	if err != nil {
		return compass.Settings{}, trapNoRows(err, compass.ErrSettingsNotFound, "getting compass settings")
	}
	return s, nil
}

func (repo *compassRepository) SaveSettings(ctx context.Context, s compass.Settings) (compass.Settings, error) {
	s.UpdatedAt = s.UpdatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO compass_settings (id, `+compassSettingsColumns+`)
		VALUES (1, :enabled, :show_disclaimer, :allow_health_topics, :save_history, :welcome_message,
			:disclaimer_text, :system_prompt, :model, :max_questions_per_day, :updated_by, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled, show_disclaimer = EXCLUDED.show_disclaimer,
			allow_health_topics = EXCLUDED.allow_health_topics, save_history = EXCLUDED.save_history,
			welcome_message = EXCLUDED.welcome_message, disclaimer_text = EXCLUDED.disclaimer_text,
			system_prompt = EXCLUDED.system_prompt, model = EXCLUDED.model,
			max_questions_per_day = EXCLUDED.max_questions_per_day, updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		s)
	if err != nil {
		return compass.Settings{}, errors.Wrap(err, "saving compass settings")
	}
	return s, nil
}

func (repo *compassRepository) CreateSession(ctx context.Context, s compass.Session) (compass.Session, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO compass_sessions ("+sessionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		s.ID, s.UserID, s.UserName, s.Topic, s.QuestionCount, nullIntPtr(s.Rating), s.StartedAt.UTC(), nullTimePtr(s.EndedAt))
	if err != nil {
		return compass.Session{}, errors.Wrap(err, "inserting compass session")
	}
	return s, nil
}

func (repo *compassRepository) QuerySessions(ctx context.Context, filter compass.SessionFilter, ordering []core.DBOrdering) ([]compass.Session, error) {
	var w where
	if filter.UserID != "" {
		w.add("user_id = ?", filter.UserID)
	}
	w.between("started_at", filter.From, filter.To)

	q := "SELECT " + sessionColumns + " FROM compass_sessions" + w.String() +
		orderBy(ordering, sessionOrderings, "started_at DESC")
	sessions := make([]compass.Session, 0)
	if err := repo.db.SelectContext(ctx, &sessions, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying compass sessions")
	}
	return sessions, nil
}
