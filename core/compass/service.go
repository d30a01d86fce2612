package compass

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
	"github.com/purelifecenter/portal/core/user"
)

var (
	ErrSettingsNotFound = core.NewNotFoundError("ai compass settings")
	ErrSessionNotFound  = core.NewNotFoundError("ai compass session")
)

type (
	Repository interface {
		// GetSettings returns ErrSettingsNotFound until settings are saved.
		GetSettings(ctx context.Context) (Settings, error)
		SaveSettings(ctx context.Context, s Settings) (Settings, error)
		CreateSession(ctx context.Context, s Session) (Session, error)
		QuerySessions(ctx context.Context, filter SessionFilter, ordering []core.DBOrdering) ([]Session, error)
	}

	Service interface {
		GetSettings(ctx context.Context) (Settings, error)
		UpdateSettings(ctx context.Context, by user.User, us UpdateSettings) (Settings, error)
		RecordSession(ctx context.Context, by user.User, ns NewSession) (Session, error)
		QuerySessions(ctx context.Context, filter SessionFilter, ordering []core.DBOrdering) ([]Session, error)
		ExportSessions(ctx context.Context, filter SessionFilter, format export.Format) (export.File, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) GetSettings(ctx context.Context) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, errors.Wrap(err, "getting ai compass settings")
	}
	return s, nil
}

func (svc *service) UpdateSettings(ctx context.Context, by user.User, us UpdateSettings) (Settings, error) {
	current, err := svc.GetSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	s := us.Apply(current)
	s.UpdatedBy = by.ID
	s.UpdatedAt = core.NowFunc()
	return svc.repo.SaveSettings(ctx, s)
}

func (svc *service) RecordSession(ctx context.Context, by user.User, ns NewSession) (Session, error) {
	s := Session{
		ID:            uuid.New().String(),
		UserID:        by.ID,
		UserName:      by.DisplayName(),
		Topic:         ns.Topic,
		QuestionCount: ns.QuestionCount,
		Rating:        ns.Rating,
		StartedAt:     ns.StartedAt.UTC(),
		EndedAt:       ns.EndedAt,
	}
	if ns.StartedAt.IsZero() {
		s.StartedAt = core.NowFunc()
	}
	if s.EndedAt != nil {
		ended := s.EndedAt.UTC()
		s.EndedAt = &ended
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *service) QuerySessions(ctx context.Context, filter SessionFilter, ordering []core.DBOrdering) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, filter, ordering)
}

func (svc *service) ExportSessions(ctx context.Context, filter SessionFilter, format export.Format) (export.File, error) {
	sessions, err := svc.repo.QuerySessions(ctx, filter, nil)
	if err != nil {
		return export.File{}, errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return export.Render(sessionsTable(sessions), format, "ai-compass-sessions", sessions)
}
