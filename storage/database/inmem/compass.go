package inmemdb

import (
	"context"
	"sort"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/compass"
)

type compassRepository struct {
	db *compassTables
}

var _ compass.Repository = (*compassRepository)(nil)

func NewCompassRepository(db *DB) compass.Repository {
	return &compassRepository{db: db.compass}
}

func (repo *compassRepository) GetSettings(_ context.Context) (compass.Settings, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.settings == nil {
		return compass.Settings{}, compass.ErrSettingsNotFound
	}
	return *repo.db.settings, nil
}

func (repo *compassRepository) SaveSettings(_ context.Context, s compass.Settings) (compass.Settings, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.settings = &s
	return s, nil
}

func (repo *compassRepository) CreateSession(_ context.Context, s compass.Session) (compass.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.sessions[s.ID] = &s
	return s, nil
}

func (repo *compassRepository) QuerySessions(_ context.Context, filter compass.SessionFilter, ordering []core.DBOrdering) ([]compass.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]compass.Session, 0)
	for _, s := range repo.db.sessions {
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if !inRange(s.StartedAt, filter.From, filter.To) {
			continue
		}
		sessions = append(sessions, *s)
	}

	asc := len(ordering) > 0 && ordering[0].Field == "started_at" && ordering[0].Ascending
	sort.SliceStable(sessions, func(i, j int) bool {
		if asc {
			return sessions[i].StartedAt.Before(sessions[j].StartedAt)
		}
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}
