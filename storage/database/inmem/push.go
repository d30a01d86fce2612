package inmemdb

import (
	"context"
	"sort"

	"github.com/purelifecenter/portal/core/push"
)

type pushRepository struct {
	db *pushTables
}

var _ push.Repository = (*pushRepository)(nil)

func NewPushRepository(db *DB) push.Repository {
	return &pushRepository{db: db.push}
}

func (repo *pushRepository) GetConfig(_ context.Context) (push.Config, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.config == nil {
		return push.Config{}, push.ErrConfigNotFound
	}
	return *repo.db.config, nil
}

func (repo *pushRepository) SaveConfig(_ context.Context, c push.Config) (push.Config, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.config = &c
	return c, nil
}

func (repo *pushRepository) UpsertSubscription(_ context.Context, s push.Subscription) (push.Subscription, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.db.subscriptions[s.Endpoint]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	}
	repo.db.subscriptions[s.Endpoint] = &s
	return s, nil
}

func (repo *pushRepository) QuerySubscriptions(_ context.Context, userIDs ...string) ([]push.Subscription, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]push.Subscription, 0)
	for _, s := range repo.db.subscriptions {
		if len(userIDs) == 0 || containsString(userIDs, s.UserID) {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (repo *pushRepository) DeleteSubscription(_ context.Context, userID, endpoint string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.subscriptions[endpoint]
	if !ok || s.UserID != userID {
		return push.ErrSubscriptionNotFound
	}
	delete(repo.db.subscriptions, endpoint)
	return nil
}

func (repo *pushRepository) DeleteSubscriptionsByEndpoint(_ context.Context, endpoints ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, ep := range endpoints {
		if _, ok := repo.db.subscriptions[ep]; ok {
			delete(repo.db.subscriptions, ep)
			n++
		}
	}
	return n, nil
}
