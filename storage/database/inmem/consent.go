package inmemdb

import (
	"context"

	"github.com/purelifecenter/portal/core/consent"
)

type consentRepository struct {
	db *consentTables
}

var _ consent.Repository = (*consentRepository)(nil)

func NewConsentRepository(db *DB) consent.Repository {
	return &consentRepository{db: db.consent}
}

func (repo *consentRepository) CreateCategory(_ context.Context, c consent.Category) (consent.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.categories[c.ID] = &c
	return c, nil
}

func (repo *consentRepository) QueryCategories(_ context.Context, enabledOnly bool) ([]consent.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]consent.Category, 0, len(repo.db.categories))
	for _, c := range repo.db.categories {
		if enabledOnly && !c.Enabled {
			continue
		}
		cats = append(cats, *c)
	}
	consent.SortCategories(cats)
	return cats, nil
}

func (repo *consentRepository) GetCategory(_ context.Context, id string) (consent.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.categories[id]; ok {
		return *c, nil
	}
	return consent.Category{}, consent.ErrCategoryNotFound
}

func (repo *consentRepository) GetCategoryByKey(_ context.Context, key string) (consent.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.categories {
		if c.Key == key {
			return *c, nil
		}
	}
	return consent.Category{}, consent.ErrCategoryNotFound
}

func (repo *consentRepository) UpdateCategory(_ context.Context, c consent.Category) (consent.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[c.ID]; !ok {
		return consent.Category{}, consent.ErrCategoryNotFound
	}
	repo.db.categories[c.ID] = &c
	return c, nil
}

func (repo *consentRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return consent.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	return nil
}

func (repo *consentRepository) GetSettings(_ context.Context) (consent.Settings, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.settings == nil {
		return consent.Settings{}, consent.ErrSettingsNotFound
	}
	return *repo.db.settings, nil
}

func (repo *consentRepository) SaveSettings(_ context.Context, s consent.Settings) (consent.Settings, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.settings = &s
	return s, nil
}

func (repo *consentRepository) CreateRecord(_ context.Context, r consent.Record) (consent.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := r
	stored.Categories = copyStrings(r.Categories)
	repo.db.records = append(repo.db.records, stored)
	return r, nil
}

func (repo *consentRepository) LatestRecord(_ context.Context, visitorID string) (consent.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	// records are appended in creation order
	for i := len(repo.db.records) - 1; i >= 0; i-- {
		if r := repo.db.records[i]; r.VisitorID == visitorID {
			return r, nil
		}
	}
	return consent.Record{}, consent.ErrRecordNotFound
}

func (repo *consentRepository) QueryRecords(_ context.Context, filter consent.RecordFilter) ([]consent.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]consent.Record, 0)
	for i := len(repo.db.records) - 1; i >= 0; i-- {
		r := repo.db.records[i]
		if filter.VisitorID != "" && r.VisitorID != filter.VisitorID {
			continue
		}
		if !inRange(r.CreatedAt, filter.From, filter.To) {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
