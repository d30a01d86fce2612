package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/purelifecenter/portal/core/i18n"
)

type i18nRepository struct {
	db *i18nTable
}

var _ i18n.Repository = (*i18nRepository)(nil)

func NewI18nRepository(db *DB) i18n.Repository {
	return &i18nRepository{db: db.i18n}
}

func (repo *i18nRepository) find(t i18n.Translation) *i18n.Translation {
	for _, row := range repo.db.table {
		if row.Namespace == t.Namespace && row.Key == t.Key && row.Language == t.Language {
			return row
		}
	}
	return nil
}

func (repo *i18nRepository) UpsertTranslations(_ context.Context, ts ...i18n.Translation) ([]i18n.Translation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	saved := make([]i18n.Translation, 0, len(ts))
	for _, t := range ts {
		if existing := repo.find(t); existing != nil {
			existing.Value = t.Value
			existing.UpdatedAt = t.UpdatedAt
			saved = append(saved, *existing)
			continue
		}
		row := t
		repo.db.table[row.ID] = &row
		saved = append(saved, row)
	}
	return saved, nil
}

func (repo *i18nRepository) QueryTranslations(_ context.Context, filter i18n.QueryFilter) ([]i18n.Translation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	ts := make([]i18n.Translation, 0)
	for _, t := range repo.db.table {
		switch {
		case filter.Language != "" && t.Language != filter.Language,
			filter.Namespace != "" && t.Namespace != filter.Namespace,
			search != "" && !strings.Contains(strings.ToLower(t.Key), search) &&
				!strings.Contains(strings.ToLower(t.Value), search):
			continue
		}
		ts = append(ts, *t)
	}
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Language < b.Language
	})
	return ts, nil
}

func (repo *i18nRepository) GetTranslation(_ context.Context, id string) (i18n.Translation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return i18n.Translation{}, i18n.ErrTranslationNotFound
}

func (repo *i18nRepository) DeleteTranslations(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *i18nRepository) Languages(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	langs := make([]string, 0)
	for _, t := range repo.db.table {
		if !seen[t.Language] {
			seen[t.Language] = true
			langs = append(langs, t.Language)
		}
	}
	sort.Strings(langs)
	return langs, nil
}
