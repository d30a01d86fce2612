package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/knowledge"
)

type knowledgeRepository struct {
	db *knowledgeTable
}

var _ knowledge.Repository = (*knowledgeRepository)(nil)

func NewKnowledgeRepository(db *DB) knowledge.Repository {
	return &knowledgeRepository{db: db.knowledge}
}

func (repo *knowledgeRepository) CreateResource(_ context.Context, r knowledge.Resource) (knowledge.Resource, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := r
	stored.Tags = copyStrings(r.Tags)
	repo.db.table[r.ID] = &stored
	return r, nil
}

func matchResource(r knowledge.Resource, filter knowledge.QueryFilter) bool {
	switch {
	case filter.PublishedOnly && !r.Published,
		filter.FeaturedOnly && !r.Featured,
		filter.Category != "" && r.Category != filter.Category,
		filter.ResourceType != "" && r.ResourceType != filter.ResourceType,
		filter.Tag != "" && !containsString(r.Tags, filter.Tag):
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		return strings.Contains(strings.ToLower(r.Title), search) ||
			strings.Contains(strings.ToLower(r.Description), search)
	}
	return true
}

func (repo *knowledgeRepository) QueryResources(_ context.Context, filter knowledge.QueryFilter, ordering []core.DBOrdering) ([]knowledge.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	resources := make([]knowledge.Resource, 0)
	for _, r := range repo.db.table {
		if matchResource(*r, filter) {
			res := *r
			res.Tags = copyStrings(r.Tags)
			resources = append(resources, res)
		}
	}

	sort.SliceStable(resources, func(i, j int) bool {
		a, b := resources[i], resources[j]
		for _, ord := range ordering {
			var lt, eq bool
			switch ord.Field {
			case "title":
				lt, eq = a.Title < b.Title, a.Title == b.Title
			case "view_count":
				lt, eq = a.ViewCount < b.ViewCount, a.ViewCount == b.ViewCount
			case "sort_order":
				lt, eq = a.SortOrder < b.SortOrder, a.SortOrder == b.SortOrder
			case "created_at":
				lt, eq = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
			default:
				continue
			}
			if !eq {
				return lt == ord.Ascending
			}
		}
		if a.Featured != b.Featured {
			return a.Featured
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return resources, nil
}

func (repo *knowledgeRepository) GetResource(_ context.Context, id string) (knowledge.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		res := *r
		res.Tags = copyStrings(r.Tags)
		return res, nil
	}
	return knowledge.Resource{}, knowledge.ErrResourceNotFound
}

func (repo *knowledgeRepository) UpdateResource(_ context.Context, r knowledge.Resource) (knowledge.Resource, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[r.ID]; !ok {
		return knowledge.Resource{}, knowledge.ErrResourceNotFound
	}
	stored := r
	stored.Tags = copyStrings(r.Tags)
	repo.db.table[r.ID] = &stored
	return r, nil
}

func (repo *knowledgeRepository) DeleteResource(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return knowledge.ErrResourceNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *knowledgeRepository) Categories(_ context.Context, publishedOnly bool) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	cats := make([]string, 0)
	for _, r := range repo.db.table {
		if (publishedOnly && !r.Published) || r.Category == "" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		cats = append(cats, r.Category)
	}
	sort.Strings(cats)
	return cats, nil
}

func (repo *knowledgeRepository) IncrementViews(_ context.Context, id string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[id]
	if !ok {
		return 0, knowledge.ErrResourceNotFound
	}
	r.ViewCount++
	return r.ViewCount, nil
}
