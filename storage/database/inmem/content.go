package inmemdb

import (
	"context"
	"sort"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/content"
)

type contentRepository struct {
	db *contentTables
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db.content}
}

func (repo *contentRepository) CreateBanner(_ context.Context, b content.Banner) (content.Banner, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.banners[b.ID] = &b
	return b, nil
}

func (repo *contentRepository) QueryBanners(_ context.Context, filter content.BannerFilter, ordering []core.DBOrdering) ([]content.Banner, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	banners := make([]content.Banner, 0, len(repo.db.banners))
	for _, b := range repo.db.banners {
		switch {
		case filter.Active != nil && b.Active != *filter.Active,
			filter.Severity != "" && b.Severity != filter.Severity,
			filter.Audience != "" && b.Audience != filter.Audience:
			continue
		}
		banners = append(banners, *b)
	}

	sort.SliceStable(banners, func(i, j int) bool {
		a, b := banners[i], banners[j]
		for _, ord := range ordering {
			var lt, eq bool
			switch ord.Field {
			case "sort_order":
				lt, eq = a.SortOrder < b.SortOrder, a.SortOrder == b.SortOrder
			case "starts_at":
				lt, eq = a.StartsAt.Before(b.StartsAt), a.StartsAt.Equal(b.StartsAt)
			case "created_at":
				lt, eq = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
			case "title":
				lt, eq = a.Title < b.Title, a.Title == b.Title
			default:
				continue
			}
			if !eq {
				return lt == ord.Ascending
			}
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return banners, nil
}

func (repo *contentRepository) GetBanner(_ context.Context, id string) (content.Banner, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.banners[id]; ok {
		return *b, nil
	}
	return content.Banner{}, content.ErrBannerNotFound
}

func (repo *contentRepository) UpdateBanner(_ context.Context, b content.Banner) (content.Banner, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.banners[b.ID]; !ok {
		return content.Banner{}, content.ErrBannerNotFound
	}
	repo.db.banners[b.ID] = &b
	return b, nil
}

func (repo *contentRepository) DeleteBanners(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := repo.db.banners[id]; ok {
			delete(repo.db.banners, id)
			n++
		}
	}
	return n, nil
}

func (repo *contentRepository) CreateNewsItem(_ context.Context, n content.NewsItem) (content.NewsItem, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.news[n.ID] = &n
	return n, nil
}

func (repo *contentRepository) QueryNewsItems(_ context.Context, activeOnly bool) ([]content.NewsItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	items := make([]content.NewsItem, 0, len(repo.db.news))
	for _, n := range repo.db.news {
		if activeOnly && !n.Active {
			continue
		}
		items = append(items, *n)
	}
	content.SortTicker(items)
	return items, nil
}

func (repo *contentRepository) GetNewsItem(_ context.Context, id string) (content.NewsItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.news[id]; ok {
		return *n, nil
	}
	return content.NewsItem{}, content.ErrNewsItemNotFound
}

func (repo *contentRepository) UpdateNewsItem(_ context.Context, n content.NewsItem) (content.NewsItem, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.news[n.ID]; !ok {
		return content.NewsItem{}, content.ErrNewsItemNotFound
	}
	repo.db.news[n.ID] = &n
	return n, nil
}

func (repo *contentRepository) SetNewsPriorities(_ context.Context, priorities map[string]int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id := range priorities {
		if _, ok := repo.db.news[id]; !ok {
			return content.ErrNewsItemNotFound
		}
	}
	now := core.NowFunc()
	for id, p := range priorities {
		repo.db.news[id].Priority = p
		repo.db.news[id].UpdatedAt = now
	}
	return nil
}

func (repo *contentRepository) DeleteNewsItems(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := repo.db.news[id]; ok {
			delete(repo.db.news, id)
			n++
		}
	}
	return n, nil
}
