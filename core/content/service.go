package content

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
)

var (
	ErrBannerNotFound   = core.NewNotFoundError("banner")
	ErrNewsItemNotFound = core.NewNotFoundError("news item")
)

type (
	Repository interface {
		CreateBanner(ctx context.Context, b Banner) (Banner, error)
		QueryBanners(ctx context.Context, filter BannerFilter, ordering []core.DBOrdering) ([]Banner, error)
		GetBanner(ctx context.Context, id string) (Banner, error)
		UpdateBanner(ctx context.Context, b Banner) (Banner, error)
		DeleteBanners(ctx context.Context, ids ...string) (int, error)

		CreateNewsItem(ctx context.Context, n NewsItem) (NewsItem, error)
		QueryNewsItems(ctx context.Context, activeOnly bool) ([]NewsItem, error)
		GetNewsItem(ctx context.Context, id string) (NewsItem, error)
		UpdateNewsItem(ctx context.Context, n NewsItem) (NewsItem, error)
		// SetNewsPriorities sets every item's priority in one transaction.
		SetNewsPriorities(ctx context.Context, priorities map[string]int) error
		DeleteNewsItems(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		CreateBanner(ctx context.Context, nb NewBanner) (Banner, error)
		QueryBanners(ctx context.Context, filter BannerFilter, ordering []core.DBOrdering) ([]Banner, error)
		GetBanner(ctx context.Context, id string) (Banner, error)
		UpdateBanner(ctx context.Context, id string, ub UpdateBanner) (Banner, error)
		DeleteBanners(ctx context.Context, ids ...string) error
		// Visible returns the banners shown to a user holding roles at the time.
		Visible(ctx context.Context, roles []string) ([]Banner, error)

		CreateNewsItem(ctx context.Context, nn NewNewsItem) (NewsItem, error)
		QueryNewsItems(ctx context.Context) ([]NewsItem, error)
		GetNewsItem(ctx context.Context, id string) (NewsItem, error)
		UpdateNewsItem(ctx context.Context, id string, un UpdateNewsItem) (NewsItem, error)
		DeleteNewsItems(ctx context.Context, ids ...string) error
		// Active returns the ticker items to show now.
		Active(ctx context.Context) ([]NewsItem, error)
		// Reorder gives the items descending priorities in the given order.
		Reorder(ctx context.Context, ids []string) ([]NewsItem, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CreateBanner(ctx context.Context, nb NewBanner) (Banner, error) {
	now := core.NowFunc()
	b := Banner{
		ID:          uuid.New().String(),
		Title:       nb.Title,
		Message:     nb.Message,
		Severity:    nb.Severity,
		Audience:    nb.Audience,
		Active:      nb.Active == nil || *nb.Active,
		Dismissible: nb.Dismissible == nil || *nb.Dismissible,
		StartsAt:    nb.StartsAt.UTC(),
		SortOrder:   nb.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if b.Severity == "" {
		b.Severity = SeverityInfo
	}
	if b.Audience == "" {
		b.Audience = AudienceAll
	}
	if nb.StartsAt.IsZero() {
		b.StartsAt = now
	}
	if nb.EndsAt != nil {
		ends := nb.EndsAt.UTC()
		b.EndsAt = &ends
	}
	if err := validateWindow(b.StartsAt, b.EndsAt); err != nil {
		return Banner{}, err
	}
	return svc.repo.CreateBanner(ctx, b)
}

func (svc *service) QueryBanners(ctx context.Context, filter BannerFilter, ordering []core.DBOrdering) ([]Banner, error) {
	return svc.repo.QueryBanners(ctx, filter, ordering)
}

func (svc *service) GetBanner(ctx context.Context, id string) (Banner, error) {
	return svc.repo.GetBanner(ctx, id)
}

func (svc *service) UpdateBanner(ctx context.Context, id string, ub UpdateBanner) (Banner, error) {
	b, err := svc.repo.GetBanner(ctx, id)
	if err != nil {
		return Banner{}, err
	}
	if b, err = ub.Apply(b); err != nil {
		return Banner{}, err
	}
	b.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateBanner(ctx, b)
}

func (svc *service) DeleteBanners(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteBanners(ctx, ids...)
	return err
}

func (svc *service) Visible(ctx context.Context, roles []string) ([]Banner, error) {
	active := true
	banners, err := svc.repo.QueryBanners(ctx, BannerFilter{Active: &active}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying banners")
	}

	now := core.NowFunc()
	visible := make([]Banner, 0, len(banners))
	for _, b := range banners {
		if b.VisibleTo(now, roles) {
			visible = append(visible, b)
		}
	}
	SortVisible(visible)
	return visible, nil
}

func (svc *service) CreateNewsItem(ctx context.Context, nn NewNewsItem) (NewsItem, error) {
	now := core.NowFunc()
	n := NewsItem{
		ID:        uuid.New().String(),
		Text:      nn.Text,
		LinkURL:   nn.LinkURL,
		Active:    nn.Active == nil || *nn.Active,
		Priority:  nn.Priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nn.StartsAt != nil {
		starts := nn.StartsAt.UTC()
		n.StartsAt = &starts
	}
	if nn.EndsAt != nil {
		ends := nn.EndsAt.UTC()
		n.EndsAt = &ends
	}
	return svc.repo.CreateNewsItem(ctx, n)
}

func (svc *service) QueryNewsItems(ctx context.Context) ([]NewsItem, error) {
	items, err := svc.repo.QueryNewsItems(ctx, false)
	if err != nil {
		return nil, err
	}
	SortTicker(items)
	return items, nil
}

func (svc *service) GetNewsItem(ctx context.Context, id string) (NewsItem, error) {
	return svc.repo.GetNewsItem(ctx, id)
}

func (svc *service) UpdateNewsItem(ctx context.Context, id string, un UpdateNewsItem) (NewsItem, error) {
	n, err := svc.repo.GetNewsItem(ctx, id)
	if err != nil {
		return NewsItem{}, err
	}
	if n, err = un.Apply(n); err != nil {
		return NewsItem{}, err
	}
	n.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateNewsItem(ctx, n)
}

func (svc *service) DeleteNewsItems(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteNewsItems(ctx, ids...)
	return err
}

func (svc *service) Active(ctx context.Context) ([]NewsItem, error) {
	items, err := svc.repo.QueryNewsItems(ctx, true /* activeOnly */)
	if err != nil {
		return nil, errors.Wrap(err, "querying news items")
	}

	now := core.NowFunc()
	active := make([]NewsItem, 0, len(items))
	for _, n := range items {
		if n.ActiveAt(now) {
			active = append(active, n)
		}
	}
	SortTicker(active)
	return active, nil
}

func (svc *service) Reorder(ctx context.Context, ids []string) ([]NewsItem, error) {
	priorities := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, err := svc.repo.GetNewsItem(ctx, id); err != nil {
			return nil, err
		}
		priorities[id] = len(ids) - i
	}
	if err := svc.repo.SetNewsPriorities(ctx, priorities); err != nil {
		return nil, errors.Wrap(err, "reordering news items")
	}
	return svc.QueryNewsItems(ctx)
}
