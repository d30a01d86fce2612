package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/content"
)

const (
	bannerColumns = `id, title, message, severity, audience, active, dismissible, starts_at, ends_at,
	sort_order, created_at, updated_at`
	newsColumns = "id, text, link_url, active, priority, starts_at, ends_at, created_at, updated_at"
)

var bannerOrderings = []string{"sort_order", "starts_at", "created_at", "title"}

type contentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(db *sqlx.DB) content.Repository {
	return &contentRepository{db: db}
}

func (repo *contentRepository) CreateBanner(ctx context.Context, b content.Banner) (content.Banner, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO banners (`+bannerColumns+`)
		VALUES (:id, :title, :message, :severity, :audience, :active, :dismissible, :starts_at, :ends_at,
			:sort_order, :created_at, :updated_at)`,
		b)
	if err != nil {
		return content.Banner{}, errors.Wrap(err, "inserting banner")
	}
	return b, nil
}

func (repo *contentRepository) QueryBanners(ctx context.Context, filter content.BannerFilter, ordering []core.DBOrdering) ([]content.Banner, error) {
	var w where
	if filter.Active != nil {
		w.add("active = ?", *filter.Active)
	}
	if filter.Severity != "" {
		w.add("severity = ?", filter.Severity)
	}
	if filter.Audience != "" {
		w.add("audience = ?", filter.Audience)
	}

	q := "SELECT " + bannerColumns + " FROM banners" + w.String() +
		orderByThen(ordering, bannerOrderings, "sort_order ASC, created_at DESC")
	banners := make([]content.Banner, 0)
	if err := repo.db.SelectContext(ctx, &banners, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying banners")
	}
	return banners, nil
}

func (repo *contentRepository) GetBanner(ctx context.Context, id string) (content.Banner, error) {
	if !isUUID(id) {
		return content.Banner{}, content.ErrBannerNotFound
	}
	var b content.Banner
	if err := repo.db.GetContext(ctx, &b, "SELECT "+bannerColumns+" FROM banners WHERE id = $1", id); err != nil {
		return content.Banner{}, trapNoRows(err, content.ErrBannerNotFound, "getting banner")
	}
	return b, nil
}

func (repo *contentRepository) UpdateBanner(ctx context.Context, b content.Banner) (content.Banner, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE banners SET title = :title, message = :message, severity = :severity, audience = :audience,
			active = :active, dismissible = :dismissible, starts_at = :starts_at, ends_at = :ends_at,
			sort_order = :sort_order, updated_at = :updated_at
		WHERE id = :id`,
		b))
	if err != nil {
		return content.Banner{}, errors.Wrap(err, "updating banner")
	}
	if n == 0 {
		return content.Banner{}, content.ErrBannerNotFound
	}
	return b, nil
}

func (repo *contentRepository) DeleteBanners(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM banners WHERE id::text = ANY($1)", pq.StringArray(ids)))
	return n, errors.Wrap(err, "deleting banners")
}

// News ticker

func (repo *contentRepository) CreateNewsItem(ctx context.Context, n content.NewsItem) (content.NewsItem, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO news_items (`+newsColumns+`)
		VALUES (:id, :text, :link_url, :active, :priority, :starts_at, :ends_at, :created_at, :updated_at)`,
		n)
	if err != nil {
		return content.NewsItem{}, errors.Wrap(err, "inserting news item")
	}
	return n, nil
}

func (repo *contentRepository) QueryNewsItems(ctx context.Context, activeOnly bool) ([]content.NewsItem, error) {
	q := "SELECT " + newsColumns + " FROM news_items"
	if activeOnly {
		q += " WHERE active"
	}
	items := make([]content.NewsItem, 0)
	if err := repo.db.SelectContext(ctx, &items, q+" ORDER BY priority DESC, created_at DESC"); err != nil {
		return nil, errors.Wrap(err, "querying news items")
	}
	return items, nil
}

func (repo *contentRepository) GetNewsItem(ctx context.Context, id string) (content.NewsItem, error) {
	if !isUUID(id) {
		return content.NewsItem{}, content.ErrNewsItemNotFound
	}
	var n content.NewsItem
	if err := repo.db.GetContext(ctx, &n, "SELECT "+newsColumns+" FROM news_items WHERE id = $1", id); err != nil {
		return content.NewsItem{}, trapNoRows(err, content.ErrNewsItemNotFound, "getting news item")
	}
	return n, nil
}

func (repo *contentRepository) UpdateNewsItem(ctx context.Context, item content.NewsItem) (content.NewsItem, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE news_items SET text = :text, link_url = :link_url, active = :active, priority = :priority,
			starts_at = :starts_at, ends_at = :ends_at, updated_at = :updated_at
		WHERE id = :id`,
		item))
	if err != nil {
		return content.NewsItem{}, errors.Wrap(err, "updating news item")
	}
	if n == 0 {
		return content.NewsItem{}, content.ErrNewsItemNotFound
	}
	return item, nil
}

func (repo *contentRepository) SetNewsPriorities(ctx context.Context, priorities map[string]int) error {
	now := core.NowFunc().UTC()
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for id, prio := range priorities {
			if !isUUID(id) {
				return content.ErrNewsItemNotFound
			}
			n, err := affected(tx.ExecContext(ctx,
				"UPDATE news_items SET priority = $1, updated_at = $2 WHERE id = $3", prio, now, id))
			if err != nil {
				return errors.Wrap(err, "updating news priority")
			}
			if n == 0 {
				return content.ErrNewsItemNotFound
			}
		}
		return nil
	})
}

func (repo *contentRepository) DeleteNewsItems(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM news_items WHERE id::text = ANY($1)", pq.StringArray(ids)))
	return n, errors.Wrap(err, "deleting news items")
}
