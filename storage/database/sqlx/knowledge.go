package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/knowledge"
)

const resourceColumns = `id, title, description, category, resource_type, url, file_key, tags, published,
	featured, view_count, sort_order, created_by, created_at, updated_at`

var resourceOrderings = []string{"title", "view_count", "sort_order", "created_at"}

type resourceRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Category     string         `db:"category"`
	ResourceType string         `db:"resource_type"`
	URL          string         `db:"url"`
	FileKey      null.String    `db:"file_key"`
	Tags         pq.StringArray `db:"tags"`
	Published    bool           `db:"published"`
	Featured     bool           `db:"featured"`
	ViewCount    int            `db:"view_count"`
	SortOrder    int            `db:"sort_order"`
	CreatedBy    null.String    `db:"created_by"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func toResourceRow(r knowledge.Resource) resourceRow {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return resourceRow{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		ResourceType: r.ResourceType,
		URL:          r.URL,
		FileKey:      nullString(r.FileKey),
		Tags:         tags,
		Published:    r.Published,
		Featured:     r.Featured,
		ViewCount:    r.ViewCount,
		SortOrder:    r.SortOrder,
		CreatedBy:    nullString(r.CreatedBy),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (r resourceRow) resource() knowledge.Resource {
	return knowledge.Resource{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		ResourceType: r.ResourceType,
		URL:          r.URL,
		FileKey:      r.FileKey.String,
		Tags:         []string(r.Tags),
		Published:    r.Published,
		Featured:     r.Featured,
		ViewCount:    r.ViewCount,
		SortOrder:    r.SortOrder,
		CreatedBy:    r.CreatedBy.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type knowledgeRepository struct {
	db *sqlx.DB
}

var _ knowledge.Repository = (*knowledgeRepository)(nil)

func NewKnowledgeRepository(db *sqlx.DB) knowledge.Repository {
	return &knowledgeRepository{db: db}
}

func (repo *knowledgeRepository) CreateResource(ctx context.Context, r knowledge.Resource) (knowledge.Resource, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO knowledge_resources (`+resourceColumns+`)
		VALUES (:id, :title, :description, :category, :resource_type, :url, :file_key, :tags, :published,
			:featured, :view_count, :sort_order, :created_by, :created_at, :updated_at)`,
		toResourceRow(r))
	if err != nil {
		return knowledge.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return r, nil
}

func (repo *knowledgeRepository) QueryResources(ctx context.Context, filter knowledge.QueryFilter, ordering []core.DBOrdering) ([]knowledge.Resource, error) {
	var w where
	if filter.PublishedOnly {
		w.add("published")
	}
	if filter.FeaturedOnly {
		w.add("featured")
	}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}
	if filter.ResourceType != "" {
		w.add("resource_type = ?", filter.ResourceType)
	}
	if filter.Tag != "" {
		w.add("? = ANY(tags)", filter.Tag)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(title ILIKE ? OR description ILIKE ?)", val, val)
	}

	q := "SELECT " + resourceColumns + " FROM knowledge_resources" + w.String() +
		orderByThen(ordering, resourceOrderings, "featured DESC, sort_order ASC, created_at DESC")
	var rows []resourceRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	resources := make([]knowledge.Resource, 0, len(rows))
	for _, r := range rows {
		resources = append(resources, r.resource())
	}
	return resources, nil
}

func (repo *knowledgeRepository) GetResource(ctx context.Context, id string) (knowledge.Resource, error) {
	if !isUUID(id) {
		return knowledge.Resource{}, knowledge.ErrResourceNotFound
	}
	var row resourceRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+resourceColumns+" FROM knowledge_resources WHERE id = $1", id)
	if err != nil {
		return knowledge.Resource{}, trapNoRows(err, knowledge.ErrResourceNotFound, "getting resource")
	}
	return row.resource(), nil
}

func (repo *knowledgeRepository) UpdateResource(ctx context.Context, r knowledge.Resource) (knowledge.Resource, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE knowledge_resources SET title = :title, description = :description, category = :category,
			resource_type = :resource_type, url = :url, file_key = :file_key, tags = :tags,
			published = :published, featured = :featured, sort_order = :sort_order, updated_at = :updated_at
		WHERE id = :id`,
		toResourceRow(r)))
	if err != nil {
		return knowledge.Resource{}, errors.Wrap(err, "updating resource")
	}
	if n == 0 {
		return knowledge.Resource{}, knowledge.ErrResourceNotFound
	}
	return r, nil
}

func (repo *knowledgeRepository) DeleteResource(ctx context.Context, id string) error {
	if !isUUID(id) {
		return knowledge.ErrResourceNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM knowledge_resources WHERE id = $1", id))
	if err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	if n == 0 {
		return knowledge.ErrResourceNotFound
	}
	return nil
}

func (repo *knowledgeRepository) Categories(ctx context.Context, publishedOnly bool) ([]string, error) {
	q := "SELECT DISTINCT category FROM knowledge_resources WHERE category <> ''"
	if publishedOnly {
		q += " AND published"
	}
	cats := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &cats, q+" ORDER BY category"); err != nil {
		return nil, errors.Wrap(err, "querying resource categories")
	}
	return cats, nil
}

func (repo *knowledgeRepository) IncrementViews(ctx context.Context, id string) (int, error) {
	if !isUUID(id) {
		return 0, knowledge.ErrResourceNotFound
	}
	var views int
	err := repo.db.GetContext(ctx, &views,
		"UPDATE knowledge_resources SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count", id)
	if err != nil {
		return 0, trapNoRows(err, knowledge.ErrResourceNotFound, "incrementing resource views")
	}
	return views, nil
}
