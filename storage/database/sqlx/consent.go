package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/purelifecenter/portal/core/consent"
)

const (
	categoryColumns        = "id, key, name, description, required, enabled, sort_order, created_at, updated_at"
	consentSettingsColumns = "banner_enabled, title, message, accept_label, reject_label, policy_url, position, updated_at"
	recordColumns          = "id, visitor_id, user_id, categories, ip_address, user_agent, created_at"
)

type recordRow struct {
	ID         string         `db:"id"`
	VisitorID  string         `db:"visitor_id"`
	UserID     null.String    `db:"user_id"`
	Categories pq.StringArray `db:"categories"`
	IPAddress  null.String    `db:"ip_address"`
	UserAgent  null.String    `db:"user_agent"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r recordRow) record() consent.Record {
	return consent.Record{
		ID:         r.ID,
		VisitorID:  r.VisitorID,
		UserID:     r.UserID.String,
		Categories: []string(r.Categories),
		IPAddress:  r.IPAddress.String,
		UserAgent:  r.UserAgent.String,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type consentRepository struct {
	db *sqlx.DB
}

var _ consent.Repository = (*consentRepository)(nil)

func NewConsentRepository(db *sqlx.DB) consent.Repository {
	return &consentRepository{db: db}
}

func (repo *consentRepository) CreateCategory(ctx context.Context, c consent.Category) (consent.Category, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO consent_categories (`+categoryColumns+`)
		VALUES (:id, :key, :name, :description, :required, :enabled, :sort_order, :created_at, :updated_at)`,
		c)
	if err != nil {
		return consent.Category{}, errors.Wrap(err, "inserting cookie category")
	}
	return c, nil
}

func (repo *consentRepository) QueryCategories(ctx context.Context, enabledOnly bool) ([]consent.Category, error) {
	q := "SELECT " + categoryColumns + " FROM consent_categories"
	if enabledOnly {
		q += " WHERE enabled"
	}
	cats := make([]consent.Category, 0)
	if err := repo.db.SelectContext(ctx, &cats, q+" ORDER BY sort_order, name"); err != nil {
		return nil, errors.Wrap(err, "querying cookie categories")
	}
	return cats, nil
}

func (repo *consentRepository) getCategory(ctx context.Context, col, val string) (consent.Category, error) {
	var c consent.Category
	err := repo.db.GetContext(ctx, &c, "SELECT "+categoryColumns+" FROM consent_categories WHERE "+col+" = $1", val)
	if err != nil {
		return consent.Category{}, trapNoRows(err, consent.ErrCategoryNotFound, "getting cookie category")
	}
	return c, nil
}

func (repo *consentRepository) GetCategory(ctx context.Context, id string) (consent.Category, error) {
	if !isUUID(id) {
		return consent.Category{}, consent.ErrCategoryNotFound
	}
	return repo.getCategory(ctx, "id", id)
}

func (repo *consentRepository) GetCategoryByKey(ctx context.Context, key string) (consent.Category, error) {
	return repo.getCategory(ctx, "key", key)
}

func (repo *consentRepository) UpdateCategory(ctx context.Context, c consent.Category) (consent.Category, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE consent_categories SET name = :name, description = :description, required = :required,
			enabled = :enabled, sort_order = :sort_order, updated_at = :updated_at
		WHERE id = :id`,
		c))
	if err != nil {
		return consent.Category{}, errors.Wrap(err, "updating cookie category")
	}
	if n == 0 {
		return consent.Category{}, consent.ErrCategoryNotFound
	}
	return c, nil
}

func (repo *consentRepository) DeleteCategory(ctx context.Context, id string) error {
	if !isUUID(id) {
		return consent.ErrCategoryNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM consent_categories WHERE id = $1", id))
	if err != nil {
		return errors.Wrap(err, "deleting cookie category")
	}
	if n == 0 {
		return consent.ErrCategoryNotFound
	}
	return nil
}

func (repo *consentRepository) GetSettings(ctx context.Context) (consent.Settings, error) {
	var s consent.Settings
	err := repo.db.GetContext(ctx, &s, "SELECT "+consentSettingsColumns+" FROM consent_settings WHERE id = 1")
	if err != nil {
		return consent.Settings{}, trapNoRows(err, consent.ErrSettingsNotFound, "getting consent settings")
	}
	return s, nil
}

func (repo *consentRepository) SaveSettings(ctx context.Context, s consent.Settings) (consent.Settings, error) {
	s.UpdatedAt = s.UpdatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO consent_settings (id, `+consentSettingsColumns+`)
		VALUES (1, :banner_enabled, :title, :message, :accept_label, :reject_label, :policy_url, :position, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			banner_enabled = EXCLUDED.banner_enabled, title = EXCLUDED.title, message = EXCLUDED.message,
			accept_label = EXCLUDED.accept_label, reject_label = EXCLUDED.reject_label,
			policy_url = EXCLUDED.policy_url, position = EXCLUDED.position, updated_at = EXCLUDED.updated_at`,
		s)
	if err != nil {
		return consent.Settings{}, errors.Wrap(err, "saving consent settings")
	}
	return s, nil
}

func (repo *consentRepository) CreateRecord(ctx context.Context, r consent.Record) (consent.Record, error) {
	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO consent_records ("+recordColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		r.ID, r.VisitorID, nullString(r.UserID), pq.StringArray(categories),
		nullString(r.IPAddress), nullString(r.UserAgent), r.CreatedAt.UTC())
	if err != nil {
		return consent.Record{}, errors.Wrap(err, "inserting consent record")
	}
	return r, nil
}

func (repo *consentRepository) LatestRecord(ctx context.Context, visitorID string) (consent.Record, error) {
	var row recordRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+recordColumns+" FROM consent_records WHERE visitor_id = $1 ORDER BY created_at DESC LIMIT 1",
		visitorID)
	if err != nil {
		return consent.Record{}, trapNoRows(err, consent.ErrRecordNotFound, "getting consent record")
	}
	return row.record(), nil
}

func (repo *consentRepository) QueryRecords(ctx context.Context, filter consent.RecordFilter) ([]consent.Record, error) {
	var w where
	if filter.VisitorID != "" {
		w.add("visitor_id = ?", filter.VisitorID)
	}
	w.between("created_at", filter.From, filter.To)

	var rows []recordRow
	q := "SELECT " + recordColumns + " FROM consent_records" + w.String() + " ORDER BY created_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying consent records")
	}
	records := make([]consent.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}
