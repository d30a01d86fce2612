package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core/i18n"
)

const translationColumns = "id, namespace, key, language, value, created_at, updated_at"

type translationRow struct {
	ID        string    `db:"id"`
	Namespace string    `db:"namespace"`
	Key       string    `db:"key"`
	Language  string    `db:"language"`
	Value     string    `db:"value"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r translationRow) translation() i18n.Translation {
	t := i18n.Translation(r)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t
}

type i18nRepository struct {
	db *sqlx.DB
}

var _ i18n.Repository = (*i18nRepository)(nil)

func NewI18nRepository(db *sqlx.DB) i18n.Repository {
	return &i18nRepository{db: db}
}

func (repo *i18nRepository) UpsertTranslations(ctx context.Context, ts ...i18n.Translation) ([]i18n.Translation, error) {
	saved := make([]i18n.Translation, 0, len(ts))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, t := range ts {
			var row translationRow
			err := tx.GetContext(ctx, &row, `
				INSERT INTO translations (`+translationColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (namespace, key, language) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
				RETURNING `+translationColumns,
				t.ID, t.Namespace, t.Key, t.Language, t.Value, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
			if err != nil {
				return errors.Wrapf(err, "upserting translation %s", t.FullKey())
			}
			saved = append(saved, row.translation())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *i18nRepository) QueryTranslations(ctx context.Context, filter i18n.QueryFilter) ([]i18n.Translation, error) {
	var w where
	if filter.Language != "" {
		w.add("language = ?", filter.Language)
	}
	if filter.Namespace != "" {
		w.add("namespace = ?", filter.Namespace)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(key ILIKE ? OR value ILIKE ?)", val, val)
	}

	q := "SELECT " + translationColumns + " FROM translations" + w.String() + " ORDER BY namespace, key, language"
	var rows []translationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying translations")
	}
	ts := make([]i18n.Translation, 0, len(rows))
	for _, r := range rows {
		ts = append(ts, r.translation())
	}
	return ts, nil
}

func (repo *i18nRepository) GetTranslation(ctx context.Context, id string) (i18n.Translation, error) {
	if !isUUID(id) {
		return i18n.Translation{}, i18n.ErrTranslationNotFound
	}
	var row translationRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+translationColumns+" FROM translations WHERE id = $1", id)
	if err != nil {
		return i18n.Translation{}, trapNoRows(err, i18n.ErrTranslationNotFound, "getting translation")
	}
	return row.translation(), nil
}

func (repo *i18nRepository) DeleteTranslations(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := affected(repo.db.ExecContext(ctx,
		"DELETE FROM translations WHERE id::text = ANY($1)", pq.StringArray(ids)))
	return n, errors.Wrap(err, "deleting translations")
}

func (repo *i18nRepository) Languages(ctx context.Context) ([]string, error) {
	langs := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &langs, "SELECT DISTINCT language FROM translations ORDER BY language"); err != nil {
		return nil, errors.Wrap(err, "querying languages")
	}
	return langs, nil
}
