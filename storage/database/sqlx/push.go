package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/purelifecenter/portal/core/push"
)

const subscriptionColumns = "id, user_id, endpoint, p256dh, auth, user_agent, created_at, updated_at"

type pushConfigRow struct {
	Enabled         bool      `db:"enabled"`
	VAPIDPublicKey  string    `db:"vapid_public_key"`
	VAPIDPrivateKey string    `db:"vapid_private_key"`
	Subject         string    `db:"subject"`
	DefaultTTL      int       `db:"default_ttl"`
	DefaultIcon     string    `db:"default_icon"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type subscriptionRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Endpoint  string      `db:"endpoint"`
	P256dh    string      `db:"p256dh"`
	Auth      string      `db:"auth"`
	UserAgent null.String `db:"user_agent"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r subscriptionRow) subscription() push.Subscription {
	return push.Subscription{
		ID:        r.ID,
		UserID:    r.UserID,
		Endpoint:  r.Endpoint,
		P256dh:    r.P256dh,
		Auth:      r.Auth,
		UserAgent: r.UserAgent.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type pushRepository struct {
	db *sqlx.DB
}

var _ push.Repository = (*pushRepository)(nil)

func NewPushRepository(db *sqlx.DB) push.Repository {
	return &pushRepository{db: db}
}

func (repo *pushRepository) GetConfig(ctx context.Context) (push.Config, error) {
	var row pushConfigRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT enabled, vapid_public_key, vapid_private_key, subject, default_ttl, default_icon, updated_at
		FROM push_config WHERE id = 1`)
	if err != nil {
		return push.Config{}, trapNoRows(err, push.ErrConfigNotFound, "getting push config")
	}
	return push.Config(row), nil
}

func (repo *pushRepository) SaveConfig(ctx context.Context, c push.Config) (push.Config, error) {
	row := pushConfigRow(c)
	row.UpdatedAt = row.UpdatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO push_config (id, enabled, vapid_public_key, vapid_private_key, subject, default_ttl, default_icon, updated_at)
		VALUES (1, :enabled, :vapid_public_key, :vapid_private_key, :subject, :default_ttl, :default_icon, :updated_at)
		ON CONFLICT (id) DO UPDATE SET enabled = EXCLUDED.enabled, vapid_public_key = EXCLUDED.vapid_public_key,
			vapid_private_key = EXCLUDED.vapid_private_key, subject = EXCLUDED.subject,
			default_ttl = EXCLUDED.default_ttl, default_icon = EXCLUDED.default_icon, updated_at = EXCLUDED.updated_at`,
		row)
	if err != nil {
		return push.Config{}, errors.Wrap(err, "saving push config")
	}
	return c, nil
}

func (repo *pushRepository) UpsertSubscription(ctx context.Context, s push.Subscription) (push.Subscription, error) {
	var row subscriptionRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO push_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (endpoint) DO UPDATE SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth, user_agent = EXCLUDED.user_agent, updated_at = EXCLUDED.updated_at
		RETURNING `+subscriptionColumns,
		s.ID, s.UserID, s.Endpoint, s.P256dh, s.Auth, nullString(s.UserAgent), s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return push.Subscription{}, errors.Wrap(err, "upserting push subscription")
	}
	return row.subscription(), nil
}

func (repo *pushRepository) QuerySubscriptions(ctx context.Context, userIDs ...string) ([]push.Subscription, error) {
	q := "SELECT " + subscriptionColumns + " FROM push_subscriptions"
	var args []interface{}
	if len(userIDs) > 0 {
		q += " WHERE user_id::text = ANY($1)"
		args = append(args, pq.StringArray(userIDs))
	}
	var rows []subscriptionRow
	if err := repo.db.SelectContext(ctx, &rows, q+" ORDER BY created_at", args...); err != nil {
		return nil, errors.Wrap(err, "querying push subscriptions")
	}
	subs := make([]push.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.subscription())
	}
	return subs, nil
}

func (repo *pushRepository) DeleteSubscription(ctx context.Context, userID, endpoint string) error {
	if !isUUID(userID) {
		return push.ErrSubscriptionNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2", userID, endpoint))
	if err != nil {
		return errors.Wrap(err, "deleting push subscription")
	}
	if n == 0 {
		return push.ErrSubscriptionNotFound
	}
	return nil
}

func (repo *pushRepository) DeleteSubscriptionsByEndpoint(ctx context.Context, endpoints ...string) (int, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}
	n, err := affected(repo.db.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE endpoint = ANY($1)", pq.StringArray(endpoints)))
	return n, errors.Wrap(err, "deleting push subscriptions")
}
