package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/i18n"
	"github.com/purelifecenter/portal/core/knowledge"
	"github.com/purelifecenter/portal/core/push"
	sqlxrepos "github.com/purelifecenter/portal/storage/database/sqlx"
)

func TestKnowledgeRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	t.Run("query", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`FROM knowledge_resources WHERE published AND \$1 = ANY\(tags\) AND \(title ILIKE \$2 OR description ILIKE \$3\) ORDER BY view_count DESC, featured DESC, sort_order ASC, created_at DESC`).
			WithArgs("sleep", "%omega%", "%omega%").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "title", "description", "category", "resource_type", "url", "file_key", "tags", "published",
				"featured", "view_count", "sort_order", "created_by", "created_at", "updated_at",
			}).AddRow(id1, "Omega 3 basics", "", "nutrition", "pdf", "https://files.plc.test/omega.pdf",
				"knowledge/omega.pdf", "{sleep,heart}", true, false, 12, 0, nil, now, now))

		resources, err := sqlxrepos.NewKnowledgeRepository(db).QueryResources(ctx,
			knowledge.QueryFilter{PublishedOnly: true, Tag: "sleep", Search: "omega"},
			[]core.DBOrdering{{Field: "view_count"}})
		require.NoError(t, err)
		require.Len(t, resources, 1)
		assert.Equal(t, []string{"sleep", "heart"}, resources[0].Tags)
		assert.Equal(t, "knowledge/omega.pdf", resources[0].FileKey)
		assert.Equal(t, "", resources[0].CreatedBy)
	})

	t.Run("categories", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT DISTINCT category FROM knowledge_resources WHERE category <> '' AND published ORDER BY category`).
			WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("business").AddRow("nutrition"))

		cats, err := sqlxrepos.NewKnowledgeRepository(db).Categories(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"business", "nutrition"}, cats)
	})

	t.Run("views", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`UPDATE knowledge_resources SET view_count = view_count \+ 1 WHERE id = \$1 RETURNING view_count`).
			WithArgs(id1).
			WillReturnRows(sqlmock.NewRows([]string{"view_count"}).AddRow(13))
		mock.ExpectQuery(`UPDATE knowledge_resources SET view_count`).
			WithArgs(id2).
			WillReturnRows(sqlmock.NewRows([]string{"view_count"}))

		repo := sqlxrepos.NewKnowledgeRepository(db)
		views, err := repo.IncrementViews(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, 13, views)

		_, err = repo.IncrementViews(ctx, id2)
		assert.Equal(t, knowledge.ErrResourceNotFound, err)
	})
}

func TestPushRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	subColumns := []string{"id", "user_id", "endpoint", "p256dh", "auth", "user_agent", "created_at", "updated_at"}

	t.Run("missing config", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`FROM push_config WHERE id = 1`).WillReturnRows(sqlmock.NewRows([]string{"enabled"}))
		_, err := sqlxrepos.NewPushRepository(db).GetConfig(ctx)
		assert.Equal(t, push.ErrConfigNotFound, err)
	})

	t.Run("upsert keeps the original row", func(t *testing.T) {
		db, mock := newMockDB(t)
		created := now.Add(-24 * time.Hour)
		mock.ExpectQuery(`INSERT INTO push_subscriptions .+ ON CONFLICT \(endpoint\) DO UPDATE .+ RETURNING`).
			WithArgs(id3, id1, "https://push.example/abc", "key", "secret", nil, now, now).
			WillReturnRows(sqlmock.NewRows(subColumns).
				AddRow(id2, id1, "https://push.example/abc", "key", "secret", nil, created, now))

		sub, err := sqlxrepos.NewPushRepository(db).UpsertSubscription(ctx, push.Subscription{
			ID: id3, UserID: id1, Endpoint: "https://push.example/abc", P256dh: "key", Auth: "secret",
			CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		assert.Equal(t, id2, sub.ID)
		assert.True(t, created.Equal(sub.CreatedAt))
	})

	t.Run("prune endpoints", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`DELETE FROM push_subscriptions WHERE endpoint = ANY\(\$1\)`).
			WithArgs(pq.StringArray{"https://push.example/gone"}).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := sqlxrepos.NewPushRepository(db)
		n, err := repo.DeleteSubscriptionsByEndpoint(ctx, "https://push.example/gone")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.DeleteSubscriptionsByEndpoint(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestI18nRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	cols := []string{"id", "namespace", "key", "language", "value", "created_at", "updated_at"}

	t.Run("upsert in one transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO translations .+ ON CONFLICT \(namespace, key, language\) DO UPDATE`).
			WithArgs(id1, "common", "greeting", "pt-BR", "Olá", now, now).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(id3, "common", "greeting", "pt-BR", "Olá", now.Add(-time.Hour), now))
		mock.ExpectQuery(`INSERT INTO translations`).
			WithArgs(id2, "common", "farewell", "pt-BR", "Tchau", now, now).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(id2, "common", "farewell", "pt-BR", "Tchau", now, now))
		mock.ExpectCommit()

		saved, err := sqlxrepos.NewI18nRepository(db).UpsertTranslations(ctx,
			i18n.Translation{ID: id1, Namespace: "common", Key: "greeting", Language: "pt-BR", Value: "Olá", CreatedAt: now, UpdatedAt: now},
			i18n.Translation{ID: id2, Namespace: "common", Key: "farewell", Language: "pt-BR", Value: "Tchau", CreatedAt: now, UpdatedAt: now},
		)
		require.NoError(t, err)
		require.Len(t, saved, 2)
		assert.Equal(t, id3, saved[0].ID)
		assert.Equal(t, "common.farewell", saved[1].FullKey())
	})

	t.Run("languages", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT DISTINCT language FROM translations ORDER BY language`).
			WillReturnRows(sqlmock.NewRows([]string{"language"}).AddRow("en").AddRow("pt-BR"))

		langs, err := sqlxrepos.NewI18nRepository(db).Languages(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"en", "pt-BR"}, langs)
	})
}
