package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/purelifecenter/portal/core/chat"
)

const (
	contactTypeColumns = "id, key, name, description, is_system, active, sort_order, created_at, updated_at"
	threadColumns      = "id, subject, contact_type_id, created_by, participant_ids, recipient_role, last_message_at, created_at"
	messageColumns     = "id, thread_id, sender_id, body, created_at"
	broadcastColumns   = `id, sender_id, sender_name, title, body, audience_roles, downline_only, channels,
	recipient_count, sent_at`
	inboxColumns = "id, recipient_id, kind, title, body, source_id, read_at, created_at"
)

type contactTypeRow struct {
	ID          string    `db:"id"`
	Key         string    `db:"key"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsSystem    bool      `db:"is_system"`
	Active      bool      `db:"active"`
	SortOrder   int       `db:"sort_order"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r contactTypeRow) contactType() chat.ContactType {
	ct := chat.ContactType(r)
	ct.CreatedAt = ct.CreatedAt.UTC()
	ct.UpdatedAt = ct.UpdatedAt.UTC()
	return ct
}

type threadRow struct {
	ID             string         `db:"id"`
	Subject        string         `db:"subject"`
	ContactTypeID  null.String    `db:"contact_type_id"`
	CreatedBy      string         `db:"created_by"`
	ParticipantIDs pq.StringArray `db:"participant_ids"`
	RecipientRole  string         `db:"recipient_role"`
	LastMessageAt  time.Time      `db:"last_message_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UnreadCount    int            `db:"unread_count"`
}

func (r threadRow) thread() chat.Thread {
	return chat.Thread{
		ID:             r.ID,
		Subject:        r.Subject,
		ContactTypeID:  r.ContactTypeID.String,
		CreatedBy:      r.CreatedBy,
		ParticipantIDs: []string(r.ParticipantIDs),
		RecipientRole:  r.RecipientRole,
		LastMessageAt:  r.LastMessageAt.UTC(),
		CreatedAt:      r.CreatedAt.UTC(),
		UnreadCount:    r.UnreadCount,
	}
}

type messageRow struct {
	ID        string    `db:"id"`
	ThreadID  string    `db:"thread_id"`
	SenderID  string    `db:"sender_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

type broadcastRow struct {
	ID             string         `db:"id"`
	SenderID       string         `db:"sender_id"`
	SenderName     string         `db:"sender_name"`
	Title          string         `db:"title"`
	Body           string         `db:"body"`
	AudienceRoles  pq.StringArray `db:"audience_roles"`
	DownlineOnly   bool           `db:"downline_only"`
	Channels       pq.StringArray `db:"channels"`
	RecipientCount int            `db:"recipient_count"`
	SentAt         time.Time      `db:"sent_at"`
}

func toBroadcastRow(b chat.Broadcast) broadcastRow {
	roles, channels := b.AudienceRoles, b.Channels
	if roles == nil {
		roles = []string{}
	}
	if channels == nil {
		channels = []string{}
	}
	return broadcastRow{
		ID:             b.ID,
		SenderID:       b.SenderID,
		SenderName:     b.SenderName,
		Title:          b.Title,
		Body:           b.Body,
		AudienceRoles:  roles,
		DownlineOnly:   b.DownlineOnly,
		Channels:       channels,
		RecipientCount: b.RecipientCount,
		SentAt:         b.SentAt.UTC(),
	}
}

func (r broadcastRow) broadcast() chat.Broadcast {
	return chat.Broadcast{
		ID:             r.ID,
		SenderID:       r.SenderID,
		SenderName:     r.SenderName,
		Title:          r.Title,
		Body:           r.Body,
		AudienceRoles:  []string(r.AudienceRoles),
		DownlineOnly:   r.DownlineOnly,
		Channels:       []string(r.Channels),
		RecipientCount: r.RecipientCount,
		SentAt:         r.SentAt.UTC(),
	}
}

type inboxRow struct {
	ID          string      `db:"id"`
	RecipientID string      `db:"recipient_id"`
	Kind        string      `db:"kind"`
	Title       string      `db:"title"`
	Body        string      `db:"body"`
	SourceID    null.String `db:"source_id"`
	ReadAt      null.Time   `db:"read_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

func toInboxRow(i chat.InboxItem) inboxRow {
	return inboxRow{
		ID:          i.ID,
		RecipientID: i.RecipientID,
		Kind:        i.Kind,
		Title:       i.Title,
		Body:        i.Body,
		SourceID:    nullString(i.SourceID),
		ReadAt:      nullTimePtr(i.ReadAt),
		CreatedAt:   i.CreatedAt.UTC(),
	}
}

func (r inboxRow) item() chat.InboxItem {
	i := chat.InboxItem{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Kind:        r.Kind,
		Title:       r.Title,
		Body:        r.Body,
		SourceID:    r.SourceID.String,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.ReadAt.Valid {
		at := r.ReadAt.Time.UTC()
		i.ReadAt = &at
	}
	return i
}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db *sqlx.DB) chat.Repository {
	return &chatRepository{db: db}
}

// Contact types

func (repo *chatRepository) CreateContactType(ctx context.Context, ct chat.ContactType) (chat.ContactType, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO contact_types (`+contactTypeColumns+`)
		VALUES (:id, :key, :name, :description, :is_system, :active, :sort_order, :created_at, :updated_at)`,
		contactTypeRow(ct))
	if err != nil {
		return chat.ContactType{}, errors.Wrap(err, "inserting contact type")
	}
	return ct, nil
}

func (repo *chatRepository) QueryContactTypes(ctx context.Context, activeOnly bool) ([]chat.ContactType, error) {
	q := "SELECT " + contactTypeColumns + " FROM contact_types"
	if activeOnly {
		q += " WHERE active"
	}
	var rows []contactTypeRow
	if err := repo.db.SelectContext(ctx, &rows, q+" ORDER BY sort_order, name"); err != nil {
		return nil, errors.Wrap(err, "querying contact types")
	}
	cts := make([]chat.ContactType, 0, len(rows))
	for _, r := range rows {
		cts = append(cts, r.contactType())
	}
	return cts, nil
}

func (repo *chatRepository) getContactType(ctx context.Context, col, val string) (chat.ContactType, error) {
	var row contactTypeRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+contactTypeColumns+" FROM contact_types WHERE "+col+" = $1", val)
	if err != nil {
		return chat.ContactType{}, trapNoRows(err, chat.ErrContactTypeNotFound, "getting contact type")
	}
	return row.contactType(), nil
}

func (repo *chatRepository) GetContactType(ctx context.Context, id string) (chat.ContactType, error) {
	if !isUUID(id) {
		return chat.ContactType{}, chat.ErrContactTypeNotFound
	}
	return repo.getContactType(ctx, "id", id)
}

func (repo *chatRepository) GetContactTypeByKey(ctx context.Context, key string) (chat.ContactType, error) {
	return repo.getContactType(ctx, "key", key)
}

func (repo *chatRepository) UpdateContactType(ctx context.Context, ct chat.ContactType) (chat.ContactType, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE contact_types SET name = :name, description = :description, active = :active,
			sort_order = :sort_order, updated_at = :updated_at
		WHERE id = :id`,
		contactTypeRow(ct)))
	if err != nil {
		return chat.ContactType{}, errors.Wrap(err, "updating contact type")
	}
	if n == 0 {
		return chat.ContactType{}, chat.ErrContactTypeNotFound
	}
	return ct, nil
}

func (repo *chatRepository) DeleteContactType(ctx context.Context, id string) error {
	if !isUUID(id) {
		return chat.ErrContactTypeNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM contact_types WHERE id = $1", id))
	if err != nil {
		return errors.Wrap(err, "deleting contact type")
	}
	if n == 0 {
		return chat.ErrContactTypeNotFound
	}
	return nil
}

// Threads

func (repo *chatRepository) CreateThread(ctx context.Context, t chat.Thread) (chat.Thread, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO chat_threads (`+threadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Subject, nullString(t.ContactTypeID), t.CreatedBy, pq.StringArray(t.ParticipantIDs),
		t.RecipientRole, t.LastMessageAt.UTC(), t.CreatedAt.UTC())
	if err != nil {
		return chat.Thread{}, errors.Wrap(err, "inserting thread")
	}
	return t, nil
}

func (repo *chatRepository) GetThread(ctx context.Context, id string) (chat.Thread, error) {
	if !isUUID(id) {
		return chat.Thread{}, chat.ErrThreadNotFound
	}
	var row threadRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+threadColumns+" FROM chat_threads WHERE id = $1", id)
	if err != nil {
		return chat.Thread{}, trapNoRows(err, chat.ErrThreadNotFound, "getting thread")
	}
	return row.thread(), nil
}

func (repo *chatRepository) FindThread(ctx context.Context, key chat.ThreadKey) (chat.Thread, error) {
	var row threadRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT `+threadColumns+` FROM chat_threads
		WHERE participant_ids = $1 AND recipient_role = $2 AND contact_type_id IS NOT DISTINCT FROM $3
		ORDER BY created_at LIMIT 1`,
		pq.StringArray(key.ParticipantIDs), key.RecipientRole, nullString(key.ContactTypeID))
	if err != nil {
		return chat.Thread{}, trapNoRows(err, chat.ErrThreadNotFound, "finding thread")
	}
	return row.thread(), nil
}

func (repo *chatRepository) QueryThreads(ctx context.Context, userID string, roles []string) ([]chat.Thread, error) {
	threads := make([]chat.Thread, 0)
	if !isUUID(userID) {
		return threads, nil
	}
	if roles == nil {
		roles = []string{}
	}
	var rows []threadRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+threadColumns+`,
			(SELECT count(*) FROM chat_messages m
			 WHERE m.thread_id = t.id AND m.sender_id::text <> $1::text
			   AND m.created_at > COALESCE(
				(SELECT r.last_read_at FROM chat_thread_reads r WHERE r.thread_id = t.id AND r.user_id::text = $1::text),
				'-infinity'::timestamptz)
			) AS unread_count
		FROM chat_threads t
		WHERE $1::text = ANY(t.participant_ids)
		   OR (t.recipient_role <> '' AND EXISTS (
				SELECT 1 FROM UNNEST($2::text[]) user_role WHERE user_role LIKE t.recipient_role || '%'))
		ORDER BY t.last_message_at DESC`,
		userID, pq.StringArray(roles))
	if err != nil {
		return nil, errors.Wrap(err, "querying threads")
	}
	for _, r := range rows {
		threads = append(threads, r.thread())
	}
	return threads, nil
}

func (repo *chatRepository) TouchThread(ctx context.Context, id string, lastMessageAt time.Time) error {
	if !isUUID(id) {
		return chat.ErrThreadNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx,
		"UPDATE chat_threads SET last_message_at = GREATEST(last_message_at, $2) WHERE id = $1",
		id, lastMessageAt.UTC()))
	if err != nil {
		return errors.Wrap(err, "touching thread")
	}
	if n == 0 {
		return chat.ErrThreadNotFound
	}
	return nil
}

func (repo *chatRepository) MarkThreadRead(ctx context.Context, threadID, userID string, at time.Time) error {
	if !isUUID(threadID) {
		return chat.ErrThreadNotFound
	}
	n, err := affected(repo.db.ExecContext(ctx, `
		INSERT INTO chat_thread_reads (thread_id, user_id, last_read_at)
		SELECT id, $2, $3 FROM chat_threads WHERE id = $1
		ON CONFLICT (thread_id, user_id) DO UPDATE
			SET last_read_at = GREATEST(chat_thread_reads.last_read_at, EXCLUDED.last_read_at)`,
		threadID, userID, at.UTC()))
	if err != nil {
		return errors.Wrap(err, "marking thread read")
	}
	if n == 0 {
		return chat.ErrThreadNotFound
	}
	return nil
}

// Messages

func (repo *chatRepository) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if !isUUID(m.ThreadID) {
		return chat.Message{}, chat.ErrThreadNotFound
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO chat_messages (`+messageColumns+`)
		VALUES (:id, :thread_id, :sender_id, :body, :created_at)`,
		messageRow{ID: m.ID, ThreadID: m.ThreadID, SenderID: m.SenderID, Body: m.Body, CreatedAt: m.CreatedAt.UTC()})
	if isViolation(err, foreignKeyViolation) {
		return chat.Message{}, chat.ErrThreadNotFound
	}
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, threadID string, filter chat.MessageFilter) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0)
	if !isUUID(threadID) {
		return msgs, nil
	}
	w := where{}
	w.add("thread_id = ?", threadID)
	if !filter.Before.IsZero() {
		w.add("created_at < ?", filter.Before.UTC())
	}
	q := "SELECT " + messageColumns + " FROM chat_messages" + w.String() + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		w.args = append(w.args, filter.Limit)
	}
	q = "SELECT * FROM (" + q + ") newest ORDER BY created_at ASC"

	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	for _, r := range rows {
		msgs = append(msgs, chat.Message{
			ID:        r.ID,
			ThreadID:  r.ThreadID,
			SenderID:  r.SenderID,
			Body:      r.Body,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}

// Broadcasts and inbox

func (repo *chatRepository) CreateBroadcast(ctx context.Context, b chat.Broadcast, items []chat.InboxItem) (chat.Broadcast, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO broadcasts (`+broadcastColumns+`)
			VALUES (:id, :sender_id, :sender_name, :title, :body, :audience_roles, :downline_only, :channels,
				:recipient_count, :sent_at)`,
			toBroadcastRow(b))
		if err != nil {
			return errors.Wrap(err, "inserting broadcast")
		}
		for _, item := range items {
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO inbox_items (`+inboxColumns+`)
				VALUES (:id, :recipient_id, :kind, :title, :body, :source_id, :read_at, :created_at)`,
				toInboxRow(item))
			if err != nil {
				return errors.Wrap(err, "inserting inbox item")
			}
		}
		return nil
	})
	if err != nil {
		return chat.Broadcast{}, err
	}
	return b, nil
}

func (repo *chatRepository) QueryBroadcasts(ctx context.Context, senderID string) ([]chat.Broadcast, error) {
	bs := make([]chat.Broadcast, 0)
	var w where
	if senderID != "" {
		if !isUUID(senderID) {
			return bs, nil
		}
		w.add("sender_id = ?", senderID)
	}
	var rows []broadcastRow
	q := "SELECT " + broadcastColumns + " FROM broadcasts" + w.String() + " ORDER BY sent_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying broadcasts")
	}
	for _, r := range rows {
		bs = append(bs, r.broadcast())
	}
	return bs, nil
}

func (repo *chatRepository) QueryInbox(ctx context.Context, userID string, filter chat.InboxFilter) ([]chat.InboxItem, error) {
	items := make([]chat.InboxItem, 0)
	if !isUUID(userID) {
		return items, nil
	}
	w := where{}
	w.add("recipient_id = ?", userID)
	if filter.UnreadOnly {
		w.add("read_at IS NULL")
	}
	q := "SELECT " + inboxColumns + " FROM inbox_items" + w.String() + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		w.args = append(w.args, filter.Limit)
	}
	var rows []inboxRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying inbox")
	}
	for _, r := range rows {
		items = append(items, r.item())
	}
	return items, nil
}

func (repo *chatRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	if !isUUID(userID) {
		return 0, nil
	}
	var n int
	err := repo.db.GetContext(ctx, &n,
		"SELECT count(*) FROM inbox_items WHERE recipient_id = $1 AND read_at IS NULL", userID)
	return n, errors.Wrap(err, "counting unread inbox items")
}

func (repo *chatRepository) MarkInboxRead(ctx context.Context, userID string, at time.Time, ids ...string) (int, error) {
	if !isUUID(userID) || len(ids) == 0 {
		return 0, nil
	}
	n, err := affected(repo.db.ExecContext(ctx, `
		UPDATE inbox_items SET read_at = $2
		WHERE recipient_id = $1 AND read_at IS NULL AND id::text = ANY($3)`,
		userID, at.UTC(), pq.StringArray(ids)))
	return n, errors.Wrap(err, "marking inbox items read")
}

func (repo *chatRepository) MarkAllInboxRead(ctx context.Context, userID string, at time.Time) (int, error) {
	if !isUUID(userID) {
		return 0, nil
	}
	n, err := affected(repo.db.ExecContext(ctx,
		"UPDATE inbox_items SET read_at = $2 WHERE recipient_id = $1 AND read_at IS NULL",
		userID, at.UTC()))
	return n, errors.Wrap(err, "marking inbox read")
}
