package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/user"
)

type chatRepository struct {
	db *chatTables
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db.chat}
}

// Contact types

func (repo *chatRepository) CreateContactType(_ context.Context, ct chat.ContactType) (chat.ContactType, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.contactTypes[ct.ID] = &ct
	return ct, nil
}

func (repo *chatRepository) QueryContactTypes(_ context.Context, activeOnly bool) ([]chat.ContactType, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cts := make([]chat.ContactType, 0, len(repo.db.contactTypes))
	for _, ct := range repo.db.contactTypes {
		if activeOnly && !ct.Active {
			continue
		}
		cts = append(cts, *ct)
	}
	sort.SliceStable(cts, func(i, j int) bool {
		if cts[i].SortOrder != cts[j].SortOrder {
			return cts[i].SortOrder < cts[j].SortOrder
		}
		return cts[i].Name < cts[j].Name
	})
	return cts, nil
}

func (repo *chatRepository) GetContactType(_ context.Context, id string) (chat.ContactType, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ct, ok := repo.db.contactTypes[id]; ok {
		return *ct, nil
	}
	return chat.ContactType{}, chat.ErrContactTypeNotFound
}

func (repo *chatRepository) GetContactTypeByKey(_ context.Context, key string) (chat.ContactType, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ct := range repo.db.contactTypes {
		if ct.Key == key {
			return *ct, nil
		}
	}
	return chat.ContactType{}, chat.ErrContactTypeNotFound
}

func (repo *chatRepository) UpdateContactType(_ context.Context, ct chat.ContactType) (chat.ContactType, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.contactTypes[ct.ID]; !ok {
		return chat.ContactType{}, chat.ErrContactTypeNotFound
	}
	repo.db.contactTypes[ct.ID] = &ct
	return ct, nil
}

func (repo *chatRepository) DeleteContactType(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.contactTypes[id]; !ok {
		return chat.ErrContactTypeNotFound
	}
	delete(repo.db.contactTypes, id)
	for _, t := range repo.db.threads {
		if t.ContactTypeID == id {
			t.ContactTypeID = ""
		}
	}
	return nil
}

// Threads

func (repo *chatRepository) CreateThread(_ context.Context, t chat.Thread) (chat.Thread, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := t
	stored.ParticipantIDs = copyStrings(t.ParticipantIDs)
	repo.db.threads[t.ID] = &stored
	return t, nil
}

func (repo *chatRepository) GetThread(_ context.Context, id string) (chat.Thread, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.threads[id]; ok {
		thread := *t
		thread.ParticipantIDs = copyStrings(t.ParticipantIDs)
		return thread, nil
	}
	return chat.Thread{}, chat.ErrThreadNotFound
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (repo *chatRepository) FindThread(_ context.Context, key chat.ThreadKey) (chat.Thread, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.threads {
		if t.RecipientRole == key.RecipientRole && t.ContactTypeID == key.ContactTypeID &&
			sameStrings(t.ParticipantIDs, key.ParticipantIDs) {
			thread := *t
			thread.ParticipantIDs = copyStrings(t.ParticipantIDs)
			return thread, nil
		}
	}
	return chat.Thread{}, chat.ErrThreadNotFound
}

func (repo *chatRepository) unread(threadID, userID string) int {
	lastRead := repo.db.reads[threadID][userID]
	n := 0
	for _, m := range repo.db.messages {
		if m.ThreadID == threadID && m.SenderID != userID && m.CreatedAt.After(lastRead) {
			n++
		}
	}
	return n
}

func (repo *chatRepository) QueryThreads(_ context.Context, userID string, roles []string) ([]chat.Thread, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	threads := make([]chat.Thread, 0)
	for _, t := range repo.db.threads {
		if !t.IsParticipant(userID) && (t.RecipientRole == "" || !user.HasRolePrefix(roles, t.RecipientRole)) {
			continue
		}
		thread := *t
		thread.ParticipantIDs = copyStrings(t.ParticipantIDs)
		thread.UnreadCount = repo.unread(t.ID, userID)
		threads = append(threads, thread)
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastMessageAt.After(threads[j].LastMessageAt)
	})
	return threads, nil
}

func (repo *chatRepository) TouchThread(_ context.Context, id string, lastMessageAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.threads[id]
	if !ok {
		return chat.ErrThreadNotFound
	}
	if lastMessageAt.After(t.LastMessageAt) {
		t.LastMessageAt = lastMessageAt
	}
	return nil
}

func (repo *chatRepository) MarkThreadRead(_ context.Context, threadID, userID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.threads[threadID]; !ok {
		return chat.ErrThreadNotFound
	}
	reads, ok := repo.db.reads[threadID]
	if !ok {
		reads = make(map[string]time.Time)
		repo.db.reads[threadID] = reads
	}
	if at.After(reads[userID]) {
		reads[userID] = at
	}
	return nil
}

// Messages

func (repo *chatRepository) CreateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.threads[m.ThreadID]; !ok {
		return chat.Message{}, chat.ErrThreadNotFound
	}
	repo.db.messages = append(repo.db.messages, m)
	return m, nil
}

func (repo *chatRepository) QueryMessages(_ context.Context, threadID string, filter chat.MessageFilter) ([]chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]chat.Message, 0)
	for _, m := range repo.db.messages {
		if m.ThreadID != threadID {
			continue
		}
		if !filter.Before.IsZero() && !m.CreatedAt.Before(filter.Before) {
			continue
		}
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if filter.Limit > 0 && len(msgs) > filter.Limit {
		msgs = msgs[len(msgs)-filter.Limit:]
	}
	return msgs, nil
}

// Broadcasts and inbox

func (repo *chatRepository) CreateBroadcast(_ context.Context, b chat.Broadcast, items []chat.InboxItem) (chat.Broadcast, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := b
	stored.AudienceRoles = copyStrings(b.AudienceRoles)
	stored.Channels = copyStrings(b.Channels)
	repo.db.broadcasts = append(repo.db.broadcasts, stored)
	for i := range items {
		item := items[i]
		repo.db.inbox = append(repo.db.inbox, &item)
	}
	return b, nil
}

func (repo *chatRepository) QueryBroadcasts(_ context.Context, senderID string) ([]chat.Broadcast, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	bs := make([]chat.Broadcast, 0)
	for i := len(repo.db.broadcasts) - 1; i >= 0; i-- {
		if b := repo.db.broadcasts[i]; senderID == "" || b.SenderID == senderID {
			bs = append(bs, b)
		}
	}
	return bs, nil
}

func (repo *chatRepository) QueryInbox(_ context.Context, userID string, filter chat.InboxFilter) ([]chat.InboxItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	items := make([]chat.InboxItem, 0)
	for i := len(repo.db.inbox) - 1; i >= 0; i-- {
		item := repo.db.inbox[i]
		if item.RecipientID != userID || (filter.UnreadOnly && item.ReadAt != nil) {
			continue
		}
		items = append(items, *item)
		if filter.Limit > 0 && len(items) == filter.Limit {
			break
		}
	}
	return items, nil
}

func (repo *chatRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	n := 0
	for _, item := range repo.db.inbox {
		if item.RecipientID == userID && item.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (repo *chatRepository) MarkInboxRead(_ context.Context, userID string, at time.Time, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, item := range repo.db.inbox {
		if item.RecipientID == userID && item.ReadAt == nil && containsString(ids, item.ID) {
			readAt := at
			item.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (repo *chatRepository) MarkAllInboxRead(_ context.Context, userID string, at time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, item := range repo.db.inbox {
		if item.RecipientID == userID && item.ReadAt == nil {
			readAt := at
			item.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}
