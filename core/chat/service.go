package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/push"
	"github.com/purelifecenter/portal/core/user"
)

var (
	ErrContactTypeNotFound = core.NewNotFoundError("contact type")
	ErrThreadNotFound      = core.NewNotFoundError("thread")
	ErrContactTypeExists   = errors.New("a contact type with this key already exists")
	ErrSystemContactType   = errors.New("system contact types cannot be deleted")
	ErrNotParticipant      = errors.Wrap(core.ErrForbidden, "not a participant of this thread")
	ErrCannotBroadcast     = errors.Wrap(core.ErrForbidden, "only leaders and admins can send broadcasts")
)

type (
	Repository interface {
		CreateContactType(ctx context.Context, ct ContactType) (ContactType, error)
		QueryContactTypes(ctx context.Context, activeOnly bool) ([]ContactType, error)
		GetContactType(ctx context.Context, id string) (ContactType, error)
		GetContactTypeByKey(ctx context.Context, key string) (ContactType, error)
		UpdateContactType(ctx context.Context, ct ContactType) (ContactType, error)
		DeleteContactType(ctx context.Context, id string) error

		CreateThread(ctx context.Context, t Thread) (Thread, error)
		GetThread(ctx context.Context, id string) (Thread, error)
		// FindThread returns the thread matching the key, or ErrThreadNotFound.
		FindThread(ctx context.Context, key ThreadKey) (Thread, error)
		// QueryThreads returns the threads the user takes part in, directly or through one of roles,
		// newest activity first, with UnreadCount set for the user.
		QueryThreads(ctx context.Context, userID string, roles []string) ([]Thread, error)
		TouchThread(ctx context.Context, id string, lastMessageAt time.Time) error
		MarkThreadRead(ctx context.Context, threadID, userID string, at time.Time) error

		CreateMessage(ctx context.Context, m Message) (Message, error)
		// QueryMessages returns the newest messages before filter.Before, oldest first.
		QueryMessages(ctx context.Context, threadID string, filter MessageFilter) ([]Message, error)

		CreateBroadcast(ctx context.Context, b Broadcast, items []InboxItem) (Broadcast, error)
		QueryBroadcasts(ctx context.Context, senderID string) ([]Broadcast, error)

		QueryInbox(ctx context.Context, userID string, filter InboxFilter) ([]InboxItem, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		MarkInboxRead(ctx context.Context, userID string, at time.Time, ids ...string) (int, error)
		MarkAllInboxRead(ctx context.Context, userID string, at time.Time) (int, error)
	}

	// UserDirectory resolves broadcast audiences.
	UserDirectory interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
		Downline(ctx context.Context, id string) ([]user.User, error)
	}

	// Pusher delivers web push notifications.
	Pusher interface {
		Send(ctx context.Context, userIDs []string, n push.Notification) (push.SendResult, error)
	}

	Service interface {
		CreateContactType(ctx context.Context, nc NewContactType) (ContactType, error)
		QueryContactTypes(ctx context.Context, activeOnly bool) ([]ContactType, error)
		GetContactType(ctx context.Context, id string) (ContactType, error)
		UpdateContactType(ctx context.Context, id string, uc UpdateContactType) (ContactType, error)
		// DeleteContactType returns ErrSystemContactType for system types.
		DeleteContactType(ctx context.Context, id string) error

		// OpenThread reuses the thread with the same participants, role and contact type.
		OpenThread(ctx context.Context, by user.User, nt NewThread) (Thread, error)
		Threads(ctx context.Context, usr user.User) ([]Thread, error)
		GetThread(ctx context.Context, usr user.User, id string) (Thread, error)
		Post(ctx context.Context, by user.User, threadID string, nm NewMessage) (Message, error)
		Messages(ctx context.Context, usr user.User, threadID string, filter MessageFilter) ([]Message, error)
		MarkRead(ctx context.Context, usr user.User, threadID string) error

		SendBroadcast(ctx context.Context, by user.User, nb NewBroadcast) (Broadcast, error)
		Broadcasts(ctx context.Context, by user.User) ([]Broadcast, error)

		Inbox(ctx context.Context, usr user.User, filter InboxFilter) ([]InboxItem, error)
		UnreadCount(ctx context.Context, usr user.User) (int, error)
		MarkInboxRead(ctx context.Context, usr user.User, ids ...string) (int, error)
		MarkAllInboxRead(ctx context.Context, usr user.User) (int, error)
	}

	service struct {
		repo    Repository
		users   UserDirectory
		pusher  Pusher
		mailSvc core.EmailService
		events  core.EventPublisher
		conf    *core.Config
		log     core.Logger
	}
)

var _ Service = (*service)(nil)

type Deps struct {
	Repo    Repository
	Users   UserDirectory
	Pusher  Pusher
	MailSvc core.EmailService
	Events  core.EventPublisher
	Conf    *core.Config
	Log     core.Logger
}

func NewService(deps Deps) Service {
	svc := &service{
		repo:    deps.Repo,
		users:   deps.Users,
		pusher:  deps.Pusher,
		mailSvc: deps.MailSvc,
		events:  deps.Events,
		conf:    deps.Conf,
		log:     deps.Log,
	}
	if svc.events == nil {
		svc.events = core.NoopPublisher{}
	}
	return svc
}

// Contact types

func (svc *service) CreateContactType(ctx context.Context, nc NewContactType) (ContactType, error) {
	if _, err := svc.repo.GetContactTypeByKey(ctx, nc.Key); err == nil {
		return ContactType{}, core.NewValidationError(ErrContactTypeExists, core.FieldError{Field: "key", Error: ErrContactTypeExists.Error()})
	} else if !core.IsNotFound(err) {
		return ContactType{}, errors.Wrap(err, "checking contact type key")
	}

	now := core.NowFunc()
	return svc.repo.CreateContactType(ctx, ContactType{
		ID:          uuid.New().String(),
		Key:         nc.Key,
		Name:        nc.Name,
		Description: nc.Description,
		IsSystem:    nc.IsSystem,
		Active:      nc.Active == nil || *nc.Active,
		SortOrder:   nc.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryContactTypes(ctx context.Context, activeOnly bool) ([]ContactType, error) {
	return svc.repo.QueryContactTypes(ctx, activeOnly)
}

func (svc *service) GetContactType(ctx context.Context, id string) (ContactType, error) {
	return svc.repo.GetContactType(ctx, id)
}

func (svc *service) UpdateContactType(ctx context.Context, id string, uc UpdateContactType) (ContactType, error) {
	ct, err := svc.repo.GetContactType(ctx, id)
	if err != nil {
		return ContactType{}, err
	}
	if uc.Name != nil {
		ct.Name = core.CleanString(*uc.Name)
	}
	if uc.Description != nil {
		ct.Description = core.CleanString(*uc.Description)
	}
	if uc.Active != nil {
		ct.Active = *uc.Active
	}
	if uc.SortOrder != nil {
		ct.SortOrder = *uc.SortOrder
	}
	ct.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateContactType(ctx, ct)
}

func (svc *service) DeleteContactType(ctx context.Context, id string) error {
	ct, err := svc.repo.GetContactType(ctx, id)
	if err != nil {
		return err
	}
	if ct.IsSystem {
		return core.NewValidationError(ErrSystemContactType)
	}
	return svc.repo.DeleteContactType(ctx, id)
}

// Threads

func (svc *service) OpenThread(ctx context.Context, by user.User, nt NewThread) (Thread, error) {
	if nt.ContactTypeID != "" {
		ct, err := svc.repo.GetContactType(ctx, nt.ContactTypeID)
		if err != nil {
			if core.IsNotFound(err) {
				return Thread{}, core.NewFieldError("contact_type_id", ErrContactTypeNotFound.Error())
			}
			return Thread{}, errors.Wrap(err, "getting contact type")
		}
		if !ct.Active {
			return Thread{}, core.NewFieldError("contact_type_id", "contact type is not active")
		}
	}

	key := ThreadKey{
		ParticipantIDs: participantSet(by.ID, nt.RecipientIDs),
		RecipientRole:  nt.RecipientRole,
		ContactTypeID:  nt.ContactTypeID,
	}
	thread, err := svc.repo.FindThread(ctx, key)
	if err != nil {
		if !core.IsNotFound(err) {
			return Thread{}, errors.Wrap(err, "finding thread")
		}
		now := core.NowFunc()
		thread, err = svc.repo.CreateThread(ctx, Thread{
			ID:             uuid.New().String(),
			Subject:        nt.Subject,
			ContactTypeID:  nt.ContactTypeID,
			CreatedBy:      by.ID,
			ParticipantIDs: key.ParticipantIDs,
			RecipientRole:  nt.RecipientRole,
			LastMessageAt:  now,
			CreatedAt:      now,
		})
		if err != nil {
			return Thread{}, errors.Wrap(err, "creating thread")
		}
	}

	if nt.Body != "" {
		msg, err := svc.post(ctx, by, thread, nt.Body)
		if err != nil {
			return Thread{}, err
		}
		thread.LastMessageAt = msg.CreatedAt
	}
	return thread, nil
}

func (svc *service) Threads(ctx context.Context, usr user.User) ([]Thread, error) {
	return svc.repo.QueryThreads(ctx, usr.ID, usr.Roles)
}

// canAccess reports whether usr is a participant or holds the thread role.
func canAccess(t Thread, usr user.User) bool {
	if t.IsParticipant(usr.ID) {
		return true
	}
	return t.RecipientRole != "" && user.HasRolePrefix(usr.Roles, t.RecipientRole)
}

func (svc *service) GetThread(ctx context.Context, usr user.User, id string) (Thread, error) {
	t, err := svc.repo.GetThread(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	if !canAccess(t, usr) {
		return Thread{}, ErrThreadNotFound
	}
	return t, nil
}

func (svc *service) Post(ctx context.Context, by user.User, threadID string, nm NewMessage) (Message, error) {
	t, err := svc.repo.GetThread(ctx, threadID)
	if err != nil {
		return Message{}, err
	}
	if !canAccess(t, by) {
		return Message{}, ErrNotParticipant
	}
	return svc.post(ctx, by, t, nm.Body)
}

func (svc *service) post(ctx context.Context, by user.User, t Thread, body string) (Message, error) {
	msg, err := svc.repo.CreateMessage(ctx, Message{
		ID:        uuid.New().String(),
		ThreadID:  t.ID,
		SenderID:  by.ID,
		Body:      body,
		CreatedAt: core.NowFunc(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if err := svc.repo.TouchThread(ctx, t.ID, msg.CreatedAt); err != nil {
		return Message{}, errors.Wrap(err, "touching thread")
	}
	// the sender has read their own message
	if err := svc.repo.MarkThreadRead(ctx, t.ID, by.ID, msg.CreatedAt); err != nil {
		return Message{}, errors.Wrap(err, "marking thread read")
	}

	t.LastMessageAt = msg.CreatedAt
	if err := svc.events.Publish(ctx, core.TopicChatMessageCreated, MessageEvent{Thread: t, Message: msg}); err != nil {
		svc.log.Warn("publishing chat message", errors.Wrap(err, "publishing"), by)
	}
	return msg, nil
}

func (svc *service) Messages(ctx context.Context, usr user.User, threadID string, filter MessageFilter) ([]Message, error) {
	if _, err := svc.GetThread(ctx, usr, threadID); err != nil {
		return nil, err
	}
	filter.Clean()
	return svc.repo.QueryMessages(ctx, threadID, filter)
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, threadID string) error {
	if _, err := svc.GetThread(ctx, usr, threadID); err != nil {
		return err
	}
	return svc.repo.MarkThreadRead(ctx, threadID, usr.ID, core.NowFunc())
}

// Broadcasts

// recipients resolves the audience of a broadcast sent by "by". Admins reach every active user
// holding one of the audience roles; anybody else, or a downline-only broadcast, is limited to
// the sender's downline. The sender never receives their own broadcast.
func (svc *service) recipients(ctx context.Context, by user.User, nb NewBroadcast) ([]user.User, error) {
	var (
		candidates []user.User
		err        error
	)
	if by.IsAdmin() && !nb.DownlineOnly {
		candidates, err = svc.users.Query(ctx, &user.QueryFilter{IsActive: core.BoolPtr(true)}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "querying users")
		}
	} else {
		candidates, err = svc.users.Downline(ctx, by.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying downline")
		}
	}

	out := make([]user.User, 0, len(candidates))
	for _, u := range candidates {
		if u.ID == by.ID || !u.IsActive {
			continue
		}
		if !user.HasRolePrefix(u.Roles, nb.AudienceRoles...) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (svc *service) SendBroadcast(ctx context.Context, by user.User, nb NewBroadcast) (Broadcast, error) {
	if !by.IsAdmin() && !by.IsLeader() {
		return Broadcast{}, ErrCannotBroadcast
	}

	recipients, err := svc.recipients(ctx, by, nb)
	if err != nil {
		return Broadcast{}, err
	}

	now := core.NowFunc()
	b := Broadcast{
		ID:             uuid.New().String(),
		SenderID:       by.ID,
		SenderName:     by.DisplayName(),
		Title:          nb.Title,
		Body:           nb.Body,
		AudienceRoles:  nb.AudienceRoles,
		DownlineOnly:   nb.DownlineOnly,
		Channels:       nb.channels(),
		RecipientCount: len(recipients),
		SentAt:         now,
	}
	if b.AudienceRoles == nil {
		b.AudienceRoles = []string{}
	}

	items := make([]InboxItem, len(recipients))
	ids := make([]string, len(recipients))
	for i, u := range recipients {
		ids[i] = u.ID
		items[i] = InboxItem{
			ID:          uuid.New().String(),
			RecipientID: u.ID,
			Kind:        KindBroadcast,
			Title:       b.Title,
			Body:        b.Body,
			SourceID:    b.ID,
			CreatedAt:   now,
		}
	}

	b, err = svc.repo.CreateBroadcast(ctx, b, items)
	if err != nil {
		return Broadcast{}, errors.Wrap(err, "saving broadcast")
	}

	if hasChannel(b.Channels, ChannelEmail) {
		svc.sendBroadcastMail(b, recipients)
	}
	if hasChannel(b.Channels, ChannelPush) && len(ids) > 0 {
		res, err := svc.pusher.Send(ctx, ids, push.Notification{
			Title: b.Title,
			Body:  truncate(b.Body, 180),
			URL:   "/inbox",
			Tag:   "broadcast-" + b.ID,
		})
		switch {
		case errors.Is(err, push.ErrDisabled), errors.Is(err, push.ErrNoKeys):
			svc.log.Info("broadcast push skipped: "+err.Error(), by)
		case err != nil:
			svc.log.Error("sending broadcast push", errors.Wrap(err, "pushing"), by)
		default:
			svc.log.Debug("broadcast push sent", map[string]interface{}{
				"sent": res.Sent, "failed": res.Failed, "removed": res.Removed,
			})
		}
	}

	if err := svc.events.Publish(ctx, core.TopicBroadcastSent, b); err != nil {
		svc.log.Warn("publishing broadcast", errors.Wrap(err, "publishing"), by)
	}
	return b, nil
}

func (svc *service) sendBroadcastMail(b Broadcast, recipients []user.User) {
	data := struct {
		Title      string
		Body       string
		SenderName string
	}{b.Title, b.Body, b.SenderName}

	msgs := make([]*core.EmailMessage, 0, len(recipients))
	for i := range recipients {
		u := &recipients[i]
		if u.Email == "" {
			continue
		}
		to := svc.conf.DefaultFromEmail()
		to.Name = u.DisplayName()
		to.Address = u.Email

		msg := core.NewEmailMessage(svc.conf, "broadcast", b.Title, data, to)
		if err := msg.Render(); err != nil {
			svc.log.Error("rendering broadcast email", errors.Wrap(err, "rendering"))
			return
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (svc *service) Broadcasts(ctx context.Context, by user.User) ([]Broadcast, error) {
	if by.IsAdmin() {
		return svc.repo.QueryBroadcasts(ctx, "")
	}
	if !by.IsLeader() {
		return nil, ErrCannotBroadcast
	}
	return svc.repo.QueryBroadcasts(ctx, by.ID)
}

// Inbox

func (svc *service) Inbox(ctx context.Context, usr user.User, filter InboxFilter) ([]InboxItem, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultMessagesLimit
	} else if filter.Limit > maxMessagesLimit {
		filter.Limit = maxMessagesLimit
	}
	return svc.repo.QueryInbox(ctx, usr.ID, filter)
}

func (svc *service) UnreadCount(ctx context.Context, usr user.User) (int, error) {
	return svc.repo.CountUnread(ctx, usr.ID)
}

func (svc *service) MarkInboxRead(ctx context.Context, usr user.User, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.MarkInboxRead(ctx, usr.ID, core.NowFunc(), ids...)
}

func (svc *service) MarkAllInboxRead(ctx context.Context, usr user.User) (int, error) {
	return svc.repo.MarkAllInboxRead(ctx, usr.ID, core.NowFunc())
}
