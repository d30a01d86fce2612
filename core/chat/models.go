package chat

import (
	"sort"
	"time"

	"github.com/purelifecenter/portal/core"
)

// Broadcast channels
const (
	ChannelInbox = "inbox"
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Inbox item kinds
const (
	KindBroadcast = "broadcast"
	KindSystem    = "system"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 200
)

// ContactType classifies conversations ("Order question", "Technical support"...).
type ContactType struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	Active      bool      `json:"active"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewContactType struct {
	Key         string `json:"key" validate:"required,slug,max=50"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	IsSystem    bool   `json:"is_system"`
	Active      *bool  `json:"active"`
	SortOrder   int    `json:"sort_order"`
}

func (nc *NewContactType) Validate() error {
	nc.Key = core.CleanString(nc.Key, true /* lower */)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return core.Validate.Struct(nc)
}

type UpdateContactType struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Active      *bool   `json:"active"`
	SortOrder   *int    `json:"sort_order"`
}

func (uc *UpdateContactType) Validate() error { return core.Validate.Struct(uc) }

// Thread is a private conversation between participants, optionally addressed to a role
// (e.g. every "admin:support" user).
type Thread struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	ContactTypeID  string    `json:"contact_type_id,omitempty"`
	CreatedBy      string    `json:"created_by"`
	ParticipantIDs []string  `json:"participant_ids"`
	RecipientRole  string    `json:"recipient_role,omitempty"`
	LastMessageAt  time.Time `json:"last_message_at"`
	CreatedAt      time.Time `json:"created_at"`
	UnreadCount    int       `json:"unread_count"`
}

// IsParticipant reports whether the user takes part in the thread directly.
func (t Thread) IsParticipant(userID string) bool {
	for _, id := range t.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type NewThread struct {
	Subject       string   `json:"subject" validate:"required,max=200"`
	ContactTypeID string   `json:"contact_type_id" validate:"omitempty,uuid"`
	RecipientIDs  []string `json:"recipient_ids" validate:"omitempty,max=50,dive,uuid"`
	RecipientRole string   `json:"recipient_role" validate:"omitempty,allroles_one"`
	Body          string   `json:"body" validate:"max=10000"`
}

func (nt *NewThread) Validate() error {
	nt.Subject = core.CleanString(nt.Subject)
	nt.RecipientIDs = core.CleanStrings(nt.RecipientIDs)
	nt.RecipientRole = core.CleanString(nt.RecipientRole, true /* lower */)
	nt.Body = core.CleanString(nt.Body)
	if err := core.Validate.Struct(nt); err != nil {
		return err
	}
	if len(nt.RecipientIDs) == 0 && nt.RecipientRole == "" {
		return core.NewFieldError("recipient_ids", "one of recipient_ids or recipient_role is required")
	}
	return nil
}

// participantSet returns the sorted, de-duplicated participant ids.
func participantSet(creatorID string, recipients []string) []string {
	seen := map[string]bool{creatorID: true}
	ids := []string{creatorID}
	for _, id := range recipients {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ThreadKey identifies a conversation for reuse.
type ThreadKey struct {
	ParticipantIDs []string // sorted
	RecipientRole  string
	ContactTypeID  string
}

type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type NewMessage struct {
	Body string `json:"body" validate:"required,max=10000"`
}

func (nm *NewMessage) Validate() error {
	nm.Body = core.CleanString(nm.Body)
	return core.Validate.Struct(nm)
}

type MessageFilter struct {
	Before time.Time
	Limit  int
}

func (mf *MessageFilter) Clean() {
	if mf.Limit <= 0 {
		mf.Limit = defaultMessagesLimit
	} else if mf.Limit > maxMessagesLimit {
		mf.Limit = maxMessagesLimit
	}
}

// MessageEvent is published on every new message.
type MessageEvent struct {
	Thread  Thread  `json:"thread"`
	Message Message `json:"message"`
}

// Broadcast is a message sent by a leader or an admin to a team.
type Broadcast struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	AudienceRoles  []string  `json:"audience_roles"`
	DownlineOnly   bool      `json:"downline_only"`
	Channels       []string  `json:"channels"`
	RecipientCount int       `json:"recipient_count"`
	SentAt         time.Time `json:"sent_at"`
}

type NewBroadcast struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Body          string   `json:"body" validate:"required,max=20000"`
	AudienceRoles []string `json:"audience_roles" validate:"omitempty,allroles"`
	DownlineOnly  bool     `json:"downline_only"`
	Channels      []string `json:"channels" validate:"omitempty,dive,oneof=inbox email push"`
}

func (nb *NewBroadcast) Validate() error {
	nb.Title = core.CleanString(nb.Title)
	nb.Body = core.CleanString(nb.Body)
	nb.AudienceRoles = core.CleanStrings(nb.AudienceRoles, true /* lower */)
	nb.Channels = core.CleanStrings(nb.Channels, true /* lower */)
	return core.Validate.Struct(nb)
}

// channels always includes the inbox; the order is fixed.
func (nb NewBroadcast) channels() []string {
	want := map[string]bool{ChannelInbox: true}
	for _, c := range nb.Channels {
		want[c] = true
	}
	out := make([]string, 0, 3)
	for _, c := range []string{ChannelInbox, ChannelEmail, ChannelPush} {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}

func hasChannel(channels []string, c string) bool {
	for _, ch := range channels {
		if ch == c {
			return true
		}
	}
	return false
}

type InboxItem struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	SourceID    string     `json:"source_id,omitempty"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type InboxFilter struct {
	UnreadOnly bool
	Limit      int
}
