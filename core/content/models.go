package content

import (
	"sort"
	"time"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
)

// Severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Audiences
const (
	AudienceAll    = "all"
	AudienceMember = "member"
	AudienceLeader = "leader"
	AudienceAdmin  = "admin"
)

var (
	severityRank = map[string]int{SeverityCritical: 0, SeverityWarning: 1, SeverityInfo: 2}

	audienceRoles = map[string]string{
		AudienceMember: user.RoleMember,
		AudienceLeader: user.RoleLeader,
		AudienceAdmin:  user.RoleAdmin,
	}
)

// Banner is an "important info" message shown at the top of the portal.
type Banner struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Message     string     `json:"message" db:"message"`
	Severity    string     `json:"severity" db:"severity"`
	Audience    string     `json:"audience" db:"audience"`
	Active      bool       `json:"active" db:"active"`
	Dismissible bool       `json:"dismissible" db:"dismissible"`
	StartsAt    time.Time  `json:"starts_at" db:"starts_at"`
	EndsAt      *time.Time `json:"ends_at" db:"ends_at"`
	SortOrder   int        `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// VisibleTo reports whether the banner is shown at t to a user holding roles.
// Anonymous visitors (no roles) only see banners for everyone.
func (b Banner) VisibleTo(t time.Time, roles []string) bool {
	if !b.Active || t.Before(b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && !t.Before(*b.EndsAt) {
		return false
	}
	if b.Audience == AudienceAll || b.Audience == "" {
		return true
	}
	prefix, ok := audienceRoles[b.Audience]
	return ok && user.HasRolePrefix(roles, prefix)
}

type NewBanner struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Message     string     `json:"message" validate:"required,max=4000"`
	Severity    string     `json:"severity" validate:"omitempty,oneof=info warning critical"`
	Audience    string     `json:"audience" validate:"omitempty,oneof=all member leader admin"`
	Active      *bool      `json:"active"`
	Dismissible *bool      `json:"dismissible"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	SortOrder   int        `json:"sort_order"`
}

func (nb *NewBanner) Validate() error {
	nb.Title = core.CleanString(nb.Title)
	nb.Message = core.CleanString(nb.Message)
	nb.Severity = core.CleanString(nb.Severity, true /* lower */)
	nb.Audience = core.CleanString(nb.Audience, true /* lower */)
	if err := core.Validate.Struct(nb); err != nil {
		return err
	}
	return validateWindow(nb.StartsAt, nb.EndsAt)
}

type UpdateBanner struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Message     *string    `json:"message" validate:"omitempty,notblank,max=4000"`
	Severity    *string    `json:"severity" validate:"omitempty,oneof=info warning critical"`
	Audience    *string    `json:"audience" validate:"omitempty,oneof=all member leader admin"`
	Active      *bool      `json:"active"`
	Dismissible *bool      `json:"dismissible"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	ClearEndsAt bool       `json:"clear_ends_at"`
	SortOrder   *int       `json:"sort_order"`
}

func (ub *UpdateBanner) Validate() error { return core.Validate.Struct(ub) }

func (ub UpdateBanner) Apply(b Banner) (Banner, error) {
	if ub.Title != nil {
		b.Title = core.CleanString(*ub.Title)
	}
	if ub.Message != nil {
		b.Message = core.CleanString(*ub.Message)
	}
	if ub.Severity != nil {
		b.Severity = *ub.Severity
	}
	if ub.Audience != nil {
		b.Audience = *ub.Audience
	}
	if ub.Active != nil {
		b.Active = *ub.Active
	}
	if ub.Dismissible != nil {
		b.Dismissible = *ub.Dismissible
	}
	if ub.StartsAt != nil {
		b.StartsAt = ub.StartsAt.UTC()
	}
	if ub.ClearEndsAt {
		b.EndsAt = nil
	} else if ub.EndsAt != nil {
		ends := ub.EndsAt.UTC()
		b.EndsAt = &ends
	}
	if ub.SortOrder != nil {
		b.SortOrder = *ub.SortOrder
	}
	return b, validateWindow(b.StartsAt, b.EndsAt)
}

type BannerFilter struct {
	Active   *bool
	Severity string
	Audience string
}

// SortVisible orders banners critical first, then warning, then info, then by sort_order.
func SortVisible(banners []Banner) {
	sort.SliceStable(banners, func(i, j int) bool {
		ri, rj := severityRank[banners[i].Severity], severityRank[banners[j].Severity]
		if ri != rj {
			return ri < rj
		}
		return banners[i].SortOrder < banners[j].SortOrder
	})
}

// NewsItem is a line in the news ticker.
type NewsItem struct {
	ID        string     `json:"id" db:"id"`
	Text      string     `json:"text" db:"text"`
	LinkURL   string     `json:"link_url" db:"link_url"`
	Active    bool       `json:"active" db:"active"`
	Priority  int        `json:"priority" db:"priority"`
	StartsAt  *time.Time `json:"starts_at" db:"starts_at"`
	EndsAt    *time.Time `json:"ends_at" db:"ends_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

func (n NewsItem) ActiveAt(t time.Time) bool {
	if !n.Active {
		return false
	}
	if n.StartsAt != nil && t.Before(*n.StartsAt) {
		return false
	}
	return n.EndsAt == nil || t.Before(*n.EndsAt)
}

type NewNewsItem struct {
	Text     string     `json:"text" validate:"required,max=500"`
	LinkURL  string     `json:"link_url" validate:"omitempty,url,max=1000"`
	Active   *bool      `json:"active"`
	Priority int        `json:"priority"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

func (nn *NewNewsItem) Validate() error {
	nn.Text = core.CleanString(nn.Text)
	nn.LinkURL = core.CleanString(nn.LinkURL)
	if err := core.Validate.Struct(nn); err != nil {
		return err
	}
	if nn.StartsAt != nil {
		return validateWindow(*nn.StartsAt, nn.EndsAt)
	}
	return nil
}

type UpdateNewsItem struct {
	Text     *string    `json:"text" validate:"omitempty,notblank,max=500"`
	LinkURL  *string    `json:"link_url" validate:"omitempty,url,max=1000"`
	Active   *bool      `json:"active"`
	Priority *int       `json:"priority"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

func (un *UpdateNewsItem) Validate() error { return core.Validate.Struct(un) }

func (un UpdateNewsItem) Apply(n NewsItem) (NewsItem, error) {
	if un.Text != nil {
		n.Text = core.CleanString(*un.Text)
	}
	if un.LinkURL != nil {
		n.LinkURL = core.CleanString(*un.LinkURL)
	}
	if un.Active != nil {
		n.Active = *un.Active
	}
	if un.Priority != nil {
		n.Priority = *un.Priority
	}
	if un.StartsAt != nil {
		starts := un.StartsAt.UTC()
		n.StartsAt = &starts
	}
	if un.EndsAt != nil {
		ends := un.EndsAt.UTC()
		n.EndsAt = &ends
	}
	if n.StartsAt != nil {
		return n, validateWindow(*n.StartsAt, n.EndsAt)
	}
	return n, nil
}

// SortTicker orders items by priority desc, then newest first.
func SortTicker(items []NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func validateWindow(starts time.Time, ends *time.Time) error {
	if ends != nil && !starts.IsZero() && !ends.After(starts) {
		return core.NewFieldError("ends_at", "ends_at must be after starts_at")
	}
	return nil
}
