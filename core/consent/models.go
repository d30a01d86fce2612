package consent

import (
	"sort"
	"strings"
	"time"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
)

// Banner positions
const (
	PositionBottom = "bottom"
	PositionTop    = "top"
	PositionCenter = "center"
)

type Category struct {
	ID          string    `json:"id" db:"id"`
	Key         string    `json:"key" db:"key"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Required    bool      `json:"required" db:"required"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	SortOrder   int       `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type NewCategory struct {
	Key         string `json:"key" validate:"required,slug,max=50"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Required    bool   `json:"required"`
	Enabled     *bool  `json:"enabled"`
	SortOrder   int    `json:"sort_order"`
}

func (nc *NewCategory) Validate() error {
	nc.Key = core.CleanString(nc.Key, true /* lower */)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return core.Validate.Struct(nc)
}

type UpdateCategory struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Required    *bool   `json:"required"`
	Enabled     *bool   `json:"enabled"`
	SortOrder   *int    `json:"sort_order"`
}

func (uc *UpdateCategory) Validate() error {
	if uc.Name != nil {
		*uc.Name = core.CleanString(*uc.Name)
	}
	return core.Validate.Struct(uc)
}

// Settings drive the cookie banner shown to visitors. There is a single row.
type Settings struct {
	BannerEnabled bool      `json:"banner_enabled" db:"banner_enabled"`
	Title         string    `json:"title" db:"title"`
	Message       string    `json:"message" db:"message"`
	AcceptLabel   string    `json:"accept_label" db:"accept_label"`
	RejectLabel   string    `json:"reject_label" db:"reject_label"`
	PolicyURL     string    `json:"policy_url" db:"policy_url"`
	Position      string    `json:"position" db:"position"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{
		BannerEnabled: true,
		Title:         "We value your privacy",
		Message:       "We use cookies to improve your experience. Choose which categories you allow.",
		AcceptLabel:   "Accept all",
		RejectLabel:   "Only necessary",
		PolicyURL:     "/privacy",
		Position:      PositionBottom,
	}
}

type UpdateSettings struct {
	BannerEnabled *bool   `json:"banner_enabled"`
	Title         *string `json:"title" validate:"omitempty,max=200"`
	Message       *string `json:"message" validate:"omitempty,max=2000"`
	AcceptLabel   *string `json:"accept_label" validate:"omitempty,notblank,max=50"`
	RejectLabel   *string `json:"reject_label" validate:"omitempty,notblank,max=50"`
	PolicyURL     *string `json:"policy_url" validate:"omitempty,max=500"`
	Position      *string `json:"position" validate:"omitempty,oneof=bottom top center"`
}

func (us *UpdateSettings) Validate() error { return core.Validate.Struct(us) }

func (us UpdateSettings) Apply(s Settings) Settings {
	if us.BannerEnabled != nil {
		s.BannerEnabled = *us.BannerEnabled
	}
	if us.Title != nil {
		s.Title = *us.Title
	}
	if us.Message != nil {
		s.Message = *us.Message
	}
	if us.AcceptLabel != nil {
		s.AcceptLabel = *us.AcceptLabel
	}
	if us.RejectLabel != nil {
		s.RejectLabel = *us.RejectLabel
	}
	if us.PolicyURL != nil {
		s.PolicyURL = *us.PolicyURL
	}
	if us.Position != nil {
		s.Position = *us.Position
	}
	return s
}

// Record is the choice a visitor made on the banner.
type Record struct {
	ID         string    `json:"id" db:"id"`
	VisitorID  string    `json:"visitor_id" db:"visitor_id"`
	UserID     string    `json:"user_id,omitempty" db:"user_id"`
	Categories []string  `json:"categories" db:"categories"`
	IPAddress  string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type NewRecord struct {
	VisitorID  string   `json:"visitor_id" validate:"required,max=100"`
	Categories []string `json:"categories"`
	UserID     string   `json:"-"`
	IPAddress  string   `json:"-"`
	UserAgent  string   `json:"-"`
}

func (nr *NewRecord) Validate() error {
	nr.VisitorID = core.CleanString(nr.VisitorID)
	nr.Categories = core.CleanStrings(nr.Categories, true /* lower */)
	return core.Validate.Struct(nr)
}

type RecordFilter struct {
	VisitorID string
	From      time.Time
	To        time.Time
}

// CategoryStat counts the records that accepted a category.
type CategoryStat struct {
	Key      string `json:"key" db:"key"`
	Name     string `json:"name" db:"name"`
	Accepted int    `json:"accepted" db:"accepted"`
}

type Stats struct {
	TotalRecords int            `json:"total_records"`
	Categories   []CategoryStat `json:"categories"`
}

// SortCategories orders categories by sort_order then name.
func SortCategories(cats []Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].Name < cats[j].Name
	})
}

func recordsTable(records []Record) export.Table {
	t := export.Table{
		Title:   "Cookie consents",
		Columns: []string{"id", "visitor_id", "user_id", "categories", "created_at"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.ID, r.VisitorID, r.UserID, strings.Join(r.Categories, ";"), export.FormatTime(r.CreatedAt),
		})
	}
	return t
}
