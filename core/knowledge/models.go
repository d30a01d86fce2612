package knowledge

import (
	"time"

	"github.com/purelifecenter/portal/core"
)

// Resource types
const (
	TypeArticle = "article"
	TypeVideo   = "video"
	TypePDF     = "pdf"
	TypeAudio   = "audio"
	TypeLink    = "link"
)

type Resource struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	ResourceType string    `json:"resource_type"`
	URL          string    `json:"url"`
	FileKey      string    `json:"file_key,omitempty"`
	Tags         []string  `json:"tags"`
	Published    bool      `json:"published"`
	Featured     bool      `json:"featured"`
	ViewCount    int       `json:"view_count"`
	SortOrder    int       `json:"sort_order"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NewResource struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=4000"`
	Category     string   `json:"category" validate:"required,max=100"`
	ResourceType string   `json:"resource_type" validate:"required,oneof=article video pdf audio link"`
	URL          string   `json:"url" validate:"omitempty,url,max=2000"`
	Tags         []string `json:"tags" validate:"max=20,dive,max=50"`
	Published    bool     `json:"published"`
	Featured     bool     `json:"featured"`
	SortOrder    int      `json:"sort_order"`
}

func (nr *NewResource) Validate() error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Category = core.CleanString(nr.Category)
	nr.ResourceType = core.CleanString(nr.ResourceType, true /* lower */)
	nr.URL = core.CleanString(nr.URL)
	nr.Tags = core.CleanStrings(nr.Tags, true /* lower */)
	return core.Validate.Struct(nr)
}

type UpdateResource struct {
	Title        *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string  `json:"description" validate:"omitempty,max=4000"`
	Category     *string  `json:"category" validate:"omitempty,notblank,max=100"`
	ResourceType *string  `json:"resource_type" validate:"omitempty,oneof=article video pdf audio link"`
	URL          *string  `json:"url" validate:"omitempty,url,max=2000"`
	Tags         []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Published    *bool    `json:"published"`
	Featured     *bool    `json:"featured"`
	SortOrder    *int     `json:"sort_order"`
}

func (ur *UpdateResource) Validate() error {
	if ur.Tags != nil {
		ur.Tags = core.CleanStrings(ur.Tags, true /* lower */)
	}
	return core.Validate.Struct(ur)
}

func (ur UpdateResource) Apply(r Resource) Resource {
	if ur.Title != nil {
		r.Title = core.CleanString(*ur.Title)
	}
	if ur.Description != nil {
		r.Description = core.CleanString(*ur.Description)
	}
	if ur.Category != nil {
		r.Category = core.CleanString(*ur.Category)
	}
	if ur.ResourceType != nil {
		r.ResourceType = *ur.ResourceType
	}
	if ur.URL != nil {
		r.URL = core.CleanString(*ur.URL)
	}
	if ur.Tags != nil {
		r.Tags = ur.Tags
	}
	if ur.Published != nil {
		r.Published = *ur.Published
	}
	if ur.Featured != nil {
		r.Featured = *ur.Featured
	}
	if ur.SortOrder != nil {
		r.SortOrder = *ur.SortOrder
	}
	return r
}

type QueryFilter struct {
	Category      string
	ResourceType  string
	Tag           string
	Search        string
	PublishedOnly bool
	FeaturedOnly  bool
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category)
	qf.ResourceType = core.CleanString(qf.ResourceType, true /* lower */)
	qf.Tag = core.CleanString(qf.Tag, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// Upload is a file attached to a resource.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
}
