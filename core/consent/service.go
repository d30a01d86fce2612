package consent

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
)

var (
	ErrCategoryNotFound = core.NewNotFoundError("cookie category")
	ErrSettingsNotFound = core.NewNotFoundError("cookie consent settings")
	ErrRecordNotFound   = core.NewNotFoundError("cookie consent")
	ErrCategoryExists   = errors.New("a cookie category with this key already exists")
	ErrRequiredCategory = errors.New("required cookie categories cannot be deleted or disabled")
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, c Category) (Category, error)
		// QueryCategories returns categories ordered by sort_order then name.
		QueryCategories(ctx context.Context, enabledOnly bool) ([]Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		GetCategoryByKey(ctx context.Context, key string) (Category, error)
		UpdateCategory(ctx context.Context, c Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		GetSettings(ctx context.Context) (Settings, error)
		SaveSettings(ctx context.Context, s Settings) (Settings, error)

		CreateRecord(ctx context.Context, r Record) (Record, error)
		LatestRecord(ctx context.Context, visitorID string) (Record, error)
		QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}

	Service interface {
		CreateCategory(ctx context.Context, nc NewCategory) (Category, error)
		QueryCategories(ctx context.Context, enabledOnly bool) ([]Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		GetSettings(ctx context.Context) (Settings, error)
		UpdateSettings(ctx context.Context, us UpdateSettings) (Settings, error)

		// Record stores a visitor choice. Required categories are always added.
		Record(ctx context.Context, nr NewRecord) (Record, error)
		Latest(ctx context.Context, visitorID string) (Record, error)
		Stats(ctx context.Context, filter RecordFilter) (Stats, error)
		ExportRecords(ctx context.Context, filter RecordFilter, format export.Format) (export.File, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	if _, err := svc.repo.GetCategoryByKey(ctx, nc.Key); err == nil {
		return Category{}, core.NewValidationError(ErrCategoryExists, core.FieldError{Field: "key", Error: ErrCategoryExists.Error()})
	} else if !core.IsNotFound(err) {
		return Category{}, errors.Wrap(err, "checking category key")
	}

	now := core.NowFunc()
	c := Category{
		ID:          uuid.New().String(),
		Key:         nc.Key,
		Name:        nc.Name,
		Description: nc.Description,
		Required:    nc.Required,
		Enabled:     nc.Enabled == nil || *nc.Enabled,
		SortOrder:   nc.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Required {
		c.Enabled = true
	}
	return svc.repo.CreateCategory(ctx, c)
}

func (svc *service) QueryCategories(ctx context.Context, enabledOnly bool) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, enabledOnly)
}

func (svc *service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategory(ctx, id)
}

func (svc *service) UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error) {
	c, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Required != nil {
		c.Required = *uc.Required
	}
	if uc.Enabled != nil {
		c.Enabled = *uc.Enabled
	}
	if uc.SortOrder != nil {
		c.SortOrder = *uc.SortOrder
	}
	if c.Required && !c.Enabled {
		return Category{}, core.NewValidationError(ErrRequiredCategory, core.FieldError{Field: "enabled", Error: ErrRequiredCategory.Error()})
	}
	c.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCategory(ctx, c)
}

func (svc *service) DeleteCategory(ctx context.Context, id string) error {
	c, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if c.Required {
		return core.NewValidationError(ErrRequiredCategory)
	}
	return svc.repo.DeleteCategory(ctx, id)
}

func (svc *service) GetSettings(ctx context.Context) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx)
	if err != nil {
		if core.IsNotFound(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, errors.Wrap(err, "getting cookie consent settings")
	}
	return s, nil
}

func (svc *service) UpdateSettings(ctx context.Context, us UpdateSettings) (Settings, error) {
	current, err := svc.GetSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	s := us.Apply(current)
	s.UpdatedAt = core.NowFunc()
	return svc.repo.SaveSettings(ctx, s)
}

func (svc *service) Record(ctx context.Context, nr NewRecord) (Record, error) {
	cats, err := svc.repo.QueryCategories(ctx, true /* enabledOnly */)
	if err != nil {
		return Record{}, errors.Wrap(err, "querying categories")
	}

	enabled := make(map[string]bool, len(cats))
	accepted := make(map[string]bool, len(cats))
	for _, c := range cats {
		enabled[c.Key] = true
		if c.Required {
			accepted[c.Key] = true
		}
	}
	for _, key := range nr.Categories {
		if !enabled[key] {
			msg := fmt.Sprintf("unknown or disabled cookie category: %s", key)
			return Record{}, core.NewFieldError("categories", msg)
		}
		accepted[key] = true
	}

	keys := make([]string, 0, len(accepted))
	for _, c := range cats { // keep category order
		if accepted[c.Key] {
			keys = append(keys, c.Key)
		}
	}

	return svc.repo.CreateRecord(ctx, Record{
		ID:         uuid.New().String(),
		VisitorID:  nr.VisitorID,
		UserID:     nr.UserID,
		Categories: keys,
		IPAddress:  nr.IPAddress,
		UserAgent:  nr.UserAgent,
		CreatedAt:  core.NowFunc(),
	})
}

func (svc *service) Latest(ctx context.Context, visitorID string) (Record, error) {
	return svc.repo.LatestRecord(ctx, core.CleanString(visitorID))
}

func (svc *service) Stats(ctx context.Context, filter RecordFilter) (Stats, error) {
	cats, err := svc.repo.QueryCategories(ctx, false)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying categories")
	}
	records, err := svc.repo.QueryRecords(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying records")
	}

	counts := make(map[string]int, len(cats))
	for _, r := range records {
		for _, key := range r.Categories {
			counts[key]++
		}
	}

	stats := Stats{TotalRecords: len(records), Categories: make([]CategoryStat, 0, len(cats))}
	for _, c := range cats {
		stats.Categories = append(stats.Categories, CategoryStat{Key: c.Key, Name: c.Name, Accepted: counts[c.Key]})
	}
	sort.SliceStable(stats.Categories, func(i, j int) bool {
		return stats.Categories[i].Accepted > stats.Categories[j].Accepted
	})
	return stats, nil
}

func (svc *service) ExportRecords(ctx context.Context, filter RecordFilter, format export.Format) (export.File, error) {
	records, err := svc.repo.QueryRecords(ctx, filter)
	if err != nil {
		return export.File{}, errors.Wrap(err, "querying records")
	}
	if records == nil {
		records = []Record{}
	}
	return export.Render(recordsTable(records), format, "cookie-consents", records)
}
