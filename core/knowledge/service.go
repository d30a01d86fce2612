package knowledge

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
)

const maxUploadSize = 200 << 20 // 200MB

var (
	ErrResourceNotFound = core.NewNotFoundError("knowledge resource")
	ErrUploadTooLarge   = errors.New("file is too large")

	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

type (
	Repository interface {
		CreateResource(ctx context.Context, r Resource) (Resource, error)
		QueryResources(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Resource, error)
		GetResource(ctx context.Context, id string) (Resource, error)
		UpdateResource(ctx context.Context, r Resource) (Resource, error)
		DeleteResource(ctx context.Context, id string) error
		// Categories returns the distinct categories in use, sorted.
		Categories(ctx context.Context, publishedOnly bool) ([]string, error)
		IncrementViews(ctx context.Context, id string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, by user.User, nr NewResource) (Resource, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Resource, error)
		GetByID(ctx context.Context, id string, publishedOnly bool) (Resource, error)
		Update(ctx context.Context, id string, ur UpdateResource) (Resource, error)
		// Delete removes the resource and its stored file.
		Delete(ctx context.Context, id string) error
		Categories(ctx context.Context, publishedOnly bool) ([]string, error)
		// Upload stores the file in the bucket under knowledge/<id>/<name> and points the resource at it.
		Upload(ctx context.Context, id string, up Upload, r io.Reader) (Resource, error)
		RecordView(ctx context.Context, id string) (int, error)
	}

	service struct {
		repo  Repository
		files core.FileStore
		log   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, files core.FileStore, log core.Logger) Service {
	return &service{repo: repo, files: files, log: log}
}

func (svc *service) Create(ctx context.Context, by user.User, nr NewResource) (Resource, error) {
	now := core.NowFunc()
	r := Resource{
		ID:           uuid.New().String(),
		Title:        nr.Title,
		Description:  nr.Description,
		Category:     nr.Category,
		ResourceType: nr.ResourceType,
		URL:          nr.URL,
		Tags:         nr.Tags,
		Published:    nr.Published,
		Featured:     nr.Featured,
		SortOrder:    nr.SortOrder,
		CreatedBy:    by.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return svc.repo.CreateResource(ctx, r)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Resource, error) {
	filter.Clean()
	return svc.repo.QueryResources(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string, publishedOnly bool) (Resource, error) {
	r, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if publishedOnly && !r.Published {
		return Resource{}, ErrResourceNotFound
	}
	return r, nil
}

func (svc *service) Update(ctx context.Context, id string, ur UpdateResource) (Resource, error) {
	r, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	r = ur.Apply(r)
	r.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateResource(ctx, r)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	r, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteResource(ctx, id); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	if r.FileKey != "" {
		if err := svc.files.Delete(ctx, r.FileKey); err != nil {
			// the row is gone; an orphan file is only logged
			svc.log.Error("deleting knowledge resource file", errors.Wrap(err, r.FileKey))
		}
	}
	return nil
}

func (svc *service) Categories(ctx context.Context, publishedOnly bool) ([]string, error) {
	return svc.repo.Categories(ctx, publishedOnly)
}

func (svc *service) Upload(ctx context.Context, id string, up Upload, rd io.Reader) (Resource, error) {
	r, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if up.Size > maxUploadSize {
		return Resource{}, core.NewFieldError("file", fmt.Sprintf("%s (max %dMB)", ErrUploadTooLarge, maxUploadSize>>20))
	}

	key := path.Join("knowledge", r.ID, sanitizeFilename(up.Filename))
	url, err := svc.files.Put(ctx, key, up.ContentType, rd)
	if err != nil {
		return Resource{}, errors.Wrap(err, "storing file")
	}

	oldKey := r.FileKey
	r.URL = url
	r.FileKey = key
	r.UpdatedAt = core.NowFunc()
	r, err = svc.repo.UpdateResource(ctx, r)
	if err != nil {
		return Resource{}, err
	}

	if oldKey != "" && oldKey != key {
		if err := svc.files.Delete(ctx, oldKey); err != nil {
			svc.log.Error("deleting replaced knowledge resource file", errors.Wrap(err, oldKey))
		}
	}
	return r, nil
}

func (svc *service) RecordView(ctx context.Context, id string) (int, error) {
	return svc.repo.IncrementViews(ctx, id)
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "file"
	}
	return name
}
