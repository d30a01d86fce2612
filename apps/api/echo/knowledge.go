package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/knowledge"
	"github.com/purelifecenter/portal/core/user"
)

type knowledgeApi struct {
	svc    knowledge.Service
	usrSvc user.Service
}

func registerKnowledgeAPI(g, admin *echo.Group, jwt echo.MiddlewareFunc, svc knowledge.Service, usrSvc user.Service) {
	api := knowledgeApi{svc: svc, usrSvc: usrSvc}

	// members only see published resources
	mg := g.Group("/knowledge", jwt)
	mg.GET("/resources", api.queryPublished)
	mg.GET("/resources/:id", api.retrievePublished)
	mg.POST("/resources/:id/views", api.recordView)
	mg.GET("/categories", api.publishedCategories)

	// admin panel
	ag := admin.Group("/knowledge")
	ag.GET("/resources", api.query)
	ag.POST("/resources", api.create)
	ag.GET("/resources/:id", api.retrieve)
	ag.PUT("/resources/:id", api.update)
	ag.DELETE("/resources/:id", api.destroy)
	ag.POST("/resources/:id/file", api.upload)
	ag.GET("/categories", api.categories)
}

func bindResourceFilter(ctx echo.Context) (knowledge.QueryFilter, error) {
	filter := knowledge.QueryFilter{
		Category:     ctx.QueryParam("category"),
		ResourceType: ctx.QueryParam("type"),
		Tag:          ctx.QueryParam("tag"),
		Search:       ctx.QueryParam("search"),
	}
	featured, err := queryBool(ctx, "featured")
	if err != nil {
		return filter, err
	}
	filter.FeaturedOnly = featured != nil && *featured
	return filter, nil
}

func (api *knowledgeApi) queryPublished(ctx echo.Context) error {
	return api.sendResources(ctx, true)
}

func (api *knowledgeApi) query(ctx echo.Context) error {
	return api.sendResources(ctx, false)
}

func (api *knowledgeApi) sendResources(ctx echo.Context, publishedOnly bool) error {
	filter, err := bindResourceFilter(ctx)
	if err != nil {
		return err
	}
	filter.PublishedOnly = publishedOnly
	ordering := new(Ordering)
	ordering.Bind(ctx)

	resources, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying knowledge resources")
	}
	if resources == nil {
		resources = []knowledge.Resource{}
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *knowledgeApi) retrievePublished(ctx echo.Context) error {
	r, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), true /* publishedOnly */)
	if err != nil {
		return errors.Wrap(err, "getting knowledge resource")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *knowledgeApi) retrieve(ctx echo.Context) error {
	r, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), false)
	if err != nil {
		return errors.Wrap(err, "getting knowledge resource")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *knowledgeApi) recordView(ctx echo.Context) error {
	if _, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), true /* publishedOnly */); err != nil {
		return errors.Wrap(err, "getting knowledge resource")
	}
	views, err := api.svc.RecordView(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "recording knowledge resource view")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"view_count": views})
}

func (api *knowledgeApi) publishedCategories(ctx echo.Context) error {
	return api.sendCategories(ctx, true)
}

func (api *knowledgeApi) categories(ctx echo.Context) error {
	return api.sendCategories(ctx, false)
}

func (api *knowledgeApi) sendCategories(ctx echo.Context, publishedOnly bool) error {
	cats, err := api.svc.Categories(ctx.Request().Context(), publishedOnly)
	if err != nil {
		return errors.Wrap(err, "listing knowledge categories")
	}
	if cats == nil {
		cats = []string{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *knowledgeApi) create(ctx echo.Context) error {
	var data knowledge.NewResource
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	r, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating knowledge resource")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *knowledgeApi) update(ctx echo.Context) error {
	var data knowledge.UpdateResource
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	r, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating knowledge resource")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *knowledgeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting knowledge resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *knowledgeApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewFieldError("file", "this field is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	up := knowledge.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
	}
	r, err := api.svc.Upload(ctx.Request().Context(), ctx.Param("id"), up, f)
	if err != nil {
		return errors.Wrap(err, "uploading knowledge resource file")
	}
	return ctx.JSON(http.StatusOK, r)
}
