package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/content"
)

type contentApi struct {
	svc content.Service
}

func registerContentAPI(g, admin *echo.Group, optionalJWT echo.MiddlewareFunc, svc content.Service) {
	api := contentApi{svc: svc}

	pg := g.Group("/content", optionalJWT)
	pg.GET("/banners", api.visibleBanners)
	pg.GET("/ticker", api.activeTicker)

	// admin panel
	bg := admin.Group("/banners")
	bg.GET("", api.queryBanners)
	bg.POST("", api.createBanner)
	bg.DELETE("", api.destroyBanners)
	bg.GET("/:id", api.retrieveBanner)
	bg.PUT("/:id", api.updateBanner)
	bg.DELETE("/:id", api.destroyBanner)

	ng := admin.Group("/news")
	ng.GET("", api.queryNews)
	ng.POST("", api.createNews)
	ng.DELETE("", api.destroyNewsItems)
	ng.PUT("/order", api.reorderNews)
	ng.GET("/:id", api.retrieveNews)
	ng.PUT("/:id", api.updateNews)
	ng.DELETE("/:id", api.destroyNews)
}

func (api *contentApi) visibleBanners(ctx echo.Context) error {
	banners, err := api.svc.Visible(ctx.Request().Context(), contextRoles(ctx))
	if err != nil {
		return errors.Wrap(err, "getting visible banners")
	}
	if banners == nil {
		banners = []content.Banner{}
	}
	return ctx.JSON(http.StatusOK, banners)
}

func (api *contentApi) activeTicker(ctx echo.Context) error {
	items, err := api.svc.Active(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting active news items")
	}
	if items == nil {
		items = []content.NewsItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

// Banners

func (api *contentApi) queryBanners(ctx echo.Context) error {
	var err error
	filter := content.BannerFilter{
		Severity: core.CleanString(ctx.QueryParam("severity"), true /* lower */),
		Audience: core.CleanString(ctx.QueryParam("audience"), true /* lower */),
	}
	if filter.Active, err = queryBool(ctx, "active"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	banners, err := api.svc.QueryBanners(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying banners")
	}
	if banners == nil {
		banners = []content.Banner{}
	}
	return ctx.JSON(http.StatusOK, banners)
}

func (api *contentApi) createBanner(ctx echo.Context) error {
	var data content.NewBanner
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	b, err := api.svc.CreateBanner(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating banner")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *contentApi) retrieveBanner(ctx echo.Context) error {
	b, err := api.svc.GetBanner(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting banner")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *contentApi) updateBanner(ctx echo.Context) error {
	var data content.UpdateBanner
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	b, err := api.svc.UpdateBanner(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating banner")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *contentApi) destroyBanner(ctx echo.Context) error {
	if _, err := api.svc.GetBanner(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting banner")
	}
	if err := api.svc.DeleteBanners(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting banner")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) destroyBanners(ctx echo.Context) error {
	if ids := queryIDs(ctx); len(ids) > 0 {
		if err := api.svc.DeleteBanners(ctx.Request().Context(), ids...); err != nil {
			return errors.Wrap(err, "deleting banners")
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

// News ticker

func (api *contentApi) queryNews(ctx echo.Context) error {
	items, err := api.svc.QueryNewsItems(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying news items")
	}
	if items == nil {
		items = []content.NewsItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *contentApi) createNews(ctx echo.Context) error {
	var data content.NewNewsItem
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	n, err := api.svc.CreateNewsItem(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating news item")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *contentApi) retrieveNews(ctx echo.Context) error {
	n, err := api.svc.GetNewsItem(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting news item")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *contentApi) updateNews(ctx echo.Context) error {
	var data content.UpdateNewsItem
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	n, err := api.svc.UpdateNewsItem(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating news item")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *contentApi) destroyNews(ctx echo.Context) error {
	if _, err := api.svc.GetNewsItem(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting news item")
	}
	if err := api.svc.DeleteNewsItems(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting news item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) destroyNewsItems(ctx echo.Context) error {
	if ids := queryIDs(ctx); len(ids) > 0 {
		if err := api.svc.DeleteNewsItems(ctx.Request().Context(), ids...); err != nil {
			return errors.Wrap(err, "deleting news items")
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) reorderNews(ctx echo.Context) error {
	var data IDsRequest // new display order
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	items, err := api.svc.Reorder(ctx.Request().Context(), data.IDs)
	if err != nil {
		return errors.Wrap(err, "reordering news items")
	}
	return ctx.JSON(http.StatusOK, items)
}

// IDsRequest lists the rows an action applies to.
type IDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func (ir *IDsRequest) Validate() error { return core.Validate.Struct(ir) }
