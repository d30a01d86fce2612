package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core/consent"
)

type consentApi struct {
	svc consent.Service
}

func registerConsentAPI(g, admin *echo.Group, optionalJWT echo.MiddlewareFunc, svc consent.Service) {
	api := consentApi{svc: svc}

	// visitors
	pg := g.Group("/consent", optionalJWT)
	pg.GET("/settings", api.retrieveSettings)
	pg.GET("/categories", api.queryEnabledCategories)
	pg.POST("/records", api.record)
	pg.GET("/records/:visitor", api.latest)

	// admin panel
	ag := admin.Group("/consent")
	ag.GET("/settings", api.retrieveSettings)
	ag.PUT("/settings", api.updateSettings)
	ag.GET("/categories", api.queryCategories)
	ag.POST("/categories", api.createCategory)
	ag.GET("/categories/:id", api.retrieveCategory)
	ag.PUT("/categories/:id", api.updateCategory)
	ag.DELETE("/categories/:id", api.destroyCategory)
	ag.GET("/stats", api.stats)
	ag.GET("/records/export", api.exportRecords)
}

func (api *consentApi) retrieveSettings(ctx echo.Context) error {
	s, err := api.svc.GetSettings(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting cookie consent settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *consentApi) updateSettings(ctx echo.Context) error {
	var data consent.UpdateSettings
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.UpdateSettings(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating cookie consent settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *consentApi) queryEnabledCategories(ctx echo.Context) error {
	return api.sendCategories(ctx, true)
}

func (api *consentApi) queryCategories(ctx echo.Context) error {
	return api.sendCategories(ctx, false)
}

func (api *consentApi) sendCategories(ctx echo.Context, enabledOnly bool) error {
	cats, err := api.svc.QueryCategories(ctx.Request().Context(), enabledOnly)
	if err != nil {
		return errors.Wrap(err, "querying cookie categories")
	}
	if cats == nil {
		cats = []consent.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *consentApi) createCategory(ctx echo.Context) error {
	var data consent.NewCategory
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	c, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating cookie category")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *consentApi) retrieveCategory(ctx echo.Context) error {
	c, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting cookie category")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *consentApi) updateCategory(ctx echo.Context) error {
	var data consent.UpdateCategory
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	c, err := api.svc.UpdateCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating cookie category")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *consentApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting cookie category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *consentApi) record(ctx echo.Context) error {
	var data consent.NewRecord
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	data.UserID = ""
	if claims, err := getContextClaims(ctx); err == nil {
		data.UserID = claims.Subject
	}
	data.IPAddress = ctx.RealIP()
	data.UserAgent = ctx.Request().UserAgent()

	r, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording cookie consent")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *consentApi) latest(ctx echo.Context) error {
	r, err := api.svc.Latest(ctx.Request().Context(), ctx.Param("visitor"))
	if err != nil {
		return errors.Wrap(err, "getting latest cookie consent")
	}
	return ctx.JSON(http.StatusOK, r)
}

func bindRecordFilter(ctx echo.Context) (consent.RecordFilter, error) {
	var err error
	filter := consent.RecordFilter{VisitorID: ctx.QueryParam("visitor_id")}
	if filter.From, err = queryTime(ctx, "from"); err != nil {
		return filter, err
	}
	filter.To, err = queryTime(ctx, "to")
	return filter, err
}

func (api *consentApi) stats(ctx echo.Context) error {
	filter, err := bindRecordFilter(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Stats(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "computing cookie consent stats")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *consentApi) exportRecords(ctx echo.Context) error {
	filter, err := bindRecordFilter(ctx)
	if err != nil {
		return err
	}
	format, err := queryFormat(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.ExportRecords(ctx.Request().Context(), filter, format)
	if err != nil {
		return errors.Wrap(err, "exporting cookie consents")
	}
	return sendFile(ctx, f)
}
