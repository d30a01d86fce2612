package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core/compass"
	"github.com/purelifecenter/portal/core/user"
)

type compassApi struct {
	svc    compass.Service
	usrSvc user.Service
}

func registerCompassAPI(g, admin *echo.Group, jwt echo.MiddlewareFunc, svc compass.Service, usrSvc user.Service) {
	api := compassApi{svc: svc, usrSvc: usrSvc}

	// members
	mg := g.Group("/compass", jwt)
	mg.GET("/settings", api.retrieveSettings)
	mg.POST("/sessions", api.recordSession)

	// admin panel
	ag := admin.Group("/compass")
	ag.GET("/settings", api.retrieveSettings)
	ag.PUT("/settings", api.updateSettings)
	ag.GET("/sessions", api.querySessions)
	ag.GET("/sessions/export", api.exportSessions)
}

func (api *compassApi) retrieveSettings(ctx echo.Context) error {
	s, err := api.svc.GetSettings(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting ai compass settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *compassApi) updateSettings(ctx echo.Context) error {
	var data compass.UpdateSettings
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	s, err := api.svc.UpdateSettings(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "updating ai compass settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *compassApi) recordSession(ctx echo.Context) error {
	var data compass.NewSession
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	s, err := api.svc.RecordSession(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "recording ai compass session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func bindSessionFilter(ctx echo.Context) (compass.SessionFilter, error) {
	var err error
	filter := compass.SessionFilter{UserID: ctx.QueryParam("user_id")}
	if filter.From, err = queryTime(ctx, "from"); err != nil {
		return filter, err
	}
	filter.To, err = queryTime(ctx, "to")
	return filter, err
}

func (api *compassApi) querySessions(ctx echo.Context) error {
	filter, err := bindSessionFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.QuerySessions(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying ai compass sessions")
	}
	if sessions == nil {
		sessions = []compass.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *compassApi) exportSessions(ctx echo.Context) error {
	filter, err := bindSessionFilter(ctx)
	if err != nil {
		return err
	}
	format, err := queryFormat(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.ExportSessions(ctx.Request().Context(), filter, format)
	if err != nil {
		return errors.Wrap(err, "exporting ai compass sessions")
	}
	return sendFile(ctx, f)
}
