package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/training"
	"github.com/purelifecenter/portal/core/user"
)

type trainingApi struct {
	svc    training.Service
	usrSvc user.Service
}

func registerTrainingAPI(g, admin *echo.Group, jwt echo.MiddlewareFunc, svc training.Service, usrSvc user.Service) {
	api := trainingApi{svc: svc, usrSvc: usrSvc}

	mg := g.Group("/training", jwt)
	mg.GET("/modules", api.queryModules)
	mg.GET("/modules/:id/lessons", api.lessons)
	mg.GET("/modules/:id/progress", api.moduleProgress)
	mg.GET("/modules/:id/summary", api.summary)
	mg.GET("/lessons/:id", api.retrieveLesson)
	mg.GET("/lessons/:id/progress", api.retrieveProgress)
	mg.PUT("/lessons/:id/progress", api.saveProgress)
	mg.POST("/lessons/:id/complete", api.complete)
	mg.GET("/lessons/:id/next", api.next)

	// admin panel
	ag := admin.Group("/training")
	ag.GET("/modules", api.queryAllModules)
	ag.POST("/modules", api.createModule)
	ag.GET("/modules/:id", api.retrieveModule)
	ag.PUT("/modules/:id", api.updateModule)
	ag.DELETE("/modules/:id", api.destroyModule)
	ag.POST("/modules/:id/lessons", api.createLesson)
	ag.PUT("/lessons/:id", api.updateLesson)
	ag.DELETE("/lessons/:id", api.destroyLesson)
	ag.GET("/progress/export", api.exportReport)
}

// visibleModule hides unpublished modules from non-admins.
func (api *trainingApi) visibleModule(ctx echo.Context, id string) (training.Module, error) {
	m, err := api.svc.GetModule(ctx.Request().Context(), id)
	if err != nil {
		return m, errors.Wrap(err, "getting training module")
	}
	if !m.Published && !contextIsAdmin(ctx) {
		return m, core.NewNotFoundError("module")
	}
	return m, nil
}

func (api *trainingApi) visibleLesson(ctx echo.Context, id string) (training.Lesson, error) {
	l, err := api.svc.GetLesson(ctx.Request().Context(), id)
	if err != nil {
		return l, errors.Wrap(err, "getting lesson")
	}
	if _, err := api.visibleModule(ctx, l.ModuleID); err != nil {
		if core.IsNotFound(err) {
			return l, core.NewNotFoundError("lesson")
		}
		return l, err
	}
	return l, nil
}

// Modules

func (api *trainingApi) queryModules(ctx echo.Context) error {
	return api.sendModules(ctx, !contextIsAdmin(ctx))
}

func (api *trainingApi) queryAllModules(ctx echo.Context) error {
	return api.sendModules(ctx, false)
}

func (api *trainingApi) sendModules(ctx echo.Context, publishedOnly bool) error {
	mods, err := api.svc.QueryModules(ctx.Request().Context(), publishedOnly)
	if err != nil {
		return errors.Wrap(err, "querying training modules")
	}
	if mods == nil {
		mods = []training.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *trainingApi) createModule(ctx echo.Context) error {
	var data training.NewModule
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	m, err := api.svc.CreateModule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating training module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *trainingApi) retrieveModule(ctx echo.Context) error {
	m, err := api.svc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting training module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *trainingApi) updateModule(ctx echo.Context) error {
	var data training.UpdateModule
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	m, err := api.svc.UpdateModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating training module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *trainingApi) destroyModule(ctx echo.Context) error {
	if err := api.svc.DeleteModule(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting training module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *trainingApi) summary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	m, err := api.visibleModule(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	s, err := api.svc.Summary(ctx.Request().Context(), claims.Subject, m.ID)
	if err != nil {
		return errors.Wrap(err, "getting training summary")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *trainingApi) moduleProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	m, err := api.visibleModule(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	ps, err := api.svc.Progress(ctx.Request().Context(), claims.Subject, m.ID)
	if err != nil {
		return errors.Wrap(err, "getting training progress")
	}
	if ps == nil {
		ps = []training.Progress{}
	}
	return ctx.JSON(http.StatusOK, ps)
}

// Lessons

func (api *trainingApi) lessons(ctx echo.Context) error {
	m, err := api.visibleModule(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	ls, err := api.svc.Lessons(ctx.Request().Context(), m.ID)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if ls == nil {
		ls = []training.Lesson{}
	}
	return ctx.JSON(http.StatusOK, ls)
}

func (api *trainingApi) retrieveLesson(ctx echo.Context) error {
	l, err := api.visibleLesson(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *trainingApi) createLesson(ctx echo.Context) error {
	var data training.NewLesson
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	data.ModuleID = ctx.Param("id")

	l, err := api.svc.CreateLesson(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *trainingApi) updateLesson(ctx echo.Context) error {
	var data training.UpdateLesson
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	l, err := api.svc.UpdateLesson(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *trainingApi) destroyLesson(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Progress

func (api *trainingApi) retrieveProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	l, err := api.visibleLesson(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	p, err := api.svc.GetProgress(ctx.Request().Context(), claims.Subject, l.ID)
	if err != nil {
		return errors.Wrap(err, "getting lesson progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *trainingApi) saveProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data training.SaveProgress
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	l, err := api.visibleLesson(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	p, err := api.svc.SaveProgress(ctx.Request().Context(), claims.Subject, l.ID, data)
	if err != nil {
		return errors.Wrap(err, "saving lesson progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *trainingApi) complete(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	l, err := api.visibleLesson(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	p, err := api.svc.Complete(ctx.Request().Context(), claims.Subject, l.ID)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *trainingApi) next(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	l, err := api.visibleLesson(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	nxt, err := api.svc.Next(ctx.Request().Context(), claims.Subject, l.ID)
	if err != nil {
		if errors.Is(err, training.ErrLessonLocked) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return errors.Wrap(err, "getting next lesson")
	}
	return ctx.JSON(http.StatusOK, nxt)
}

func (api *trainingApi) exportReport(ctx echo.Context) error {
	format, err := queryFormat(ctx)
	if err != nil {
		return err
	}
	filter := training.ProgressFilter{
		UserID:   ctx.QueryParam("user_id"),
		ModuleID: ctx.QueryParam("module_id"),
		LessonID: ctx.QueryParam("lesson_id"),
	}
	f, err := api.svc.ExportReport(ctx.Request().Context(), filter, format)
	if err != nil {
		return errors.Wrap(err, "exporting training report")
	}
	return sendFile(ctx, f)
}
