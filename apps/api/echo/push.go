package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/push"
)

type pushApi struct {
	svc push.Service
}

func registerPushAPI(g, admin *echo.Group, jwt echo.MiddlewareFunc, svc push.Service) {
	api := pushApi{svc: svc}

	// the browser needs the public key before subscribing
	g.GET("/push/public-key", api.publicKey)

	mg := g.Group("/push/subscriptions", jwt)
	mg.POST("", api.subscribe)
	mg.DELETE("", api.unsubscribe)

	// admin panel
	ag := admin.Group("/push")
	ag.GET("/config", api.retrieveConfig)
	ag.PUT("/config", api.updateConfig)
	ag.POST("/config/keys", api.generateKeys)
	ag.POST("/send", api.send)
}

func (api *pushApi) publicKey(ctx echo.Context) error {
	key, err := api.svc.PublicKey(ctx.Request().Context())
	if err != nil {
		if errors.Is(err, push.ErrDisabled) || errors.Is(err, push.ErrNoKeys) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return errors.Wrap(err, "getting VAPID public key")
	}
	return ctx.JSON(http.StatusOK, PublicKeyResponse{PublicKey: key})
}

func (api *pushApi) subscribe(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data push.NewSubscription
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	data.UserAgent = ctx.Request().UserAgent()

	sub, err := api.svc.Subscribe(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "subscribing to push notifications")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *pushApi) unsubscribe(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	endpoint := core.CleanString(ctx.QueryParam("endpoint"))
	if endpoint == "" {
		return core.NewFieldError("endpoint", "this field is required")
	}

	if err := api.svc.Unsubscribe(ctx.Request().Context(), claims.Subject, endpoint); err != nil {
		return errors.Wrap(err, "unsubscribing from push notifications")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *pushApi) retrieveConfig(ctx echo.Context) error {
	c, err := api.svc.GetConfig(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting push config")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *pushApi) updateConfig(ctx echo.Context) error {
	var data push.UpdateConfig
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	c, err := api.svc.UpdateConfig(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating push config")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *pushApi) generateKeys(ctx echo.Context) error {
	c, err := api.svc.GenerateKeys(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "generating VAPID keys")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *pushApi) send(ctx echo.Context) error {
	var data push.SendRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	res, err := api.svc.Send(ctx.Request().Context(), data.UserIDs, data.Notification)
	if err != nil {
		if errors.Is(err, push.ErrDisabled) || errors.Is(err, push.ErrNoKeys) {
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "sending push notifications")
	}
	return ctx.JSON(http.StatusOK, res)
}

type PublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}
