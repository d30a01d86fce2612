package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/user"
)

type chatApi struct {
	svc    chat.Service
	usrSvc user.Service
}

func registerChatAPI(g, admin *echo.Group, jwt echo.MiddlewareFunc, svc chat.Service, usrSvc user.Service) {
	api := chatApi{svc: svc, usrSvc: usrSvc}

	cg := g.Group("/chat", jwt)
	cg.GET("/contact-types", api.queryActiveContactTypes)
	cg.GET("/threads", api.queryThreads)
	cg.POST("/threads", api.openThread)
	cg.GET("/threads/:id", api.retrieveThread)
	cg.GET("/threads/:id/messages", api.queryMessages)
	cg.POST("/threads/:id/messages", api.post)
	cg.POST("/threads/:id/read", api.markThreadRead)

	bg := g.Group("/broadcasts", jwt)
	bg.GET("", api.queryBroadcasts)
	bg.POST("", api.sendBroadcast)

	ig := g.Group("/inbox", jwt)
	ig.GET("", api.inbox)
	ig.GET("/unread-count", api.unreadCount)
	ig.POST("/read", api.markInboxRead)
	ig.POST("/read-all", api.markAllInboxRead)

	// admin panel
	ag := admin.Group("/chat/contact-types")
	ag.GET("", api.queryContactTypes)
	ag.POST("", api.createContactType)
	ag.GET("/:id", api.retrieveContactType)
	ag.PUT("/:id", api.updateContactType)
	ag.DELETE("/:id", api.destroyContactType)
}

func (api *chatApi) ctxUser(ctx echo.Context) (user.User, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	return usr, errors.Wrap(err, "getting context user")
}

// Contact types

func (api *chatApi) queryActiveContactTypes(ctx echo.Context) error {
	return api.sendContactTypes(ctx, true)
}

func (api *chatApi) queryContactTypes(ctx echo.Context) error {
	return api.sendContactTypes(ctx, false)
}

func (api *chatApi) sendContactTypes(ctx echo.Context, activeOnly bool) error {
	cts, err := api.svc.QueryContactTypes(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying contact types")
	}
	if cts == nil {
		cts = []chat.ContactType{}
	}
	return ctx.JSON(http.StatusOK, cts)
}

func (api *chatApi) createContactType(ctx echo.Context) error {
	var data chat.NewContactType
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ct, err := api.svc.CreateContactType(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating contact type")
	}
	return ctx.JSON(http.StatusCreated, ct)
}

func (api *chatApi) retrieveContactType(ctx echo.Context) error {
	ct, err := api.svc.GetContactType(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting contact type")
	}
	return ctx.JSON(http.StatusOK, ct)
}

func (api *chatApi) updateContactType(ctx echo.Context) error {
	var data chat.UpdateContactType
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ct, err := api.svc.UpdateContactType(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating contact type")
	}
	return ctx.JSON(http.StatusOK, ct)
}

func (api *chatApi) destroyContactType(ctx echo.Context) error {
	if err := api.svc.DeleteContactType(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting contact type")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Threads

func (api *chatApi) queryThreads(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	threads, err := api.svc.Threads(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying threads")
	}
	if threads == nil {
		threads = []chat.Thread{}
	}
	return ctx.JSON(http.StatusOK, threads)
}

func (api *chatApi) openThread(ctx echo.Context) error {
	var data chat.NewThread
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.OpenThread(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "opening thread")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *chatApi) retrieveThread(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.GetThread(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting thread")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *chatApi) queryMessages(ctx echo.Context) error {
	var err error
	var filter chat.MessageFilter
	if filter.Before, err = queryTime(ctx, "before"); err != nil {
		return err
	}
	if filter.Limit, err = queryInt(ctx, "limit"); err != nil {
		return err
	}
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	msgs, err := api.svc.Messages(ctx.Request().Context(), usr, ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) post(ctx echo.Context) error {
	var data chat.NewMessage
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.Post(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *chatApi) markThreadRead(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.MarkRead(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking thread read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Broadcasts

func (api *chatApi) queryBroadcasts(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	bs, err := api.svc.Broadcasts(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying broadcasts")
	}
	if bs == nil {
		bs = []chat.Broadcast{}
	}
	return ctx.JSON(http.StatusOK, bs)
}

func (api *chatApi) sendBroadcast(ctx echo.Context) error {
	var data chat.NewBroadcast
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	b, err := api.svc.SendBroadcast(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "sending broadcast")
	}
	return ctx.JSON(http.StatusCreated, b)
}

// Inbox

func (api *chatApi) inbox(ctx echo.Context) error {
	var filter chat.InboxFilter
	unread, err := queryBool(ctx, "unread")
	if err != nil {
		return err
	}
	filter.UnreadOnly = unread != nil && *unread
	if filter.Limit, err = queryInt(ctx, "limit"); err != nil {
		return err
	}
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	items, err := api.svc.Inbox(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	if items == nil {
		items = []chat.InboxItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *chatApi) unreadCount(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "counting unread inbox items")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *chatApi) markInboxRead(ctx echo.Context) error {
	var data IDsRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkInboxRead(ctx.Request().Context(), usr, data.IDs...)
	if err != nil {
		return errors.Wrap(err, "marking inbox items read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *chatApi) markAllInboxRead(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkAllInboxRead(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "marking inbox read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
