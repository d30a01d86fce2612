package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/compass"
	"github.com/purelifecenter/portal/core/consent"
	"github.com/purelifecenter/portal/core/content"
	"github.com/purelifecenter/portal/core/i18n"
	"github.com/purelifecenter/portal/core/knowledge"
	"github.com/purelifecenter/portal/core/push"
	"github.com/purelifecenter/portal/core/training"
	"github.com/purelifecenter/portal/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Conf           *core.Config
		Logger         core.Logger
		// SignalShutdown is called when a handler fails with a core shutdown error.
		SignalShutdown func()

		UserSvc      user.Service
		CompassSvc   compass.Service
		ConsentSvc   consent.Service
		ContentSvc   content.Service
		KnowledgeSvc knowledge.Service
		PushSvc      push.Service
		I18nSvc      i18n.Service
		ChatSvc      chat.Service
		TrainingSvc  training.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	auth := newAuthenticator(conf)
	v1 := s.app.Group("/v1")
	jwt := auth.middleware()
	optionalJWT := auth.optionalMiddleware()
	admin := v1.Group("/admin", jwt, adminMiddleware())

	registerUserAPI(v1, jwt, auth, s.opts.UserSvc)
	registerCompassAPI(v1, admin, jwt, s.opts.CompassSvc, s.opts.UserSvc)
	registerConsentAPI(v1, admin, optionalJWT, s.opts.ConsentSvc)
	registerContentAPI(v1, admin, optionalJWT, s.opts.ContentSvc)
	registerKnowledgeAPI(v1, admin, jwt, s.opts.KnowledgeSvc, s.opts.UserSvc)
	registerPushAPI(v1, admin, jwt, s.opts.PushSvc)
	registerI18nAPI(v1, admin, s.opts.I18nSvc)
	registerChatAPI(v1, admin, jwt, s.opts.ChatSvc, s.opts.UserSvc)
	registerTrainingAPI(v1, admin, jwt, s.opts.TrainingSvc, s.opts.UserSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the "+s.opts.Conf.AppName+" API!")
}
