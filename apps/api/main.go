package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	echoapi "github.com/purelifecenter/portal/apps/api/echo"
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
	emailsvc "github.com/purelifecenter/portal/services/email"
	"github.com/purelifecenter/portal/services/events"
	logsvc "github.com/purelifecenter/portal/services/logger"
	pushsvc "github.com/purelifecenter/portal/services/push"
	"github.com/purelifecenter/portal/storage/database"
	inmemdb "github.com/purelifecenter/portal/storage/database/inmem"
	sqlxrepos "github.com/purelifecenter/portal/storage/database/sqlx"
	"github.com/purelifecenter/portal/storage/files"
)

type repositories struct {
	user      user.Repository
	compass   compass.Repository
	consent   consent.Repository
	content   content.Repository
	knowledge knowledge.Repository
	push      push.Repository
	i18n      i18n.Repository
	chat      chat.Repository
	training  training.Repository
	close     func() error
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := repos.close(); err != nil {
			dbLogger.Error("failed to close", err)
		}
	}()

	ctx := context.Background()
	fileStore, err := files.New(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up file storage")
	}

	publisher, err := events.New(conf, logger)
	if err != nil {
		return errors.Wrap(err, "connecting to the event bus")
	}
	defer func() { _ = publisher.Close() }()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(repos.user, mailSvc, conf, logger)
	pushSvc := push.NewService(repos.push, pushsvc.NewWebPushSender(&http.Client{Timeout: 10 * time.Second}), conf, logger)
	chatSvc := chat.NewService(chat.Deps{
		Repo:    repos.chat,
		Users:   usrSvc,
		Pusher:  pushSvc,
		MailSvc: mailSvc,
		Events:  publisher,
		Conf:    conf,
		Log:     logger,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Addr,
		Conf:           conf,
		Logger:         logger,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
		UserSvc:        usrSvc,
		CompassSvc:     compass.NewService(repos.compass),
		ConsentSvc:     consent.NewService(repos.consent),
		ContentSvc:     content.NewService(repos.content),
		KnowledgeSvc:   knowledge.NewService(repos.knowledge, fileStore, logger),
		PushSvc:        pushSvc,
		I18nSvc:        i18n.NewService(repos.i18n),
		ChatSvc:        chatSvc,
		TrainingSvc:    training.NewService(repos.training, usrSvc, publisher, logger),
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Addr)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}

func setUpRepositories(conf *core.Config) (*repositories, error) {
	if conf.Database.InMemory {
		db := inmemdb.Open()
		return &repositories{
			user:      inmemdb.NewUserRepository(db),
			compass:   inmemdb.NewCompassRepository(db),
			consent:   inmemdb.NewConsentRepository(db),
			content:   inmemdb.NewContentRepository(db),
			knowledge: inmemdb.NewKnowledgeRepository(db),
			push:      inmemdb.NewPushRepository(db),
			i18n:      inmemdb.NewI18nRepository(db),
			chat:      inmemdb.NewChatRepository(db),
			training:  inmemdb.NewTrainingRepository(db),
			close:     func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(context.Background(), db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		user:      sqlxrepos.NewUserRepository(db),
		compass:   sqlxrepos.NewCompassRepository(db),
		consent:   sqlxrepos.NewConsentRepository(db),
		content:   sqlxrepos.NewContentRepository(db),
		knowledge: sqlxrepos.NewKnowledgeRepository(db),
		push:      sqlxrepos.NewPushRepository(db),
		i18n:      sqlxrepos.NewI18nRepository(db),
		chat:      sqlxrepos.NewChatRepository(db),
		training:  sqlxrepos.NewTrainingRepository(db),
		close:     db.Close,
	}, nil
}
