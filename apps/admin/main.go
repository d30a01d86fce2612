package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/consent"
	"github.com/purelifecenter/portal/core/i18n"
	"github.com/purelifecenter/portal/core/push"
	"github.com/purelifecenter/portal/core/user"
	emailsvc "github.com/purelifecenter/portal/services/email"
	logsvc "github.com/purelifecenter/portal/services/logger"
	pushsvc "github.com/purelifecenter/portal/services/push"
	"github.com/purelifecenter/portal/storage/database"
	sqlxrepos "github.com/purelifecenter/portal/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleService(conf, logger), conf, logger)
	cli := commandLine{
		db:         db.DB,
		usrRepo:    usrRepo,
		usrSvc:     usrSvc,
		pushSvc:    push.NewService(sqlxrepos.NewPushRepository(db), pushsvc.NewWebPushSender(&http.Client{Timeout: 10 * time.Second}), conf, logger),
		consentSvc: consent.NewService(sqlxrepos.NewConsentRepository(db)),
		chatSvc:    chat.NewService(chat.Deps{Repo: sqlxrepos.NewChatRepository(db), Users: usrSvc, Conf: conf, Log: logger}),
		i18nSvc:    i18n.NewService(sqlxrepos.NewI18nRepository(db)),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
