package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/core/user"
	logsvc "github.com/skillbarter/backend/services/logger"
	"github.com/skillbarter/backend/storage/database"
	sqlxrepos "github.com/skillbarter/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()

	// start CLI
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), conf, nil)
	cli := commandLine{
		db:     db.DB,
		usrSvc: usrSvc,
		authSvc: auth.NewService(auth.Deps{
			Conf:    conf,
			UserSvc: usrSvc,
			OTPRepo: sqlxrepos.NewOTPRepository(db),
			Logger:  logger,
		}),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		db.Close()
		os.Exit(1)
	}
}
