package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/shule/core"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	if conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	if len(os.Args) < 2 || os.Args[1] != "migrate" {
		errAndDie(database.Migrate(db))
	}

	// start CLI
	cli := commandLine{
		db:       db,
		conf:     conf,
		mailSvc:  mailSvc,
		attRepo:  sqlxrepos.NewAttendanceRepository(db),
		feeRepo:  sqlxrepos.NewFeeRepository(db),
		defsRepo: sqlxrepos.NewDefaultsRepository(db),
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if err != errHelp {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
