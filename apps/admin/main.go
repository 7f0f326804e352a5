package main

import (
	"context"
	"log"
	"os"
	_ "time/tzdata"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/reason"
	logsvc "github.com/trezcool/absento/services/logger"
	"github.com/trezcool/absento/storage/database"
	boiledrepos "github.com/trezcool/absento/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/absento/storage/database/sqlx"
)

func main() {
	logger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err)
	}

	validate, _ := core.NewValidator()

	// start CLI
	cli := commandLine{
		ctx:      context.Background(),
		conf:     conf,
		out:      os.Stdout,
		db:       db.DB,
		validate: validate,
		absences: sqlxrepos.NewAbsenceRepository(db),
		failures: sqlxrepos.NewNotificationFailureRepository(db),
		catalog:  reason.NewCatalog(boiledrepos.NewReasonRepository(db), logsvc.NewRollbarLogger(logger, conf)),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
