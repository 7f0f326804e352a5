package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	_ "time/tzdata"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/absento/apps/api/echo"
	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/proof"
	"github.com/trezcool/absento/core/reason"
	emailsvc "github.com/trezcool/absento/services/email"
	"github.com/trezcool/absento/services/filestore"
	logsvc "github.com/trezcool/absento/services/logger"
	pdfsvc "github.com/trezcool/absento/services/pdf"
	"github.com/trezcool/absento/storage/cache"
	"github.com/trezcool/absento/storage/database"
	inmemdb "github.com/trezcool/absento/storage/database/inmem"
	boiledrepos "github.com/trezcool/absento/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/absento/storage/database/sqlx"
)

const engineInMem = "inmem"

type repositories struct {
	tx       core.Transactor
	proofs   proof.Repository
	absences absence.Repository
	failures proof.NotificationFailureRepository
	reasons  reason.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB & repos
	repos, closeDB, err := setUpRepositories(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	mailSvc, err := newMailService(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up mail service: %v", err), err)
	}
	files, err := newFileStore(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	proof.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	catalog := reason.NewCatalog(repos.reasons, logger)
	proofSvc := proof.NewService(proof.Deps{
		Tx:       repos.tx,
		Proofs:   repos.proofs,
		Absences: repos.absences,
		Failures: repos.failures,
		Catalog:  catalog,
		Files:    files,
		Notifier: emailsvc.NewStudentSink(mailSvc, conf),
		Receipts: pdfsvc.NewReceiptRenderer(conf),
		Cache:    cache.NewMemory(),
		Validate: validate,
		Logger:   logger,
		Conf:     conf,
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			ProofSvc:   proofSvc,
			Catalog:    catalog,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories returns the repositories of the configured engine along with a func closing the DB.
func setUpRepositories(ctx context.Context, conf *core.Config) (repositories, func() error, error) {
	if conf.Database.Engine == engineInMem {
		db := inmemdb.NewDB()
		return repositories{
			tx:       db,
			proofs:   inmemdb.NewProofRepository(db),
			absences: inmemdb.NewAbsenceRepository(db),
			failures: inmemdb.NewNotificationFailureRepository(db),
			reasons:  inmemdb.NewReasonRepository(db),
		}, func() error { return nil }, nil
	}

	db, err := setUpDB(ctx, conf)
	if err != nil {
		return repositories{}, nil, err
	}
	return repositories{
		tx:       database.NewTransactor(db),
		proofs:   sqlxrepos.NewProofRepository(db),
		absences: sqlxrepos.NewAbsenceRepository(db),
		failures: sqlxrepos.NewNotificationFailureRepository(db),
		reasons:  boiledrepos.NewReasonRepository(db),
	}, db.Close, nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newMailService(ctx context.Context, conf *core.Config) (core.EmailService, error) {
	switch conf.Mail.Backend {
	case "sendgrid":
		return emailsvc.NewSendgridService(conf), nil
	case "ses":
		return emailsvc.NewSESService(ctx, conf)
	case "", "console":
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags)), nil
	}
	return nil, errors.Errorf("unknown mail backend %q", conf.Mail.Backend)
}

func newFileStore(ctx context.Context, conf *core.Config) (proof.FileStore, error) {
	switch conf.Storage.Backend {
	case "s3":
		return filestore.NewS3(ctx, conf)
	case "", "disk":
		return filestore.NewDisk(conf.Storage.Dir)
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}
