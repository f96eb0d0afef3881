package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/senbet/apps/api/echo"
	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/core/student"
	emailsvc "github.com/trezcool/senbet/services/email"
	logsvc "github.com/trezcool/senbet/services/logger"
	"github.com/trezcool/senbet/services/metrics"
	"github.com/trezcool/senbet/services/spreadsheet"
	"github.com/trezcool/senbet/services/sweeper"
	rediscache "github.com/trezcool/senbet/storage/cache/redis"
	"github.com/trezcool/senbet/storage/database"
	"github.com/trezcool/senbet/storage/database/inmem"
	sqlxrepos "github.com/trezcool/senbet/storage/database/sqlx"
	"github.com/trezcool/senbet/storage/remote"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

// newDB returns nil unless the roster lives in the database.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Roster.Source != core.RosterSourceDatabase {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newRedis returns nil unless sessions are kept in redis.
func newRedis(conf *core.Config, loggerParam DBLoggerParam) *redis.Client {
	if conf.Session.Store != core.SessionStoreRedis {
		return nil
	}
	client, err := rediscache.Open(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up redis: %v", err), err)
	}
	return client
}

func newStudentRepository(db *sqlx.DB, mem *inmemdb.DB) student.Repository {
	if db != nil {
		return sqlxrepos.NewStudentRepository(db)
	}
	return inmemdb.NewStudentRepository(mem)
}

func newSheetRepository(db *sqlx.DB, mem *inmemdb.DB) attendance.SheetRepository {
	if db != nil {
		return sqlxrepos.NewSheetRepository(db)
	}
	return inmemdb.NewSheetRepository(mem)
}

func newSessionRepository(conf *core.Config, client *redis.Client, mem *inmemdb.DB) attendance.SessionRepository {
	if client != nil {
		return rediscache.NewSessionRepository(client, conf.Session.IdleTTL)
	}
	return inmemdb.NewSessionRepository(mem)
}

func newRoster(conf *core.Config, svc student.Service) attendance.Roster {
	if conf.Roster.Source == core.RosterSourceHTTP {
		return remote.NewRosterClient(conf)
	}
	return svc
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newAttendanceService(
	sessions attendance.SessionRepository,
	sheets attendance.SheetRepository,
	roster attendance.Roster,
	exporter attendance.Exporter,
	mailSvc core.EmailService,
	clock core.Clock,
	logger core.Logger,
	conf *core.Config,
) attendance.Service {
	svc := attendance.NewService(sessions, sheets, roster, exporter, mailSvc, clock, logger, conf)
	return metrics.InstrumentAttendance(svc)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	clock core.Clock,
	studentSvc student.Service,
	attendanceSvc attendance.Service,
	validate *validator.Validate,
	translator ut.Translator,
) echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Clock:         clock,
		StudentSvc:    studentSvc,
		AttendanceSvc: attendanceSvc,
		Validate:      validate,
		Translator:    translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewClock))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(newDB))
	must(c.Provide(newRedis))
	must(c.Provide(inmemdb.Open))
	must(c.Provide(newStudentRepository))
	must(c.Provide(newSheetRepository))
	must(c.Provide(newSessionRepository))
	must(c.Provide(student.NewService))
	must(c.Provide(newRoster))
	must(c.Provide(newEmailService))
	must(c.Provide(spreadsheet.NewExporter))
	must(c.Provide(newAttendanceService))
	must(c.Provide(sweeper.New))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
