package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	dig_container "github.com/trezcool/senbet/apps/api/di/dig"
	echoapi "github.com/trezcool/senbet/apps/api/echo"
	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
	"github.com/trezcool/senbet/services/spreadsheet"
	"github.com/trezcool/senbet/services/sweeper"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		rdb *redis.Client,
		studentSvc student.Service,
		sweep *sweeper.Sweeper,
		server echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if db == nil {
				return
			}
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer func() {
			if rdb == nil {
				return
			}
			if err := rdb.Close(); err != nil {
				dbLogger.Error("Failed to close redis", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		if conf.Roster.SeedFile != "" && conf.Roster.Source == core.RosterSourceMemory {
			n, err := seedRoster(conf.Roster.SeedFile, studentSvc)
			if err != nil {
				apiLogger.Fatal(fmt.Sprintf("seeding roster: %v", err), err)
			}
			apiLogger.Info(fmt.Sprintf("%d student(s) loaded from %s", n, conf.Roster.SeedFile))
		}

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.NewString("roster").Set(conf.Roster.Source)
		expvar.NewString("sessions").Set(conf.Session.Store)

		if conf.Server.DebugHost != "" {
			go func() {
				if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
					apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
				}
			}()
		}

		// =========================================================================
		// Start Idle Sessions Sweeper

		sweep.Start()

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			sweep.Stop(ctx)

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

// seedRoster imports an xlsx roster into the in-memory store.
func seedRoster(path string, svc student.Service) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "opening seed file")
	}
	defer func() { _ = f.Close() }()

	entries, err := spreadsheet.ReadRoster(f, "")
	if err != nil {
		return 0, err
	}
	created, err := svc.Import(context.Background(), entries)
	if err != nil {
		return 0, err
	}
	return len(created), nil
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
