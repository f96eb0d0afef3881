package main

import (
	"log"
	"os"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
	"github.com/trezcool/senbet/storage/database"
	sqlxrepos "github.com/trezcool/senbet/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	cli := commandLine{conf: conf, out: os.Stdout}

	if needsDB(os.Args) {
		// set up DB
		errAndDie(database.CreateIfNotExist(conf))
		db, err := database.Open(conf)
		errAndDie(err)
		defer func() { _ = db.Close() }()

		cli.db = db
		cli.studentSvc = student.NewService(sqlxrepos.NewStudentRepository(db), core.NewValidator(core.NewTranslator()))
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %v\n", err)
		}
		os.Exit(1) // nolint: gocritic
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
