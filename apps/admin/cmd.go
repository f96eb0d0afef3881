package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/senbet/apps/api/echo"
	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
	"github.com/trezcool/senbet/services/spreadsheet"
	"github.com/trezcool/senbet/storage/database"
)

var (
	migrateFunc = database.Migrate // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	db         *sqlx.DB
	studentSvc student.Service
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, up-to VERSION, ...)")
	_, _ = fmt.Fprintln(cli.out, "  addstudent -uid UID -first NAME -father NAME -grade GRADE [-class CLASS] - add a student to the roster")
	_, _ = fmt.Fprintln(cli.out, "  importroster -file ROSTER.xlsx [-sheet NAME] - import students from a spreadsheet")
	_, _ = fmt.Fprintln(cli.out, "  token -subject ID -username NAME [-email EMAIL] [-admin] - print an API token")
}

// needsDB reports whether the command in args talks to the database.
func needsDB(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "migrate", "addstudent", "importroster":
		return true
	}
	return false
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addstudent":
		cmd := cli.newFlagSet("addstudent")
		ns := student.NewStudent{}
		cmd.StringVar(&ns.UniqueID, "uid", "", "The student's unique ID.")
		cmd.StringVar(&ns.FirstName, "first", "", "The student's first name.")
		cmd.StringVar(&ns.FatherName, "father", "", "The student's father name.")
		cmd.StringVar(&ns.Grade, "grade", "", "The student's grade.")
		cmd.StringVar(&ns.Class, "class", "", "The student's class (optional).")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.addStudent(ns)

	case "importroster":
		cmd := cli.newFlagSet("importroster")
		file := cmd.String("file", "", "The xlsx roster. The first row must hold the Unique_ID, First_Name, Father_Name, Grade (and Class) headers.")
		sheet := cmd.String("sheet", "", "The sheet to read. Defaults to the first one.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.importRoster(*file, *sheet)

	case "token":
		cmd := cli.newFlagSet("token")
		subject := cmd.String("subject", "", "The user's ID.")
		username := cmd.String("username", "", "The user's username.")
		email := cmd.String("email", "", "The user's email.")
		isAdmin := cmd.Bool("admin", false, "Grant admin rights.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *subject == "" || *username == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.token(*subject, *username, *email, *isAdmin)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(cli.db, args[0], args[1:]...)
}

func (cli *commandLine) addStudent(ns student.NewStudent) error {
	s, err := cli.studentSvc.Create(context.Background(), ns)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "student %s added (%s)\n", s.UniqueID, s.ID)
	return nil
}

func (cli *commandLine) importRoster(path, sheet string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer func() { _ = f.Close() }()

	entries, err := spreadsheet.ReadRoster(f, sheet)
	if err != nil {
		return err
	}
	created, err := cli.studentSvc.Import(context.Background(), entries)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d student(s) imported\n", len(created))
	return nil
}

func (cli *commandLine) token(subject, username, email string, isAdmin bool) error {
	claims := echoapi.NewClaims(cli.conf, subject, username, email, isAdmin)
	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}
