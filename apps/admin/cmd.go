package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/sysdefaults"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sqlx.DB
	conf     *core.Config
	mailSvc  core.EmailService
	attRepo  attendance.Repository
	feeRepo  fee.Repository
	defsRepo sysdefaults.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  initdefaults - seed the system defaults row if missing")
	fmt.Println("  report -student ID -year YYYY -month M - print a student's monthly report")
	fmt.Println("  watchdefaults [-source postgres|nats] - tail the system defaults change feed")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
	reportStudent := reportCmd.String("student", "", "The student's ID.")
	reportYear := reportCmd.Int("year", 0, "The report year.")
	reportMonth := reportCmd.Int("month", 0, "The report month (1-12).")

	watchCmd := flag.NewFlagSet("watchdefaults", flag.ExitOnError)
	watchSource := watchCmd.String("source", "postgres", "The change feed source: postgres or nats.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "initdefaults":
		return cli.initDefaults(ctx)
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reportStudent == "" || *reportYear == 0 || *reportMonth == 0 {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(ctx, *reportStudent, *reportYear, *reportMonth)
	case "watchdefaults":
		if err := watchCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.watchDefaults(ctx, *watchSource)
	default:
		cli.printUsage()
		return errHelp
	}
}
