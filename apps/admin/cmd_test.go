package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/fee"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	if logger == nil {
		logger = logsvc.NewStdLogger(nil)
	}

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}

	conf := &core.Config{AppName: "Shule"}
	return &commandLine{
		db:       &sqlx.DB{},
		conf:     conf,
		mailSvc:  emailsvc.NewConsoleServiceMock(conf),
		attRepo:  inmemdb.NewAttendanceRepository(db),
		feeRepo:  inmemdb.NewFeeRepository(db),
		defsRepo: inmemdb.NewDefaultsRepository(db),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "fee_record", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(context.Background(), args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_initDefaults(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	if err := cli.run(ctx, []string{"admin", "initdefaults"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}

	defs, err := cli.defsRepo.Get(ctx)
	if err != nil {
		t.Fatalf("defsRepo.Get() failed, %v", err)
	}
	if defs.Version != 1 {
		t.Errorf("defs.Version = %d, want 1", defs.Version)
	}

	// running it again must not re-seed or bump the version
	if err := cli.run(ctx, []string{"admin", "initdefaults"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	if defs, _ = cli.defsRepo.Get(ctx); defs.Version != 1 {
		t.Errorf("defs.Version = %d after re-run, want 1", defs.Version)
	}
}

func Test_commandLine_report(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	attSvc := attendance.NewService(cli.attRepo, nil)
	date := core.Date(2024, time.May, 6)
	for hour, status := range map[int]attendance.Status{
		1: attendance.StatusPresent,
		2: attendance.StatusPresent,
		3: attendance.StatusAbsent,
	} {
		in := attendance.EntryInput{Hour: hour, Status: status}
		rec, err := attSvc.GetRecord(ctx, "STU-1", date)
		version := 0
		if err == nil {
			version = rec.Version
		}
		if _, err := attSvc.UpsertHour(ctx, "STU-1", date, in, version); err != nil {
			t.Fatalf("UpsertHour() failed, %v", err)
		}
	}

	feeSvc := fee.NewService(cli.feeRepo, nil, nil, nil)
	if _, err := feeSvc.Create(ctx, fee.NewRecord{
		StudentID:   "STU-1",
		TotalAmount: 10000,
		DueDate:     core.Date(2024, time.June, 1),
	}); err != nil {
		t.Fatalf("feeSvc.Create() failed, %v", err)
	}

	tests := []cliTest{
		{name: "no flags", args: []string{"report"}, wantErr: errHelp},
		{name: "missing year", args: []string{"report", "-student", "STU-1", "-month", "5"}, wantErr: errHelp},
		{name: "ok", args: []string{"report", "-student", "STU-1", "-year", "2024", "-month", "5"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(context.Background(), args); err != nil {
				if tt.wantErr == nil || err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			}
		})
	}

	t.Run("unknown student", func(t *testing.T) {
		err := cli.run(ctx, []string{"admin", "report", "-student", "NOPE", "-year", "2024", "-month", "5"})
		if !core.IsNotFound(err) {
			t.Errorf("cli.run() error = %v, want a not-found error", err)
		}
	})
}
