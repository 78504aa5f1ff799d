package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/sysdefaults"
)

// report prints a student's monthly report as indented JSON.
func (cli *commandLine) report(ctx context.Context, studentID string, year, month int) error {
	sdSync, err := sysdefaults.NewSync(ctx, cli.defsRepo, logger)
	if err != nil {
		return err
	}
	defer sdSync.Close()

	attSvc := attendance.NewService(cli.attRepo, nil)
	feeSvc := fee.NewService(cli.feeRepo, nil, sdSync, cli.mailSvc)
	assembler := report.NewAssembler(attSvc, feeSvc, sdSync, cli.mailSvc)

	rep, err := assembler.BuildMonthlyReport(ctx, report.MonthlyReportRequest{
		StudentID: studentID,
		Year:      year,
		Month:     time.Month(month),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Monthly report for %s - %04d/%02d\n", studentID, year, month)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
