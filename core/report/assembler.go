package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/sysdefaults"
)

type (
	// MonthlyReportRequest carries everything a report build needs explicitly;
	// there is no shared "selected student/month" state anywhere.
	MonthlyReportRequest struct {
		StudentID string     `json:"student_id" validate:"required"`
		Year      int        `json:"year" validate:"required,min=2000"`
		Month     time.Month `json:"month" validate:"required,min=1,max=12"`
	}

	// MonthlyReport is report-ready data; rendering is someone else's job.
	MonthlyReport struct {
		Attendance     attendance.MonthlySummary `json:"attendance"`
		Fee            *fee.Record               `json:"fee,omitempty"` // nil when the student has no fee record
		LeaveReasons   []attendance.LeaveReason  `json:"leave_reasons"`
		BelowThreshold bool                      `json:"below_threshold"`
		Currency       string                    `json:"currency"`
	}

	// DefaultsSource supplies the current system defaults (policy constants).
	DefaultsSource interface {
		Current() sysdefaults.SystemDefaults
	}

	Assembler struct {
		attSvc   attendance.Service
		feeSvc   fee.Service
		defaults DefaultsSource
		mailSvc  core.EmailService // optional
	}
)

func (req *MonthlyReportRequest) Validate() error {
	req.StudentID = core.CleanString(req.StudentID)
	return core.Validate.Struct(req)
}

func NewAssembler(attSvc attendance.Service, feeSvc fee.Service, defaults DefaultsSource, mailSvc core.EmailService) *Assembler {
	return &Assembler{attSvc: attSvc, feeSvc: feeSvc, defaults: defaults, mailSvc: mailSvc}
}

// BuildMonthlyReport composes the attendance summary, fee snapshot and leave
// reasons for one student and month. It fails with a core.NotFoundError when
// neither ledger has any record for the student.
func (a *Assembler) BuildMonthlyReport(ctx context.Context, req MonthlyReportRequest) (MonthlyReport, error) {
	if err := req.Validate(); err != nil {
		return MonthlyReport{}, err
	}

	summary, err := a.attSvc.MonthlySummary(ctx, req.StudentID, req.Year, req.Month)
	if err != nil {
		return MonthlyReport{}, err
	}

	var feeSnapshot *fee.Record
	feeRec, err := a.feeSvc.GetByStudent(ctx, req.StudentID)
	switch {
	case err == nil:
		feeSnapshot = &feeRec
	case errors.Is(err, fee.ErrRecordNotFound):
		// attendance alone can still carry the report
	default:
		return MonthlyReport{}, err
	}

	if feeSnapshot == nil {
		known, err := a.attSvc.HasRecords(ctx, req.StudentID)
		if err != nil {
			return MonthlyReport{}, err
		}
		if !known {
			return MonthlyReport{}, core.NewNotFoundError("student", req.StudentID)
		}
	}

	reasons, err := a.attSvc.LeaveReasons(ctx, req.StudentID, req.Year, req.Month)
	if err != nil {
		return MonthlyReport{}, err
	}

	defs := a.defaults.Current()
	rep := MonthlyReport{
		Attendance:     summary,
		Fee:            feeSnapshot,
		LeaveReasons:   reasons,
		BelowThreshold: summary.ExpectedHours > 0 && summary.Percentage < defs.AttendanceThreshold,
		Currency:       defs.Currency,
	}
	if rep.BelowThreshold {
		a.notifyLowAttendance(req, summary, defs.AttendanceThreshold, defs.NotifAttendance)
	}
	return rep, nil
}

func (a *Assembler) notifyLowAttendance(req MonthlyReportRequest, summary attendance.MonthlySummary, threshold float64, enabled bool) {
	if a.mailSvc == nil || !enabled {
		return
	}
	a.mailSvc.SendMessages(&core.EmailMessage{
		Subject: fmt.Sprintf("Low attendance for student %s", req.StudentID),
		Body: fmt.Sprintf(
			"Student %s attended %.1f%% of recorded hours in %04d-%02d, below the %.1f%% threshold.",
			req.StudentID, summary.Percentage, req.Year, req.Month, threshold,
		),
	})
}
