package attendance

import (
	"time"

	"github.com/trezcool/shule/core"
)

// Hours are class periods, up to 15 per day.
const (
	MinHour = 1
	MaxHour = 15
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusLeave   Status = "leave"
	StatusIn      Status = "in"
	StatusOut     Status = "out"
	StatusExam    Status = "exam"
	StatusMedical Status = "medical"
)

var AllStatuses = []Status{
	StatusPresent, StatusAbsent, StatusLate, StatusLeave,
	StatusIn, StatusOut, StatusExam, StatusMedical,
}

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusLeave,
		StatusIn, StatusOut, StatusExam, StatusMedical:
		return true
	default:
		return false
	}
}

// RequiresReason reports whether entries with this status must carry a reason.
func (s Status) RequiresReason() bool {
	return s == StatusLeave || s == StatusMedical
}

// HasTime reports whether a clock time is meaningful for this status.
func (s Status) HasTime() bool {
	return s == StatusIn || s == StatusOut || s == StatusLate
}

// HourlyEntry is one class hour's attendance within a DailyRecord.
type HourlyEntry struct {
	Hour   int    `json:"hour"`
	Status Status `json:"status"`
	Time   string `json:"time,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// DailyRecord holds a student's hourly attendance for one calendar day.
// Identity is (StudentID, Date); Version is the optimistic-concurrency token
// and increments on every successful mutation. Records are never physically
// deleted, only their entries cleared.
type DailyRecord struct {
	StudentID string        `json:"student_id"`
	Date      time.Time     `json:"date"` // midnight UTC
	Hours     []HourlyEntry `json:"hourly_status"` // ascending by Hour; Hour unique
	Version   int           `json:"version"`
}

// Entry returns the entry for the given hour, if recorded.
func (r *DailyRecord) Entry(hour int) (HourlyEntry, bool) {
	for _, e := range r.Hours {
		if e.Hour == hour {
			return e, true
		}
	}
	return HourlyEntry{}, false
}

// setEntry replaces the entry for e.Hour, or inserts it keeping Hours sorted.
func (r *DailyRecord) setEntry(e HourlyEntry) {
	for i, cur := range r.Hours {
		if cur.Hour == e.Hour {
			r.Hours[i] = e
			return
		}
		if cur.Hour > e.Hour {
			r.Hours = append(r.Hours, HourlyEntry{})
			copy(r.Hours[i+1:], r.Hours[i:])
			r.Hours[i] = e
			return
		}
	}
	r.Hours = append(r.Hours, e)
}

// MonthlySummary is derived from DailyRecords on demand, never stored.
// ExpectedHours counts recorded entries only; unrecorded hours neither count
// as absent nor inflate the denominator.
type MonthlySummary struct {
	StudentID     string         `json:"student_id"`
	Year          int            `json:"year"`
	Month         time.Month     `json:"month"`
	Counts        map[Status]int `json:"counts"`
	PresentHours  int            `json:"present_hours"`
	ExpectedHours int            `json:"expected_hours"`
	Percentage    float64        `json:"attendance_percentage"`
}

// LeaveReason is one leave entry with its justification.
type LeaveReason struct {
	Date   time.Time `json:"date"`
	Hour   int       `json:"hour"`
	Reason string    `json:"reason"`
}

// EntryInput contains information needed to record one hour of attendance.
type EntryInput struct {
	Hour   int    `json:"hour" validate:"required,min=1,max=15"`
	Status Status `json:"status" validate:"required,attstatus"`
	Time   string `json:"time" validate:"omitempty"`
	Reason string `json:"reason"`
}

func (in *EntryInput) Validate() error {
	in.Time = core.CleanString(in.Time)
	in.Reason = core.CleanString(in.Reason)
	if !in.Status.HasTime() {
		in.Time = ""
	}
	return core.Validate.Struct(in)
}

func (in EntryInput) entry() HourlyEntry {
	return HourlyEntry{Hour: in.Hour, Status: in.Status, Time: in.Time, Reason: in.Reason}
}
