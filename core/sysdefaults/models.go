package sysdefaults

// SystemDefaults is the process-wide configuration singleton. Version
// increments on every update so stale readers can detect the need to refetch;
// all mutation goes through Sync.Update, never direct field assignment.
type SystemDefaults struct {
	GracePeriodMonths   int      `json:"grace_period_months"`
	GraceFee            float64  `json:"grace_fee"`
	BatchFormat         string   `json:"batch_format"`
	CourseList          []string `json:"course_list"`
	NotifFee            bool     `json:"notif_fee"`
	NotifAttendance     bool     `json:"notif_attendance"`
	NotifSystem         bool     `json:"notif_system"`
	MinPayment          float64  `json:"min_payment"`
	AttendanceThreshold float64  `json:"attendance_threshold"`
	Currency            string   `json:"currency"`
	Version             int      `json:"version"`
}

// copy returns a deep copy so callers can never alias internal state.
func (d SystemDefaults) copy() SystemDefaults {
	cp := d
	cp.CourseList = append([]string(nil), d.CourseList...)
	return cp
}

// Patch is a partial SystemDefaults; nil fields are left untouched by Update.
type Patch struct {
	GracePeriodMonths   *int      `json:"grace_period_months,omitempty"`
	GraceFee            *float64  `json:"grace_fee,omitempty"`
	BatchFormat         *string   `json:"batch_format,omitempty"`
	CourseList          *[]string `json:"course_list,omitempty"`
	NotifFee            *bool     `json:"notif_fee,omitempty"`
	NotifAttendance     *bool     `json:"notif_attendance,omitempty"`
	NotifSystem         *bool     `json:"notif_system,omitempty"`
	MinPayment          *float64  `json:"min_payment,omitempty"`
	AttendanceThreshold *float64  `json:"attendance_threshold,omitempty"`
	Currency            *string   `json:"currency,omitempty"`
}

func (p Patch) apply(d *SystemDefaults) {
	if p.GracePeriodMonths != nil {
		d.GracePeriodMonths = *p.GracePeriodMonths
	}
	if p.GraceFee != nil {
		d.GraceFee = *p.GraceFee
	}
	if p.BatchFormat != nil {
		d.BatchFormat = *p.BatchFormat
	}
	if p.CourseList != nil {
		d.CourseList = append([]string(nil), (*p.CourseList)...)
	}
	if p.NotifFee != nil {
		d.NotifFee = *p.NotifFee
	}
	if p.NotifAttendance != nil {
		d.NotifAttendance = *p.NotifAttendance
	}
	if p.NotifSystem != nil {
		d.NotifSystem = *p.NotifSystem
	}
	if p.MinPayment != nil {
		d.MinPayment = *p.MinPayment
	}
	if p.AttendanceThreshold != nil {
		d.AttendanceThreshold = *p.AttendanceThreshold
	}
	if p.Currency != nil {
		d.Currency = *p.Currency
	}
}

// ChangeEnvelope is the backing store's wire payload for change-feed
// notifications, keyed by table name on the transport side.
type ChangeEnvelope struct {
	Event  string         `json:"event"`
	NewRow SystemDefaults `json:"newRow"`
}

// hardDefaults are the first-run bootstrap values, used when the backing store
// has no row yet and as ResetField targets.
var hardDefaults = SystemDefaults{
	GracePeriodMonths:   2,
	GraceFee:            500,
	BatchFormat:         "2006",
	CourseList:          []string{},
	NotifFee:            true,
	NotifAttendance:     true,
	NotifSystem:         true,
	MinPayment:          500,
	AttendanceThreshold: 75,
	Currency:            "PKR",
}

// HardDefaults returns a copy of the first-run bootstrap values.
func HardDefaults() SystemDefaults { return hardDefaults.copy() }

// hardDefaultPatch returns a Patch resetting the named field (JSON name) to
// its hard-coded default, or false for an unknown key.
func hardDefaultPatch(key string) (Patch, bool) {
	hd := HardDefaults()
	switch key {
	case "grace_period_months":
		return Patch{GracePeriodMonths: &hd.GracePeriodMonths}, true
	case "grace_fee":
		return Patch{GraceFee: &hd.GraceFee}, true
	case "batch_format":
		return Patch{BatchFormat: &hd.BatchFormat}, true
	case "course_list":
		return Patch{CourseList: &hd.CourseList}, true
	case "notif_fee":
		return Patch{NotifFee: &hd.NotifFee}, true
	case "notif_attendance":
		return Patch{NotifAttendance: &hd.NotifAttendance}, true
	case "notif_system":
		return Patch{NotifSystem: &hd.NotifSystem}, true
	case "min_payment":
		return Patch{MinPayment: &hd.MinPayment}, true
	case "attendance_threshold":
		return Patch{AttendanceThreshold: &hd.AttendanceThreshold}, true
	case "currency":
		return Patch{Currency: &hd.Currency}, true
	default:
		return Patch{}, false
	}
}
