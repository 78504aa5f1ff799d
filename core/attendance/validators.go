package attendance

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	statusTag  = "attstatus"
	statusText = "invalid attendance status"

	reasonRequiredTag  = "reason_required"
	reasonRequiredText = "a reason is required for leave and medical entries"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, statusTag, statusText)

	core.Validate.RegisterStructValidation(entryStructValidation, EntryInput{})
	core.RegisterCustomTranslation(core.Validate, core.Translator, reasonRequiredTag, reasonRequiredText)
}

// Custom Validators

// statusValidation checks that the provided status is in AllStatuses.
func statusValidation(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(Status); ok {
		return s.Valid()
	}
	return Status(fl.Field().String()).Valid()
}

// entryStructValidation enforces the write-time reason requirement:
// leave and medical entries must say why.
func entryStructValidation(sl validator.StructLevel) {
	in, ok := sl.Current().Interface().(EntryInput)
	if !ok {
		return
	}
	if in.Status.RequiresReason() && in.Reason == "" {
		sl.ReportError(in.Reason, "reason", "Reason", reasonRequiredTag, "")
	}
}
