package fee

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	methodTag  = "feemethod"
	methodText = "invalid payment method"

	typeTag  = "feetype"
	typeText = "invalid payment type"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(methodTag, methodValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, methodTag, methodText)

	_ = core.Validate.RegisterValidation(typeTag, typeValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, typeTag, typeText)
}

// Custom Validators

func methodValidation(fl validator.FieldLevel) bool {
	if m, ok := fl.Field().Interface().(Method); ok {
		return m.Valid()
	}
	return Method(fl.Field().String()).Valid()
}

func typeValidation(fl validator.FieldLevel) bool {
	if t, ok := fl.Field().Interface().(PaymentType); ok {
		return t.Valid()
	}
	return PaymentType(fl.Field().String()).Valid()
}
