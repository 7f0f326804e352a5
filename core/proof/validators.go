package proof

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/reason"
)

var (
	mainReasonTag  = "mainreason"
	mainReasonText = "unknown reason"

	customReasonTag  = "customreason"
	customReasonText = "a custom reason is required when the reason is \"other\""
)

// InitValidators registers the proof validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(mainReasonTag, mainReasonValidation)
	core.RegisterCustomTranslation(validate, translator, mainReasonTag, mainReasonText)

	validate.RegisterStructValidation(proofStructValidation, NewProof{}, EditProof{})
	core.RegisterCustomTranslation(validate, translator, customReasonTag, customReasonText)
}

// mainReasonValidation only allows the student reasons. The "other" sentinel may be spelled as its label.
func mainReasonValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	return reason.IsStudentReason(val) || reason.IsOther(val)
}

// proofStructValidation requires a custom reason alongside the "other" main reason.
func proofStructValidation(sl validator.StructLevel) {
	switch p := sl.Current().Interface().(type) {
	case NewProof:
		validateCustomReason(p.MainReason, p.CustomReason, sl)
	case EditProof:
		validateCustomReason(p.MainReason, p.CustomReason, sl)
	}
}

func validateCustomReason(main, custom string, sl validator.StructLevel) {
	if reason.IsOther(main) && custom == "" {
		sl.ReportError(custom, "custom_reason", "CustomReason", customReasonTag, "")
	}
}
