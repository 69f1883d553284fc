package booking

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/skillbarter/backend/core"
)

var (
	daysCountTag  = "dayscount"
	daysCountText = "days_of_week must contain exactly days_per_week days"
)

// InitValidators registers the validations of the booking package.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(scheduleStructValidation, Schedule{})
	core.RegisterCustomTranslation(validate, translator, daysCountTag, daysCountText)
}

func scheduleStructValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(Schedule)
	if len(s.DaysOfWeek) != s.DaysPerWeek {
		sl.ReportError(s.DaysOfWeek, "days_of_week", "DaysOfWeek", daysCountTag, "")
	}
}
