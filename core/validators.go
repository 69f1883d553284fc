package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Weekdays are the accepted day names of recurring schedules.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var (
	// custom validation tags & texts
	httpURLTag   = "httpurl"
	httpURLText  = "must be a valid URL starting with http:// or https://"
	httpURLRegex = regexp.MustCompile(`^https?://.+`)

	timezoneTag   = "timezone"
	timezoneText  = "invalid timezone format"
	timezoneRegex = regexp.MustCompile(`^[A-Za-z_]+/[A-Za-z_]+$`)

	hhmmTag   = "hhmm"
	hhmmText  = "time must be in HH:MM format"
	hhmmRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

	usernameTag   = "username"
	usernameText  = "only lowercase letters, numbers and underscores are allowed"
	usernameRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

	otpTag   = "otp"
	otpText  = "OTP must be exactly 6 digits"
	otpRegex = regexp.MustCompile(`^[0-9]{6}$`)

	weekdayTag  = "weekday"
	weekdayText = "invalid day of week"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	registerRegexValidation(validate, translator, httpURLTag, httpURLText, httpURLRegex)
	registerRegexValidation(validate, translator, timezoneTag, timezoneText, timezoneRegex)
	registerRegexValidation(validate, translator, hhmmTag, hhmmText, hhmmRegex)
	registerRegexValidation(validate, translator, usernameTag, usernameText, usernameRegex)
	registerRegexValidation(validate, translator, otpTag, otpText, otpRegex)

	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	RegisterCustomTranslation(validate, translator, weekdayTag, weekdayText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func registerRegexValidation(validate *validator.Validate, translator ut.Translator, tag, text string, rx *regexp.Regexp) {
	_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return rx.MatchString(fl.Field().String())
	})
	RegisterCustomTranslation(validate, translator, tag, text)
}

// Custom Global Validators

// weekdayValidation only allows full English weekday names.
func weekdayValidation(fl validator.FieldLevel) bool {
	return IsWeekday(fl.Field().String())
}

func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// IsHHMM reports whether `s` is a valid 24h HH:MM time.
func IsHHMM(s string) bool {
	return hhmmRegex.MatchString(s)
}
