package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/skillbarter/backend/core"
)

var (
	difficultyTag  = "difficulty"
	difficultyText = "difficulty must be one of beginner, intermediate or advanced"

	requiredTag = "required"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least one uppercase letter, one lowercase letter, and one number"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the validations of the user package.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(difficultyTag, difficultyValidation)
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ChangePassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// Custom Validators

func difficultyValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// userStructValidation does struct level validation on NewUser, UpdateUser and ChangePassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch data := sl.Current().Interface().(type) {
	case NewUser:
		if data.Password != "" {
			ValidatePassword(sl, data.Password, "password", data.FirstName, data.LastName, data.Email)
		}
	case UpdateUser:
		if data.FirstName != nil && *data.FirstName == "" {
			sl.ReportError(data.FirstName, "first_name", "FirstName", requiredTag, "")
		}
		if data.LastName != nil && *data.LastName == "" {
			sl.ReportError(data.LastName, "last_name", "LastName", requiredTag, "")
		}
		if data.Username != nil && *data.Username == "" {
			sl.ReportError(data.Username, "username", "Username", requiredTag, "")
		}
		if data.Email != nil && *data.Email == "" {
			sl.ReportError(data.Email, "email", "Email", requiredTag, "")
		}
	case ChangePassword:
		if data.NewPassword != "" {
			ValidatePassword(sl, data.NewPassword, "new_password", data.firstName, data.lastName, data.email)
		}
	}
}

// ValidatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - complexity: 1 upper, 1 lower, 1 digit
// - no user attrs similarity
func ValidatePassword(sl validator.StructLevel, pwd, field string, attrs ...string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, field, field, tag, "")
	}

	if len([]rune(pwd)) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}
	if !(hasUpper && hasLower && hasDigit) {
		reportErr(pwdComplexityTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}
}
