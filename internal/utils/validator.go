// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	ifscRegex    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	upiRegex     = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z]+$`)
	phone10Regex = regexp.MustCompile(`^[0-9]{10}$`)
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("ifsc", validateIFSC)
	validate.RegisterValidation("upi", validateUPI)
	validate.RegisterValidation("phone10", validatePhone10)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateIFSC(fl validator.FieldLevel) bool {
	return ifscRegex.MatchString(fl.Field().String())
}

func validateUPI(fl validator.FieldLevel) bool {
	return upiRegex.MatchString(fl.Field().String())
}

// Indian mobile numbers: exactly 10 digits after stripping formatting.
func validatePhone10(fl validator.FieldLevel) bool {
	return phone10Regex.MatchString(CleanPhone(fl.Field().String()))
}

// CleanPhone strips spaces, plus signs, hyphens, and parentheses.
func CleanPhone(phone string) string {
	replacer := strings.NewReplacer(" ", "", "+", "", "-", "", "(", "", ")", "")
	return replacer.Replace(phone)
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "ifsc":
		return "Invalid IFSC code format"
	case "upi":
		return "Invalid UPI ID format. Example: username@paytm"
	case "phone10":
		return "Phone number must be 10 digits"
	default:
		return e.Field() + " is invalid"
	}
}
