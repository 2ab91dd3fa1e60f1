package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"outbreakwatch/internal/types"
)

// maxAreaKeyLength bounds area keys accepted from clients. Real keys are PIN
// codes or city names.
const maxAreaKeyLength = 100

// Validator wraps go-playground/validator with the request rules of the API:
//
//	area_key     non-blank, at most 100 characters, no control characters
//	area_filter  any key without control characters; filters match stored
//	             keys verbatim, so blank or long keys stay queryable
//	count        a non-negative integer
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// NewValidator creates a Validator with the custom tags registered. Field
// names in errors are taken from json tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("area_key", validateAreaKey); err != nil {
		logger.Error("failed to register area_key validation", "error", err)
	}
	if err := v.RegisterValidation("area_filter", validateAreaFilter); err != nil {
		logger.Error("failed to register area_filter validation", "error", err)
	}
	if err := v.RegisterValidation("count", validateCount); err != nil {
		logger.Error("failed to register count validation", "error", err)
	}

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns nil, or an AppError whose code reflects the first
// failure: a missing field, a negative count, or any other invalid value.
// Every failure is listed under details["fields"].
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("struct validation misuse", "error", err)
		return types.NewAppError(types.ErrCodeValidationInvalidBody, "request could not be validated", err)
	}

	fields := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, ValidationError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: messageFor(fe),
		})
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(codeFor(first.Tag()), messageFor(first), err,
		map[string]any{"field": first.Field(), "fields": fields})
}

func codeFor(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "count":
		return types.ErrCodeValidationInvalidCount
	default:
		return types.ErrCodeValidationInvalidBody
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "count":
		return fmt.Sprintf("%s must be a non-negative integer", fe.Field())
	case "area_key":
		return fmt.Sprintf("%s must be a non-blank area key of at most %d characters", fe.Field(), maxAreaKeyLength)
	case "area_filter":
		return fmt.Sprintf("%s must not contain control characters", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validateAreaKey(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" || len(s) > maxAreaKeyLength {
		return false
	}
	return !hasControl(s)
}

func validateAreaFilter(fl validator.FieldLevel) bool {
	return !hasControl(fl.Field().String())
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

func validateCount(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
