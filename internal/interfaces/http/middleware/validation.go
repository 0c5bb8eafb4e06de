package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator configures gin's validator: field names in errors follow
// the json (or form) tag and the card_expiry tag checks MM/YY expiries.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	return v.RegisterValidation("card_expiry", func(fl validator.FieldLevel) bool {
		return finance.IsValidExpiry(fl.Field().String())
	})
}

// FormatValidationErrors converts binding errors to response details.
// Errors that are not field validations (bad JSON) yield no details.
func FormatValidationErrors(err error) []dto.ValidationDetail {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	details := make([]dto.ValidationDetail, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: getValidationMessage(e),
		})
	}
	return details
}

// HandleValidationError aborts with a 400 validation response
func HandleValidationError(c *gin.Context, err error) {
	details := FormatValidationErrors(err)
	message := "Request validation failed"
	if details == nil {
		message = "Malformed request body"
	}
	c.AbortWithStatusJSON(
		dto.GetHTTPStatus(dto.ErrCodeValidation),
		dto.NewValidationErrorResponse(message, GetRequestID(c), details),
	)
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "card_expiry":
		return "Must be a valid MM/YY expiry"
	case "numeric":
		return "Must be numeric"
	default:
		return "Invalid value"
	}
}
