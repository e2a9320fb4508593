package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Custom binding tags
const (
	TagPhone      = "phone"
	TagDecimalGT0 = "decimalgt0"
)

var setupOnce sync.Once

// SetupValidator registers field naming and the custom tags on gin's
// validator. Safe to call more than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation(TagPhone, func(fl validator.FieldLevel) bool {
			return shared.IsValidPhone(fl.Field().String())
		})
		_ = v.RegisterValidation(TagDecimalGT0, func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && d.IsPositive()
		})
	})
}

// fieldName reports json names (form names for query structs) in errors.
func fieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
	}
	return name
}

// decimalValue lets tags see a decimal as its canonical string.
func decimalValue(v reflect.Value) any {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

// FormatValidationErrors builds the 400 envelope with one detail per field
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{
				Field:   fe.Field(),
				Message: describe(fe),
			})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 validation envelope
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)
	if requestID == "" {
		requestID = c.GetHeader(RequestIDHeader)
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

var fixedMessages = map[string]string{
	"required":    "This field is required",
	"email":       "Invalid email format",
	"uuid":        "Invalid UUID format",
	"url":         "Invalid URL format",
	"numeric":     "Must be numeric",
	TagPhone:      "Invalid phone number",
	TagDecimalGT0: "Must be a positive amount",
}

var boundMessages = map[string]string{
	"oneof":            "Must be one of: %s",
	"gte":              "Must be greater than or equal to %s",
	"lte":              "Must be less than or equal to %s",
	"gt":               "Must be greater than %s",
	"lt":               "Must be less than %s",
	"required_without": "Required when %s is empty",
}

func describe(fe validator.FieldError) string {
	tag := fe.Tag()
	if msg, ok := fixedMessages[tag]; ok {
		return msg
	}
	if format, ok := boundMessages[tag]; ok {
		return fmt.Sprintf(format, fe.Param())
	}
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch tag {
	case "min":
		return "Must be at least " + fe.Param() + unit
	case "max":
		if fe.Kind() == reflect.Slice {
			return "Must have at most " + fe.Param() + " items"
		}
		return "Must be at most " + fe.Param() + unit
	case "len":
		return "Must be exactly " + fe.Param() + unit
	}
	return "Invalid value"
}
