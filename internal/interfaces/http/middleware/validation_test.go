package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enquiryBody struct {
	Name     string `json:"name" binding:"required,max=10"`
	Email    string `json:"email" binding:"omitempty,email"`
	FormType string `json:"formType" binding:"required,oneof=contact newsletter"`
	Internal string `json:"-"`
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/api/submit-form", func(c *gin.Context) {
		var body enquiryBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/submit-form",
		strings.NewReader(`{"name":"a very long name","email":"nope","formType":"spam"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-7", resp.Error.RequestID)

	fields := map[string]string{}
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "Must be at most 10 characters", fields["name"])
	assert.Equal(t, "Invalid email format", fields["email"])
	assert.Equal(t, "Must be one of: contact newsletter", fields["formType"])
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(errors.New("unexpected EOF"), "req-1")
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}

type brokerBody struct {
	Phone string          `json:"phone" binding:"required,phone"`
	Price decimal.Decimal `json:"price" binding:"decimalgt0"`
}

func TestSetupValidator_CustomTags(t *testing.T) {
	SetupValidator()

	tests := []struct {
		name    string
		body    brokerBody
		invalid map[string]string
	}{
		{name: "valid", body: brokerBody{Phone: "+91 98765 43210", Price: decimal.RequireFromString("2500000")}},
		{name: "short phone", body: brokerBody{Phone: "98765", Price: decimal.NewFromInt(1)},
			invalid: map[string]string{"phone": "Invalid phone number"}},
		{name: "letters in phone", body: brokerBody{Phone: "98765abcde", Price: decimal.NewFromInt(1)},
			invalid: map[string]string{"phone": "Invalid phone number"}},
		{name: "zero price", body: brokerBody{Phone: "9876543210"},
			invalid: map[string]string{"price": "Must be a positive amount"}},
		{name: "negative price", body: brokerBody{Phone: "9876543210", Price: decimal.NewFromInt(-5)},
			invalid: map[string]string{"price": "Must be a positive amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.body)
			if len(tt.invalid) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			resp := FormatValidationErrors(err, "")
			got := map[string]string{}
			for _, d := range resp.Error.Details {
				got[d.Field] = d.Message
			}
			assert.Equal(t, tt.invalid, got)
		})
	}
}
