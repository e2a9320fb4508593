// Package handler implements the HTTP endpoints of the Bhavan API.
package handler

import (
	"errors"
	"net/http"

	"github.com/bhavan/backend/internal/application/purchase"
	"github.com/bhavan/backend/internal/domain/lead"
	"github.com/bhavan/backend/internal/domain/listing"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/infrastructure/auth"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/interfaces/http/dto"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// ServiceUnavailable sends a 503 response
func (h *BaseHandler) ServiceUnavailable(c *gin.Context, message string) {
	h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", getRequestID(c), details))
}

// BindError answers a failed ShouldBind call: field details for validator
// errors, ERR_INVALID_JSON for anything else.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
}

// ParseUUIDParam reads a UUID path parameter, answering 400 when malformed
func (h *BaseHandler) ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// HandleError maps application errors to the response envelope.
// Unknown errors become a generic 500 and are logged with the request logger.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var (
		validationErr *lead.ValidationError
		initErr       *purchase.PaymentInitiationError
		gatewayErr    *servicerequest.GatewayError
		domainErr     *shared.DomainError
	)
	switch {
	case errors.As(err, &validationErr):
		details := make([]dto.ValidationDetail, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			details = append(details, dto.ValidationDetail{Field: f.Field, Message: f.Message})
		}
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Form validation failed", requestID, details))

	case errors.As(err, &initErr):
		c.JSON(http.StatusBadGateway, paymentInitiationResponse{
			Response:        dto.NewErrorResponseWithRequestID(dto.ErrCodePaymentFailed, initErr.Error(), requestID),
			RequestID:       initErr.RequestID,
			ReferenceNumber: initErr.ReferenceNumber,
		})

	case errors.Is(err, servicerequest.ErrGatewayNotConfigured):
		h.ServiceUnavailable(c, "Online payments are currently unavailable")

	case errors.As(err, &gatewayErr):
		msg := gatewayErr.Message
		if msg == "" {
			msg = gatewayErr.Error()
		}
		h.Error(c, http.StatusBadGateway, dto.ErrCodePaymentFailed, msg)

	case errors.Is(err, servicerequest.ErrGatewayInvalidCallback):
		h.BadRequest(c, "Invalid webhook signature")

	case errors.Is(err, listing.ErrStorageNotConfigured):
		h.ServiceUnavailable(c, "Image uploads are currently unavailable")

	case isTokenError(err):
		code, msg := middleware.AuthErrorCode(err)
		h.Error(c, http.StatusUnauthorized, code, msg)

	case errors.As(err, &domainErr):
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))

	default:
		logger.FromContext(c.Request.Context()).Error("Unhandled error",
			zap.Error(err),
			zap.String("route", c.FullPath()))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}

type paymentInitiationResponse struct {
	dto.Response
	RequestID       uuid.UUID `json:"requestId"`
	ReferenceNumber string    `json:"referenceNumber"`
}

var tokenErrors = []error{
	auth.ErrInvalidToken,
	auth.ErrExpiredToken,
	auth.ErrInvalidTokenType,
	auth.ErrInvalidClaims,
	auth.ErrTokenNotYetValid,
	auth.ErrMissingAdminID,
	auth.ErrMaxRefreshExceeded,
	auth.ErrTokenRevoked,
}

func isTokenError(err error) bool {
	for _, target := range tokenErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
