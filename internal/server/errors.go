package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accessdomain "github.com/smallbiznis/gymgate/internal/access/domain"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/authorization"
	credentialdomain "github.com/smallbiznis/gymgate/internal/credential/domain"
	facedomain "github.com/smallbiznis/gymgate/internal/face/domain"
	gatedomain "github.com/smallbiznis/gymgate/internal/gateprovider/domain"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	hardwaresyncdomain "github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	transferdomain "github.com/smallbiznis/gymgate/internal/transfer/domain"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConfigurationError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "configuration_error",
			Message: configurationMessage(err),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrUnknownActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, memberdomain.ErrEmailTaken),
		errors.Is(err, transferdomain.ErrTransferPending),
		errors.Is(err, transferdomain.ErrApprovalInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isUpstreamError(err):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog gives the request logger a coarse type and code.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		return payload.Type, "internal_error"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, err.Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, credentialdomain.ErrUnsupportedMethod):
		return true
	case isAccessValidationError(err),
		isFaceValidationError(err),
		isMemberValidationError(err),
		isMembershipValidationError(err),
		isTransferValidationError(err),
		isGymConfigValidationError(err),
		isHardwareValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isAccessValidationError(err error) bool {
	switch {
	case errors.Is(err, accessdomain.ErrInvalidFacility),
		errors.Is(err, accessdomain.ErrInvalidMemberID),
		errors.Is(err, accessdomain.ErrInvalidResult):
		return true
	default:
		return false
	}
}

func isFaceValidationError(err error) bool {
	switch {
	case errors.Is(err, facedomain.ErrInvalidMemberID),
		errors.Is(err, facedomain.ErrInvalidFacility),
		errors.Is(err, facedomain.ErrInvalidImage),
		errors.Is(err, facedomain.ErrNoFaceDetected):
		return true
	default:
		return false
	}
}

func isMemberValidationError(err error) bool {
	switch {
	case errors.Is(err, memberdomain.ErrInvalidID),
		errors.Is(err, memberdomain.ErrInvalidName),
		errors.Is(err, memberdomain.ErrInvalidEmail),
		errors.Is(err, memberdomain.ErrInvalidRole):
		return true
	default:
		return false
	}
}

func isMembershipValidationError(err error) bool {
	switch {
	case errors.Is(err, membershipdomain.ErrInvalidMemberID),
		errors.Is(err, membershipdomain.ErrInvalidFacility),
		errors.Is(err, membershipdomain.ErrInvalidPlan),
		errors.Is(err, membershipdomain.ErrInvalidStatus),
		errors.Is(err, membershipdomain.ErrNotYearlyPlan),
		errors.Is(err, membershipdomain.ErrAlreadyFrozenThisYear),
		errors.Is(err, membershipdomain.ErrNotActive),
		errors.Is(err, membershipdomain.ErrNotFrozen),
		errors.Is(err, membershipdomain.ErrReasonTooLong):
		return true
	default:
		return false
	}
}

func isTransferValidationError(err error) bool {
	switch {
	case errors.Is(err, transferdomain.ErrInvalidID),
		errors.Is(err, transferdomain.ErrInvalidMemberID),
		errors.Is(err, transferdomain.ErrInvalidStatus),
		errors.Is(err, transferdomain.ErrRecipientRequired),
		errors.Is(err, transferdomain.ErrRecipientAmbiguous),
		errors.Is(err, transferdomain.ErrSelfTransfer),
		errors.Is(err, transferdomain.ErrFeeNotPaid),
		errors.Is(err, transferdomain.ErrApproverRequired),
		errors.Is(err, transferdomain.ErrInvalidState):
		return true
	default:
		return false
	}
}

func isGymConfigValidationError(err error) bool {
	switch {
	case errors.Is(err, gymconfigdomain.ErrInvalidFacility),
		errors.Is(err, gymconfigdomain.ErrInvalidName),
		errors.Is(err, gymconfigdomain.ErrInvalidSettings),
		errors.Is(err, gymconfigdomain.ErrInvalidHardware):
		return true
	default:
		return false
	}
}

func isHardwareValidationError(err error) bool {
	switch {
	case errors.Is(err, hardwaresyncdomain.ErrInvalidMemberID),
		errors.Is(err, hardwaresyncdomain.ErrInvalidFacility),
		errors.Is(err, hardwaresyncdomain.ErrInvalidAccessMethod),
		errors.Is(err, hardwaresyncdomain.ErrNoActiveMembership):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	return errors.Is(err, auditdomain.ErrInvalidTimeRange) ||
		errors.Is(err, auditdomain.ErrInvalidAction)
}

func isConfigurationError(err error) bool {
	switch {
	case errors.Is(err, gymconfigdomain.ErrNotFound),
		errors.Is(err, gymconfigdomain.ErrHardwareNotConfigured),
		errors.Is(err, gatedomain.ErrProviderNotFound),
		errors.Is(err, gatedomain.ErrInvalidConfig):
		return true
	default:
		return false
	}
}

func configurationMessage(err error) string {
	switch {
	case errors.Is(err, gymconfigdomain.ErrHardwareNotConfigured):
		return "Hardware not configured for facility"
	case errors.Is(err, gatedomain.ErrProviderNotFound):
		return "Gate provider not supported"
	case errors.Is(err, gatedomain.ErrInvalidConfig):
		return "Gate provider configuration invalid"
	default:
		return "Gym configuration not found"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, memberdomain.ErrNotFound),
		errors.Is(err, membershipdomain.ErrNotFound),
		errors.Is(err, membershipdomain.ErrMemberNotFound),
		errors.Is(err, facedomain.ErrNotFound),
		errors.Is(err, facedomain.ErrMemberNotFound),
		errors.Is(err, transferdomain.ErrNotFound),
		errors.Is(err, transferdomain.ErrRecipientNotFound),
		errors.Is(err, hardwaresyncdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isUpstreamError(err error) bool {
	switch {
	case errors.Is(err, facedomain.ErrMatcherUnavailable),
		errors.Is(err, hardwaresyncdomain.ErrSyncFailed),
		errors.Is(err, gatedomain.ErrActuationFailed):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "unsupported_method":
		return "Unsupported access method"
	case "no_face_detected":
		return "No face detected in image"
	default:
		return "invalid value"
	}
}
