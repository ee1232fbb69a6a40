package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lshigami/timedtest/internal/attempt"
	"github.com/lshigami/timedtest/internal/dto"
	"github.com/lshigami/timedtest/internal/repository"
	"github.com/lshigami/timedtest/internal/service"
	"github.com/rs/zerolog/log"
)

// Machine-readable error codes returned in dto.ErrorResponse.Code.
const (
	CodeInvalidInput       = "invalid_input"
	CodeNotFound           = "not_found"
	CodePersistenceFailure = "persistence_failure"
	CodeNotInProgress      = "not_in_progress"
	CodeFinalizePending    = "finalize_pending"
	CodeSessionClosed      = "session_closed"
	CodeInternal           = "internal_error"
)

// StatusFor maps a service error to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	var denial *attempt.DenialError
	switch {
	case errors.As(err, &denial):
		if denial.Reason == attempt.ReasonAttemptAlreadyInProgress {
			return http.StatusConflict, string(denial.Reason)
		}
		return http.StatusForbidden, string(denial.Reason)
	case errors.Is(err, attempt.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, CodePersistenceFailure
	case errors.Is(err, attempt.ErrScheduledTestNotFound),
		errors.Is(err, attempt.ErrAttemptNotFound),
		errors.Is(err, attempt.ErrSessionNotFound),
		errors.Is(err, repository.ErrTestNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, attempt.ErrUnknownQuestion):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, attempt.ErrNotInProgress):
		return http.StatusConflict, CodeNotInProgress
	case errors.Is(err, attempt.ErrFinalizePending):
		return http.StatusConflict, CodeFinalizePending
	case errors.Is(err, attempt.ErrSessionClosed):
		return http.StatusConflict, CodeSessionClosed
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// RespondError writes err as a dto.ErrorResponse with the mapped status.
func RespondError(ctx *gin.Context, message string, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg(message)
	} else {
		log.Warn().Err(err).Str("path", ctx.FullPath()).Msg(message)
	}
	ctx.JSON(status, dto.ErrorResponse{Message: message, Code: code, Details: []string{err.Error()}})
}

// BadRequest rejects malformed input before it reaches a service.
func BadRequest(ctx *gin.Context, message string, details ...string) {
	ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: message, Code: CodeInvalidInput, Details: details})
}

// UintParam parses a numeric path parameter, writing a 400 on failure.
func UintParam(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		BadRequest(ctx, "Invalid "+name+" format")
		return 0, false
	}
	return uint(v), true
}

// UUIDParam parses a UUID path parameter, writing a 400 on failure.
func UUIDParam(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		BadRequest(ctx, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
