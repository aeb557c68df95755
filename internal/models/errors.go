package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ErrorKind is the stable, client-visible classification of a failure.
type ErrorKind string

const (
	// KindNotFound means an entity id could not be resolved.
	KindNotFound ErrorKind = "NotFound"
	// KindForbidden means the principal lacks rights on the target.
	KindForbidden ErrorKind = "Forbidden"
	// KindForbiddenSelfVote means the principal voted on their own content.
	KindForbiddenSelfVote ErrorKind = "ForbiddenSelfVote"
	// KindInvalidOperation means the request is well formed but not allowed in the current state.
	KindInvalidOperation ErrorKind = "InvalidOperation"
	// KindValidation means a field violated a length or enum rule.
	KindValidation ErrorKind = "ValidationError"
	// KindConflict means a uniqueness violation could not be reconciled.
	KindConflict ErrorKind = "Conflict"
	// KindUnauthorized means no valid credential was presented.
	KindUnauthorized ErrorKind = "Unauthorized"
	// KindInternal wraps unexpected persistence or runtime failures.
	KindInternal ErrorKind = "InternalError"
)

// ErrorResponse is the failure envelope returned by every endpoint.
type ErrorResponse struct {
	OK      bool      `json:"ok"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// SuccessResponse is the success envelope returned by every endpoint.
type SuccessResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

// AppError represents a classified application error
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func NewSelfVoteError(message string) *AppError {
	return &AppError{Kind: KindForbiddenSelfVote, Message: message}
}

func NewInvalidOperationError(message string) *AppError {
	return &AppError{Kind: KindInvalidOperation, Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewConflictError(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// Classify returns err as an *AppError. Record-not-found errors from GORM
// become NotFound and anything unrecognised becomes InternalError.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &AppError{Kind: KindNotFound, Message: "Resource not found", Err: err}
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return &AppError{Kind: kindForStatus(fe.Code), Message: fe.Message}
	}
	return NewInternalError(err)
}

// KindOf is a shorthand for Classify(err).Kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden, KindForbiddenSelfVote:
		return http.StatusForbidden
	case KindInvalidOperation, KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusMethodNotAllowed, http.StatusUpgradeRequired, http.StatusTooManyRequests:
		return KindInvalidOperation
	default:
		return KindInternal
	}
}

// RespondWithError writes the failure envelope. Internal errors never leak
// their wrapped cause to the client.
func RespondWithError(c *fiber.Ctx, err error) error {
	appErr := Classify(err)
	return c.Status(StatusFor(appErr.Kind)).JSON(ErrorResponse{
		OK:      false,
		Kind:    appErr.Kind,
		Message: appErr.Message,
	})
}

// RespondWithData writes the success envelope with the given status.
func RespondWithData(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(SuccessResponse{OK: true, Data: data})
}
