package service

import (
	"errors"

	"estatehub/internal/database"
	"estatehub/internal/models"

	"gorm.io/gorm"
)

// notFoundOr turns a missing-row error into NotFound for resource and leaves
// already classified errors alone. Anything else becomes InternalError.
func notFoundOr(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// internal wraps unclassified persistence errors.
func internal(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}

func isUniqueConstraintError(err error) bool {
	return database.IsUniqueViolation(err)
}

func requireAdmin(actor models.Principal) error {
	if !actor.IsAdmin() {
		return models.NewForbiddenError("admin access required")
	}
	return nil
}
