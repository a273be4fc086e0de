package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

// domainError keeps typed errors raised below the service and wraps anything
// else as an internal failure.
func domainError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
