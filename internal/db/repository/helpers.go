// Package repository implements the domain repository interfaces on SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"authbridge/internal/domain"
)

// mapDBError translates driver-level errors into domain errors.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}
