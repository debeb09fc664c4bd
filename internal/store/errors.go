package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
)

// translate maps gorm failures onto the API taxonomy. notFound is the
// message used when the row does not exist.
func translate(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apierr.NotFound(notFound)
	case isDuplicate(err):
		return apierr.Conflict("Resource already exists")
	case isForeignKey(err):
		return apierr.NotFound("Referenced resource not found")
	default:
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return err
		}
		return apierr.Internal("Database operation failed", err)
	}
}

// Drivers without an error translator still carry the constraint name in
// the message.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func isForeignKey(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") || strings.Contains(msg, "violates foreign key constraint")
}
