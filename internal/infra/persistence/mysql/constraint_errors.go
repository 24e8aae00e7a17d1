package mysql

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Helper functions for MySQL error checking
func isUniqueConstraintViolation(err error) bool {
	// Check for GORM's duplicate key error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// MySQL reports duplicates as error 1062
	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "error 1062") ||
		strings.Contains(errMsg, "duplicate entry")
}
