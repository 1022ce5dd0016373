package adapters

import (
	"errors"
	"regexp"
)

var ErrInvalidTableName = errors.New("table name must be a plain sql identifier")

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTableName accepts only names that are safe to splice into DDL without quoting.
func ValidateTableName(name string) error {
	if !plainIdentifier.MatchString(name) {
		return ErrInvalidTableName
	}

	return nil
}
