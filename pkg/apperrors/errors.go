package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConfiguration means data the advisor needs was not supplied (e.g. a referenced table).
	ErrConfiguration = errors.New("configuration error")

	// ErrParse means the SQL text could not be parsed.
	ErrParse = errors.New("parse error")

	// ErrIntrospection means an external lookup failed or returned unusable data.
	ErrIntrospection = errors.New("introspection error")
)

// MissingTablesError reports tables referenced by a query whose data was not supplied.
type MissingTablesError struct {
	Tables []string
}

func (e *MissingTablesError) Error() string {
	return fmt.Sprintf("%s: table information missing for: %s", ErrConfiguration, strings.Join(e.Tables, ", "))
}

// Unwrap lets errors.Is(err, ErrConfiguration) match.
func (e *MissingTablesError) Unwrap() error {
	return ErrConfiguration
}
