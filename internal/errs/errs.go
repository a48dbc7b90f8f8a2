package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrTicketNotFound — заявка с таким id не существует.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrUnauthorized — общий секрет не передан.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden — общий секрет передан, но не совпал.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError описывает некорректное поле запроса. Code уходит клиенту как есть.
type ValidationError struct {
	Field string
	Code  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Code
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Code)
}

// Validation создаёт ValidationError для поля field.
func Validation(field, code string) error {
	return &ValidationError{Field: field, Code: code}
}
