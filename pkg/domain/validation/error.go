package validation

import "strings"

type FieldError struct {
	Field   string
	Message string
}

// Error aggregates every violated field of a submission.
type Error struct {
	Fields []FieldError
}

func NewError(field, message string) *Error {
	e := &Error{}
	e.Add(field, message)
	return e
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

func (e *Error) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *Error) Empty() bool {
	return len(e.Fields) == 0
}

func (e *Error) ByField() map[string][]string {
	byField := make(map[string][]string, len(e.Fields))
	for _, f := range e.Fields {
		byField[f.Field] = append(byField[f.Field], f.Message)
	}
	return byField
}
