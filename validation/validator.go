package validation

import (
	"fmt"
	"strings"

	"github.com/kbukum/mongofixtures/errors"
)

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector gathers field errors for checks that struct tags cannot
// express, such as rules spanning several fields.
type Collector struct {
	errors []FieldError
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a field error.
func (c *Collector) Add(field, message string) {
	c.errors = append(c.errors, FieldError{Field: field, Message: message})
}

// Check records message for field when ok is false.
func (c *Collector) Check(ok bool, field, message string) *Collector {
	if !ok {
		c.Add(field, message)
	}
	return c
}

// Merge adds the field errors carried by err, a value returned by Validate
// or Err. Any other non-nil error is recorded under field.
func (c *Collector) Merge(field string, err error) *Collector {
	if err == nil {
		return c
	}
	if appErr, ok := errors.AsAppError(err); ok {
		if fields, ok := appErr.Details["fields"].([]FieldError); ok {
			for _, fe := range fields {
				c.Add(join(field, fe.Field), fe.Message)
			}
			return c
		}
	}
	c.Add(field, err.Error())
	return c
}

// Errors returns all recorded field errors.
func (c *Collector) Errors() []FieldError {
	return c.errors
}

// Err returns an INVALID_CONFIG error listing every field error, or nil.
func (c *Collector) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	messages := make([]string, len(c.errors))
	for i, e := range c.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return errors.InvalidConfig(strings.Join(messages, "; ")).WithDetail("fields", c.errors)
}

func join(prefix, field string) string {
	if prefix == "" {
		return field
	}
	if field == "" {
		return prefix
	}
	return prefix + "." + field
}
