package services

import "fmt"

// ValidationError indicates a request failed field validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("Missing required field: %s", e.Field)
	}
	return e.Message
}

// NewMissingFieldError creates a validation error for a missing field
func NewMissingFieldError(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// NewValidationError creates a validation error with a custom message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// ConflictError indicates a uniqueness violation
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// NotFoundError indicates a missing entity. Entity is the Discord-style
// name used in "Unknown <Entity>" response bodies.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Unknown %s", e.Entity)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

// WebhookError indicates an outbound signed-interaction delivery failed
// before a response was obtained.
type WebhookError struct {
	Detail error
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("Webhook request failed: %v", e.Detail)
}

func (e *WebhookError) Unwrap() error {
	return e.Detail
}

// NewWebhookError creates a webhook delivery error
func NewWebhookError(detail error) *WebhookError {
	return &WebhookError{Detail: detail}
}
