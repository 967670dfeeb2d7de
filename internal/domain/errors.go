package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeTemplateMissing  ErrorType = "template_missing"
	ErrorTypeSourceUnreadable ErrorType = "source_unreadable"
	ErrorTypePageRender       ErrorType = "page_render"
	ErrorTypeOutputWrite      ErrorType = "output_write"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeConfig           ErrorType = "config"
)

// NoPage marks errors that are not tied to a single page.
const NoPage = -1

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type      ErrorType
	Message   string
	PageIndex int
	Err       error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if e.PageIndex != NoPage {
		msg = fmt.Sprintf("page %d: %s", e.PageIndex, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by type, so sentinel-style checks such as
// errors.Is(err, &DomainError{Type: ErrorTypePageRender}) work.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:      errType,
		Message:   message,
		PageIndex: NoPage,
		Err:       err,
	}
}

// Common error constructors
func TemplateMissingError(message string, err error) *DomainError {
	return NewError(ErrorTypeTemplateMissing, message, err)
}

func SourceUnreadableError(message string, err error) *DomainError {
	return NewError(ErrorTypeSourceUnreadable, message, err)
}

// PageRenderError reports a page that could not be rasterized. pageIndex is zero-based.
func PageRenderError(pageIndex int, message string, err error) *DomainError {
	e := NewError(ErrorTypePageRender, message, err)
	e.PageIndex = pageIndex
	return e
}

func OutputWriteError(message string, err error) *DomainError {
	return NewError(ErrorTypeOutputWrite, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

// TypeOf returns the ErrorType of the first DomainError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// FailedPage returns the page index carried by a page render error.
func FailedPage(err error) (int, bool) {
	var de *DomainError
	if errors.As(err, &de) && de.Type == ErrorTypePageRender {
		return de.PageIndex, true
	}
	return NoPage, false
}
