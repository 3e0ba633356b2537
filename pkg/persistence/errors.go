// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFunnelNotFound indicates a funnel was not found by the given identifier.
	ErrFunnelNotFound = errors.New("funnel not found")

	// ErrExecutionNotFound indicates a funnel execution was not found.
	ErrExecutionNotFound = errors.New("funnel execution not found")

	// ErrLeadNotFound indicates a lead was not found by the given identifier.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrTemplateNotFound indicates a message template was not found.
	ErrTemplateNotFound = errors.New("message template not found")
)

// FunnelError wraps funnel-related errors with additional context.
type FunnelError struct {
	Op       string // Operation being performed (e.g., "Save", "Delete")
	FunnelID string
	Err      error
}

func (e *FunnelError) Error() string {
	return fmt.Sprintf("%s operation failed for funnel %s: %v", e.Op, e.FunnelID, e.Err)
}

func (e *FunnelError) Unwrap() error {
	return e.Err
}

func (e *FunnelError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFunnelError creates a new funnel error with context.
func NewFunnelError(op, funnelID string, err error) *FunnelError {
	return &FunnelError{Op: op, FunnelID: funnelID, Err: err}
}

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// IsFunnelNotFound checks if an error indicates a funnel was not found.
func IsFunnelNotFound(err error) bool {
	return errors.Is(err, ErrFunnelNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsLeadNotFound checks if an error indicates a lead was not found.
func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}
