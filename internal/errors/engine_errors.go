package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCategory represents the failure classes the engine distinguishes
type ErrorCategory string

const (
	// Recovered locally inside a cycle
	ErrorCategoryDataInsufficient ErrorCategory = "DATA_INSUFFICIENT"
	ErrorCategoryExternalService  ErrorCategory = "EXTERNAL_SERVICE"
	ErrorCategoryTimeout          ErrorCategory = "TIMEOUT"
	ErrorCategoryValidation       ErrorCategory = "VALIDATION"

	// Surfaced to the caller
	ErrorCategoryPersistence   ErrorCategory = "PERSISTENCE"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryFatal         ErrorCategory = "FATAL"
)

// EngineError is a categorized error with the component and operation that raised it
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *EngineError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the scheduler
func (e *EngineError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal || e.Category == ErrorCategoryConfiguration
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *EngineError) WithRetryable(retryable bool) *EngineError {
	e.Retryable = retryable
	return e
}

// NewEngineError creates a new categorized error
func NewEngineError(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with engine context
func WrapError(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  isRetryableCategory(category),
	}
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryExternalService, ErrorCategoryTimeout:
		return true
	default:
		return false
	}
}

// IsCategory reports whether any EngineError in err's chain has the given category
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EngineError
	for err != nil {
		if !stderrors.As(err, &ee) {
			return false
		}
		if ee.Category == category {
			return true
		}
		err = ee.Underlying
	}
	return false
}

// CategorizeError classifies an error coming back from an external collaborator
func CategorizeError(err error, component, operation string) *EngineError {
	if err == nil {
		return nil
	}

	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "context deadline exceeded") {
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	}
	if strings.Contains(msg, "insufficient data") || strings.Contains(msg, "not enough") {
		return WrapError(err, ErrorCategoryDataInsufficient, component, operation)
	}
	if strings.Contains(msg, "invalid") || strings.Contains(msg, "out of range") {
		return WrapError(err, ErrorCategoryValidation, component, operation)
	}
	return WrapError(err, ErrorCategoryExternalService, component, operation)
}

func NewDataInsufficientError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryDataInsufficient, component, operation, message)
}

func NewExternalServiceError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryExternalService, component, operation)
}

func NewTimeoutError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryTimeout, component, operation)
}

func NewValidationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryValidation, component, operation, message)
}

func NewPersistenceError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryPersistence, component, operation)
}

func NewConfigurationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryConfiguration, component, operation, message)
}

// RecoveryAction is what the scheduler does with a failed unit of work
type RecoveryAction string

const (
	RecoveryActionRetry    RecoveryAction = "RETRY"
	RecoveryActionSkip     RecoveryAction = "SKIP"
	RecoveryActionFallback RecoveryAction = "FALLBACK"
	RecoveryActionSurface  RecoveryAction = "SURFACE"
	RecoveryActionStop     RecoveryAction = "STOP"
)

// GetRecoveryAction suggests a recovery action based on error category
func (e *EngineError) GetRecoveryAction() RecoveryAction {
	switch e.Category {
	case ErrorCategoryFatal, ErrorCategoryConfiguration:
		return RecoveryActionStop
	case ErrorCategoryPersistence:
		return RecoveryActionSurface
	case ErrorCategoryExternalService, ErrorCategoryTimeout:
		if e.Retryable {
			return RecoveryActionRetry
		}
		return RecoveryActionSkip
	case ErrorCategoryValidation:
		return RecoveryActionFallback
	default:
		return RecoveryActionSkip
	}
}

// ErrorStats tracks error statistics across cycles
type ErrorStats struct {
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*EngineError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*EngineError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err *EngineError) {
	if err == nil {
		return
	}
	es.TotalErrors++
	es.ErrorsByCategory[err.Category]++

	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the share of errors in a category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByCategory[category]) / float64(es.TotalErrors)
}

// HasRecentErrors checks whether at least count recent errors belong to category
func (es *ErrorStats) HasRecentErrors(category ErrorCategory, count int) bool {
	recentCount := 0
	for _, err := range es.RecentErrors {
		if err.Category == category {
			recentCount++
		}
	}
	return recentCount >= count
}
