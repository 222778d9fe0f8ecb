package bybit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
)

// APIError is a non-zero retCode from Bybit
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit error codes
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeLeverageNotModified = 110043
)

// IsRetryableError reports whether a failed call may succeed if repeated
func IsRetryableError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true // transport failures
	}
	switch apiErr.Code {
	case ErrCodeRateLimitExceeded, ErrCodeInvalidTimestamp,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsAuthenticationError checks if the error is related to authentication
func IsAuthenticationError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == ErrCodeInvalidAPIKey || apiErr.Code == ErrCodeInvalidSignature
}

// classify turns a client error into an engine error the retry loop understands
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if IsRetryableError(err) {
		return engerrors.NewExternalServiceError("bybit", operation, err)
	}
	if IsAuthenticationError(err) {
		return engerrors.WrapError(err, engerrors.ErrorCategoryConfiguration, "bybit", operation)
	}
	return engerrors.WrapError(err, engerrors.ErrorCategoryValidation, "bybit", operation)
}

// throttled wraps a context error raised while waiting on the rate limiter
func throttled(operation string, err error) error {
	return engerrors.NewTimeoutError("bybit", operation, err)
}

// decode checks retCode and unmarshals the result payload into out
func decode(response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("invalid response type %T", response)
	}
	if serverResp.RetCode != 0 {
		return &APIError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}
	if out == nil {
		return nil
	}
	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}
