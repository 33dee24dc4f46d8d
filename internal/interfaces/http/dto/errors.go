package dto

import "net/http"

// Standardized error codes used in API responses
const (
	// Client errors (4xx)
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeBusinessRule        = "ERR_BUSINESS_RULE"

	// Server errors (5xx)
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeDatabase    = "ERR_DATABASE"
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:        http.StatusUnprocessableEntity,
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeDatabase:            http.StatusInternalServerError,
	ErrCodeUnavailable:         http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(errorCode string) int {
	if status, ok := ErrorCodeHTTPStatus[errorCode]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"BILL_NOT_FOUND":       ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"BILL_ALREADY_PAID":    ErrCodeInvalidState,
	"BILL_NOT_PAID":        ErrCodeInvalidState,
	"INVALID_STATE":        ErrCodeInvalidState,
	"NOT_DUE":              ErrCodeBusinessRule,
	"INVALID_AMOUNT":       ErrCodeInvalidInput,
	"INVALID_CHARGES":      ErrCodeInvalidInput,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_OWNER":        ErrCodeInvalidInput,
	"INVALID_PERIOD":       ErrCodeInvalidInput,
	"INVALID_PROPERTY":     ErrCodeInvalidInput,
	"INVALID_RENT":         ErrCodeInvalidInput,
	"INVALID_TENANT":       ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code to a standardized API
// error code. Unknown codes fall back to ERR_INTERNAL.
func NormalizeErrorCode(code string) string {
	if normalized, ok := DomainErrorCodeMapping[code]; ok {
		return normalized
	}
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	return ErrCodeInternal
}
