// Package errors provides structured error handling for groupgate services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Store errors
	CodeStoreInit  Code = "STORE_INIT"
	CodeStoreWrite Code = "STORE_WRITE"
	CodeStoreRead  Code = "STORE_READ"

	// Oracle errors
	CodeOracleUnavailable Code = "ORACLE_UNAVAILABLE"

	// Request errors
	CodeInvalidAccountID Code = "INVALID_ACCOUNT_ID"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeNotFound         Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidAccountID,
		CodeInvalidRequest:
		return http.StatusBadRequest

	case CodeNotFound:
		return http.StatusNotFound

	// ServiceUnavailable - a dependency could not answer
	case CodeStoreInit,
		CodeOracleUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
