// Package errors defines the marketplace error taxonomy. Every failing
// operation surfaces one of these codes verbatim; there is no local recovery.
package errors

import (
	"fmt"
	"net/http"
)

// Code identifies a marketplace error class.
type Code string

const (
	CodeAlreadyInitialized       Code = "ALREADY_INITIALIZED"
	CodeUnauthorized             Code = "UNAUTHORIZED"
	CodeInvalidAssetSpace        Code = "INVALID_ASSET_SPACE"
	CodeCannotInitializeMetadata Code = "CANNOT_INITIALIZE_METADATA"
	CodeOverflow                 Code = "OVERFLOW"
	CodeDivideByZero             Code = "DIVIDE_BY_ZERO"
	CodeSoulboundNotTransferable Code = "SOULBOUND_NOT_TRANSFERABLE"
	CodeOwnerMismatch            Code = "OWNER_MISMATCH"
	CodeOriginalVendorMismatch   Code = "ORIGINAL_VENDOR_MISMATCH"
	CodeAssetMismatch            Code = "ASSET_MISMATCH"
	CodeInsufficientFunds        Code = "INSUFFICIENT_FUNDS"
	CodeNotFound                 Code = "NOT_FOUND"
	CodeAlreadyExists            Code = "ALREADY_EXISTS"
	CodeInvalidArgument          Code = "INVALID_ARGUMENT"
	CodeRateLimitExceeded        Code = "RATE_LIMIT_EXCEEDED"
)

// ServiceError is a structured error carrying the taxonomy code and the HTTP
// status the API layer should respond with.
type ServiceError struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches two service errors by code so callers can use errors.Is with
// the exported sentinels below.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

func newError(code Code, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Sentinels for errors.Is checks.
var (
	ErrAlreadyInitialized       = newError(CodeAlreadyInitialized, http.StatusConflict, "the configuration is already initialized")
	ErrUnauthorized             = newError(CodeUnauthorized, http.StatusForbidden, "you are not authorized to perform this action")
	ErrInvalidAssetSpace        = newError(CodeInvalidAssetSpace, http.StatusInternalServerError, "invalid asset account space")
	ErrCannotInitializeMetadata = newError(CodeCannotInitializeMetadata, http.StatusInternalServerError, "cannot initialize asset metadata")
	ErrOverflow                 = newError(CodeOverflow, http.StatusUnprocessableEntity, "operation resulted in an overflow")
	ErrDivideByZero             = newError(CodeDivideByZero, http.StatusUnprocessableEntity, "attempted to divide by zero")
	ErrSoulboundNotTransferable = newError(CodeSoulboundNotTransferable, http.StatusUnprocessableEntity, "soulbound assets cannot be transferred")
	ErrOwnerMismatch            = newError(CodeOwnerMismatch, http.StatusForbidden, "current vendor does not match the caller")
	ErrOriginalVendorMismatch   = newError(CodeOriginalVendorMismatch, http.StatusUnprocessableEntity, "original vendor does not match the supplied identity")
	ErrAssetMismatch            = newError(CodeAssetMismatch, http.StatusUnprocessableEntity, "service asset does not match the ask asset")
	ErrInsufficientFunds        = newError(CodeInsufficientFunds, http.StatusUnprocessableEntity, "insufficient funds for transfer")
	ErrNotFound                 = newError(CodeNotFound, http.StatusNotFound, "record not found")
	ErrAlreadyExists            = newError(CodeAlreadyExists, http.StatusConflict, "record already exists")
)

// Unauthorized returns an unauthorized error with a caller-supplied message.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusForbidden, message)
}

// NotFound returns a not-found error naming the missing resource.
func NotFound(resource, id string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s %s not found", resource, id))
}

// InvalidArgument reports a rejected request parameter.
func InvalidArgument(message string) *ServiceError {
	return newError(CodeInvalidArgument, http.StatusBadRequest, message)
}

// RateLimitExceeded reports throttling to the API layer.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimitExceeded, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit of %d requests per %s exceeded", limit, window))
}
