package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an AppError independently of its HTTP status.
type ErrorKind string

const (
	KindNotFound               ErrorKind = "not_found"
	KindBadRequest             ErrorKind = "bad_request"
	KindUnauthorized           ErrorKind = "unauthorized"
	KindForbidden              ErrorKind = "forbidden"
	KindValidation             ErrorKind = "validation"
	KindRateLimited            ErrorKind = "rate_limited"
	KindCapacityExhausted      ErrorKind = "capacity_exhausted"
	KindAlreadyReturned        ErrorKind = "already_returned"
	KindGateway                ErrorKind = "gateway_error"
	KindSettlementNotConfirmed ErrorKind = "settlement_not_confirmed"
	KindNotificationFailure    ErrorKind = "notification_failure"
	KindInternal               ErrorKind = "internal"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int       `json:"code"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"error"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Kind: KindForbidden, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindBadRequest, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Kind: KindValidation, Message: msg}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Kind: KindRateLimited, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: msg, Err: err}
}

// Rental workflow errors.

// ErrCapacityExhausted reports that a vehicle has no units left to rent.
func ErrCapacityExhausted(vehicleID int64) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Kind:    KindCapacityExhausted,
		Message: fmt.Sprintf("vehicle with id %d is not available", vehicleID),
	}
}

func ErrAlreadyReturned(rentalID int64) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Kind:    KindAlreadyReturned,
		Message: fmt.Sprintf("rental with id %d has already been returned", rentalID),
	}
}

func ErrGateway(msg string, err error) *AppError {
	return &AppError{Code: http.StatusBadGateway, Kind: KindGateway, Message: msg, Err: err}
}

func ErrSettlementNotConfirmed(sessionID string) *AppError {
	return &AppError{
		Code:    http.StatusBadGateway,
		Kind:    KindSettlementNotConfirmed,
		Message: "payment was not successful for session " + sessionID,
	}
}

// ErrNotificationFailure wraps a notifier error raised after the business
// change was already committed.
func ErrNotificationFailure(msg string, err error) *AppError {
	return &AppError{Code: http.StatusBadGateway, Kind: KindNotificationFailure, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
