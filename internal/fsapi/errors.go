// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsapi

import (
	"errors"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents a filesystem API failure, either reported by the
// server or raised locally while talking to it.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Code returns the wire code for the error type.
func (e *ClientError) Code() string {
	return e.Type.Code()
}

// Is matches sentinels by type so errors.Is(err, ErrNotFound) works for any
// not-found error.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Message == "" && t.Type == e.Type
}

// ErrorType categorizes errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotFound
	ErrTypeNotADirectory
	ErrTypePermissionDenied
	ErrTypeIO
	ErrTypeInternal
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeInvalidResponse
	ErrTypeInvalidRequest
)

var errorCodes = map[ErrorType]string{
	ErrTypeNotFound:         "PATH_NOT_FOUND",
	ErrTypeNotADirectory:    "NOT_A_DIRECTORY",
	ErrTypePermissionDenied: "PERMISSION_DENIED",
	ErrTypeIO:               "IO_ERROR",
	ErrTypeInternal:         "INTERNAL_ERROR",
	ErrTypeInvalidRequest:   "INVALID_REQUEST",
}

// Code returns the server error code, or "" for client-side types.
func (t ErrorType) Code() string {
	return errorCodes[t]
}

// Status returns the HTTP status the server answers with.
func (t ErrorType) Status() int {
	switch t {
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeNotADirectory, ErrTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrTypePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorTypeForCode maps a wire code back to its type.
func errorTypeForCode(code string) ErrorType {
	for t, c := range errorCodes {
		if c == code {
			return t
		}
	}
	return ErrTypeUnknown
}

// Sentinel errors for errors.Is checks.
var (
	ErrNotFound         = &ClientError{Type: ErrTypeNotFound}
	ErrNotADirectory    = &ClientError{Type: ErrTypeNotADirectory}
	ErrPermissionDenied = &ClientError{Type: ErrTypePermissionDenied}
	ErrTimeout          = &ClientError{Type: ErrTypeTimeout}
)

func errorType(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errorType(err) == ErrTypeNotFound
}

// IsNotADirectory reports whether err means the path is a file.
func IsNotADirectory(err error) bool {
	return errorType(err) == ErrTypeNotADirectory
}

// IsPermissionDenied reports whether err means access was refused.
func IsPermissionDenied(err error) bool {
	return errorType(err) == ErrTypePermissionDenied
}

// IsConnection reports whether the server could not be reached.
func IsConnection(err error) bool {
	return errorType(err) == ErrTypeConnection
}
