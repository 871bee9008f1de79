package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidItem     = errors.New("invalid catalog item")
	ErrMediaNotFound   = errors.New("media item not found")
	ErrNotRemote       = errors.New("media item is not available on the remote server")
	ErrTaskNotFound    = errors.New("download task not found")
	ErrTerminalState   = errors.New("task is already in a terminal state")
	ErrInvalidProgress = errors.New("progress must be between 0 and 1")
	ErrEmptyMessage    = errors.New("failure message is required")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrForbidden       = errors.New("access forbidden")
	ErrRemoteNotFound  = errors.New("remote item not found")
	ErrServerOffline   = errors.New("remote server unreachable")
	ErrNotConfigured   = errors.New("remote server is not configured")
)

// HTTPStatusError carries an unexpected status from the remote server
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("Server error: %s", e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// UnexpectedContentError is returned when a download answers with JSON instead of bytes
type UnexpectedContentError struct {
	Message string
}

func (e *UnexpectedContentError) Error() string {
	return "Server returned JSON instead of file: " + e.Message
}
