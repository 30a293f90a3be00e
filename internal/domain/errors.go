package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrNoActiveSession is returned when an operation needs an active session and there is none.
	ErrNoActiveSession = errors.New("no active session")
	// ErrEmptyMessage is returned when a submitted message has no content.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrClosed is returned when a request arrives after shutdown began.
	ErrClosed = errors.New("service is closed")
)
