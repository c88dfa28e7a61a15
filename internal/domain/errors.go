package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionTerminal   = errors.New("session already completed or cancelled")
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrAgentNotFound     = errors.New("agent not found in session")
	ErrDuplicateAgent    = errors.New("agent already in session")
	ErrInvalidStatus     = errors.New("unrecognized status")
)
