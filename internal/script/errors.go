package script

import "errors"

// Script errors.
var (
	// ErrNoActions is returned when a script does not define an actions table.
	ErrNoActions = errors.New("script: no actions table defined")

	// ErrScriptClosed is returned when calling into a closed script.
	ErrScriptClosed = errors.New("script: closed")

	// ErrTimeout is returned when an action runs past the script timeout.
	ErrTimeout = errors.New("script: execution timeout")

	// ErrInvalidState is returned when a script publishes something other than a table.
	ErrInvalidState = errors.New("script: state must be a table")
)
