package conveyor

import "errors"

var (
	// Construction errors.
	ErrInvalidArgument = errors.New("conveyor: invalid argument")

	// History errors.
	ErrHistoryCorrupt = errors.New("conveyor: no scheduled event matches completion")

	// Registration errors.
	ErrTypeAlreadyExists = errors.New("conveyor: type already registered")

	// Worker errors.
	ErrNoClient       = errors.New("conveyor: no client configured")
	ErrAlreadyStarted = errors.New("conveyor: supervisor already started")
)
