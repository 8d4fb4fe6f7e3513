package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrSessionPanic      = fmt.Errorf("session panic")
	ErrOnlyCensoredFiles = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords        = fmt.Errorf("no words have been found")

	// Room bootstrap
	ErrEmptyRooms         = fmt.Errorf("no room has been defined")
	ErrDuplicateRoom      = fmt.Errorf("room defined twice")
	ErrInvalidRoom        = fmt.Errorf("invalid room descriptor")
	ErrNoRoomSource       = fmt.Errorf("exactly one room source must be configured")
	ErrInvalidReplacement = fmt.Errorf("replacement must be a single character")

	// Room membership
	ErrUnknownRoom   = fmt.Errorf("unknown room")
	ErrNotMember     = fmt.Errorf("not a member of room")
	ErrAlreadyJoined = fmt.Errorf("room already joined")
	ErrNickLocked    = fmt.Errorf("nickname can only change outside rooms")

	// Transport
	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrFrameTooLarge  = fmt.Errorf("frame too large")
	ErrClosed         = fmt.Errorf("closed")
)
