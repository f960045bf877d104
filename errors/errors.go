package errors

import "fmt"

// Business-rule rejections. These are expected outcomes and must be recovered
// into a typed result by callers, never treated as faults.
var (
	ErrInvalidRequest   = fmt.Errorf("invalid request")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrRoomEnded        = fmt.Errorf("room has ended")
	ErrRoomAlreadyEnded = fmt.Errorf("room already ended")
	ErrRoomFull         = fmt.Errorf("room full")
	ErrBadPassword      = fmt.Errorf("incorrect password")
	ErrNotInRoom        = fmt.Errorf("user not in room")
)

// Persistence-level failures. The stored record stays in its last committed
// state when one of these is returned.
var (
	ErrDuplicateRoomID    = fmt.Errorf("room id already exists")
	ErrVersionConflict    = fmt.Errorf("room was modified concurrently")
	ErrRoomCreationFailed = fmt.Errorf("failed to create room")
	ErrJoinFailed         = fmt.Errorf("failed to join room")
	ErrEndFailed          = fmt.Errorf("failed to end room")
)
