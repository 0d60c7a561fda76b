package valve

import (
	"context"
	"fmt"
)

// ErrorCode is the result of a valve command, zero is success.
type ErrorCode uint8

const (
	Success         ErrorCode = 0
	InvalidZone     ErrorCode = 1
	InvalidDuration ErrorCode = 2
	InvalidProgram  ErrorCode = 3
	NoAcknowledge   ErrorCode = 4
	LinkFailure     ErrorCode = 5
)

const (
	MinimumZone    = 1
	MaximumZone    = 48
	MaximumMinutes = 240
)

func (e ErrorCode) Failed() bool {
	return e != Success
}

// Hint returns a human readable explanation of the code.
func (e ErrorCode) Hint() string {
	switch e {
	case Success:
		return "No error."
	case InvalidZone:
		return "Invalid zone number."
	case InvalidDuration:
		return "Invalid watering time."
	case InvalidProgram:
		return "Invalid program number."
	case NoAcknowledge:
		return "Controller did not acknowledge the command."
	case LinkFailure:
		return "Serial link to the controller failed."
	default:
		return "Unknown error."
	}
}

func (e ErrorCode) String() string {
	return fmt.Sprintf("%d (%s)", uint8(e), e.Hint())
}

// Driver commands the irrigation controller. Zones are one based.
type Driver interface {
	Start(ctx context.Context, zone uint8, minutes uint) ErrorCode
	Stop(ctx context.Context, zone uint8) ErrorCode
}

// Validate checks a command against the limits of the controller before it is sent.
func Validate(zone uint8, minutes uint) ErrorCode {
	if zone < MinimumZone || zone > MaximumZone {
		return InvalidZone
	}

	if minutes > MaximumMinutes {
		return InvalidDuration
	}

	return Success
}
