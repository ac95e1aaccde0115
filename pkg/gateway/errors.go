package gateway

import "errors"

var (
	ErrNotAccepted       = errors.New("gateway: websocket not accepted")
	ErrAlreadyAccepted   = errors.New("gateway: websocket already accepted")
	ErrResponseStarted   = errors.New("gateway: http response already started")
	ErrResponseNotStart  = errors.New("gateway: http response not started")
	ErrClosed            = errors.New("gateway: connection closed")
	ErrInvalidMessage    = errors.New("gateway: invalid message type")
	ErrLifespanFailed    = errors.New("gateway: lifespan failed")
	ErrLifespanNotServed = errors.New("gateway: application does not handle lifespan")
)
