package remote

import "errors"

var (
	ErrInvalidEndpoint  = errors.New("invalid remote endpoint")
	ErrLoopbackDetected = errors.New("loopback detected")
	ErrRemoteTransport  = errors.New("remote transport failure")
	ErrRemoteStatus     = errors.New("remote status failure")
)
