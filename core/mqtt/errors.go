package mqtt

import "errors"

// ErrResponseTimeout is returned when no response is received before the timeout.
var ErrResponseTimeout = errors.New("timeout waiting for offer response")
