package mqtt

import "errors"

// Sentinel errors. Callers match with errors.Is; operational failures
// (timeouts, broker rejections) wrap one of these.
var (
	ErrConnectFailed = errors.New("mqtt: connect failed")
	ErrNotConnected  = errors.New("mqtt: not connected")
	ErrInvalidTopic  = errors.New("mqtt: empty topic")
	ErrInvalidQoS    = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrPublish       = errors.New("mqtt: publish failed")
	ErrSubscribe     = errors.New("mqtt: subscribe failed")
	ErrUnsubscribe   = errors.New("mqtt: unsubscribe failed")
)
