// Package events declares the topics and payloads carried by the event bus.
package events

import "time"

// Bus topics.
const (
	TopicThrow        = "throw"
	TopicPlayerChange = "player_change"
	TopicConnected    = "ble_connected"
	TopicError        = "ble_error"
)

// Error reasons published under TopicError.
const (
	ReasonDeviceNotFound   = "device_not_found"
	ReasonConnectionFailed = "connection_failed"
	ReasonConnectionLost   = "connection_lost"
)

// Connected is published once a board link is fully established.
type Connected struct {
	Address string `json:"device_address"`
	Name    string `json:"device_name"`
}

// BLEError is published for non-fatal link failures; the supervisor keeps
// retrying after each one.
type BLEError struct {
	Reason  string `json:"error"`
	Message string `json:"message"`
}

// PlayerChange is published when the board's player-change button is pressed.
type PlayerChange struct {
	Code byte      `json:"segment_code"`
	At   time.Time `json:"timestamp"`
}
