package dartboard

import "time"

// Throw is one decoded dart hit. Immutable once constructed; it is handed to
// storage and to event subscribers by pointer but never mutated after creation
// (ID is assigned by storage before the throw leaves the worker).
type Throw struct {
	ID            int64     `json:"id"`
	At            time.Time `json:"timestamp"`
	Code          byte      `json:"segment_code"`
	Name          string    `json:"segment_name"`
	Target        *int      `json:"target"`
	Multiplier    *int      `json:"multiplier"`
	Score         *int      `json:"score"`
	DeviceAddress string    `json:"device_address"`
	DeviceName    string    `json:"device_name"`
}

// IsPlayerChange reports whether the throw records a press of the
// player-change button rather than a dart hit.
func (t *Throw) IsPlayerChange() bool {
	return t.Code == PlayerChangeCode
}
