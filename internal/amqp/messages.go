package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"gagyebu/internal/ledger"
)

// LedgerChangedMessage announces that the canonical list changed. It carries
// no records; consumers re-read the list from the shared backend.
type LedgerChangedMessage struct {
	Op        string    `json:"op"`
	Count     int       `json:"count"`
	Total     int       `json:"total"`
	Month     string    `json:"month,omitempty"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage builds the message for an applied change.
func NewLedgerChangedMessage(c ledger.Change) *LedgerChangedMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerChangedMessage{
		Op:        string(c.Op),
		Count:     c.Count,
		Total:     c.Total,
		Month:     c.Month,
		Version:   c.Version,
		Timestamp: ts.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message body. A body without an op
// is rejected.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op == "" {
		return nil, errors.New("ledger change message without op")
	}
	return &msg, nil
}
