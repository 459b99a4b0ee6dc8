package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of mutation a change message reports.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

func (o Op) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ChangeMessage announces that one owner's ledger changed. It carries ids
// only; consumers re-read whatever they need.
type ChangeMessage struct {
	OwnerID       int64     `json:"owner_id"`
	TransactionID int64     `json:"transaction_id"`
	Op            Op        `json:"op"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewChangeMessage(ownerID, transactionID int64, op Op) *ChangeMessage {
	return &ChangeMessage{
		OwnerID:       ownerID,
		TransactionID: transactionID,
		Op:            op,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == 0 {
		return nil, fmt.Errorf("change message without owner_id")
	}
	if !msg.Op.Valid() {
		return nil, fmt.Errorf("unknown change op %q", msg.Op)
	}
	return &msg, nil
}
