package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Record sync operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// RecordSyncMessage asks the worker to bring one record's mirror copy up to
// date. It carries only identity and version; the worker reads the record
// itself from the database.
type RecordSyncMessage struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordSyncMessage(kind, id, op string, version int64) *RecordSyncMessage {
	return &RecordSyncMessage{
		Kind:      kind,
		ID:        id,
		Op:        op,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON decodes and checks a message.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.Kind == "" {
		return nil, errors.New("sync message missing kind or id")
	}
	if msg.Op == "" {
		msg.Op = OpUpsert
	}
	return &msg, nil
}
