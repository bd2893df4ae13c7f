package amqp

import (
	"encoding/json"
	"time"
)

// SyncRequestedMessage asks the daemon to sync one account immediately
// instead of waiting for the next scheduler tick.
type SyncRequestedMessage struct {
	AccountID string    `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRequestedMessage(accountID string) *SyncRequestedMessage {
	return &SyncRequestedMessage{
		AccountID: accountID,
		Timestamp: time.Now(),
	}
}

func (m *SyncRequestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncRequestedMessageFromJSON(data []byte) (*SyncRequestedMessage, error) {
	var msg SyncRequestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SyncCompletedMessage is published after every sync run, successful or
// not. Error is empty on success.
type SyncCompletedMessage struct {
	AccountID string    `json:"account_id"`
	Added     int       `json:"added"`
	Modified  int       `json:"modified"`
	Removed   int       `json:"removed"`
	Pages     int       `json:"pages"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *SyncCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncCompletedMessageFromJSON(data []byte) (*SyncCompletedMessage, error) {
	var msg SyncCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
