package amqp

import (
	"strings"
	"testing"
	"time"
)

func TestSyncCompletedMessageErrorOmitted(t *testing.T) {
	ok := &SyncCompletedMessage{AccountID: "acc-1", Added: 3, Timestamp: time.Now()}
	data, err := ok.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("expected error field omitted on success, got %s", data)
	}

	failed := &SyncCompletedMessage{AccountID: "acc-1", Error: "rate limited", Timestamp: time.Now()}
	data, err = failed.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := SyncCompletedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Error != "rate limited" {
		t.Errorf("expected error carried through, got %q", parsed.Error)
	}
}

func TestSyncRequestedMessageFromJSONInvalid(t *testing.T) {
	if _, err := SyncRequestedMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
