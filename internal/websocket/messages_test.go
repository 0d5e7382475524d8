package websocket

import (
	"encoding/json"
	"testing"

	"github.com/satriahrh/rapat/domain/entities"
)

func TestParseJoinMessage(t *testing.T) {
	raw := `{"type":"join","room_id":"room-1","user_name":"Dana"}`

	var base BaseMessage
	if err := json.Unmarshal([]byte(raw), &base); err != nil {
		t.Fatalf("failed to parse base message: %v", err)
	}
	if base.Type != MessageTypeJoin {
		t.Errorf("expected join type, got %q", base.Type)
	}

	var msg JoinMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to parse join message: %v", err)
	}
	if msg.RoomID != "room-1" || msg.UserName != "Dana" {
		t.Errorf("unexpected join fields: %+v", msg)
	}
}

func TestParseChatMessageWithAttachment(t *testing.T) {
	raw := `{"type":"chat","text":"review this","attachment":{"name":"shot.png","mime_type":"image/png","data":"aW1n"}}`

	var msg ChatMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to parse chat message: %v", err)
	}
	if msg.Attachment == nil || msg.Attachment.MimeType != "image/png" {
		t.Errorf("unexpected attachment: %+v", msg.Attachment)
	}
}

func TestConnectionStateMessageRoundTrip(t *testing.T) {
	payload := marshalMessage(&ConnectionStateMessage{
		BaseMessage: newBase(MessageTypeConnectionState),
		State:       entities.ConnectionConnected,
	})

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != "connection_state" || decoded["state"] != "connected" {
		t.Errorf("unexpected payload %s", payload)
	}
	if decoded["timestamp"] == "" {
		t.Error("timestamp must be set")
	}
}

func TestCreateErrorMessage(t *testing.T) {
	msg := CreateErrorMessage("room not found")
	if msg.Type != MessageTypeError {
		t.Errorf("expected error type, got %q", msg.Type)
	}
	if msg.Message != "room not found" {
		t.Errorf("unexpected message %q", msg.Message)
	}
}
