package queue

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// TypeCheckIn marks a committed attendance check-in.
const TypeCheckIn = "checkin"

// CheckIn is published after a check-in is stored.
type CheckIn struct {
	RecordID    string `json:"record_id"`
	SessionID   string `json:"session_id"`
	StudentID   string `json:"student_id"`
	ImageURL    string `json:"image_url,omitempty"`
	RequireFace bool   `json:"require_face"`
}

// NewCheckIn wraps evt in a Message.
func NewCheckIn(evt CheckIn) (Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return Message{}, errors.Wrap(err, "encoding checkin event")
	}
	return Message{Type: TypeCheckIn, Body: body}, nil
}

// DecodeCheckIn extracts a CheckIn from msg.
func DecodeCheckIn(msg Message) (CheckIn, error) {
	if msg.Type != TypeCheckIn {
		return CheckIn{}, errors.Errorf("unexpected message type %q", msg.Type)
	}
	var evt CheckIn
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return CheckIn{}, errors.Wrap(err, "decoding checkin event")
	}
	return evt, nil
}
