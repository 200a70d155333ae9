package notifications

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidMessageType  = errors.New("invalid message type")
	ErrInvalidPayload      = errors.New("invalid message payload")
	ErrPayloadTypeMismatch = errors.New("payload type does not match message type")
)

type MessageType string

const (
	MessageLockoutAlert MessageType = "lockout_alert"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageLockoutAlert:
		return true
	default:
		return false
	}
}

// Message is the envelope published to the alert queue.
type Message struct {
	Type       MessageType     `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

func EncodeMessage(t MessageType, payload any, at time.Time) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidMessageType
	}

	switch t {
	case MessageLockoutAlert:
		switch p := payload.(type) {
		case LockoutAlert:
			if err := validateLockoutAlert(p); err != nil {
				return nil, err
			}
		case *LockoutAlert:
			if p == nil {
				return nil, ErrInvalidPayload
			}
			if err := validateLockoutAlert(*p); err != nil {
				return nil, err
			}
		default:
			return nil, ErrPayloadTypeMismatch
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return json.Marshal(Message{Type: t, OccurredAt: at.UTC(), Payload: raw})
}

// DecodeMessage returns the envelope and its typed payload.
func DecodeMessage(body []byte) (Message, any, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !m.Type.IsValid() {
		return m, nil, ErrInvalidMessageType
	}
	if len(m.Payload) == 0 {
		return m, nil, ErrInvalidPayload
	}

	switch m.Type {
	case MessageLockoutAlert:
		var p LockoutAlert
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return m, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if err := validateLockoutAlert(p); err != nil {
			return m, nil, err
		}
		return m, p, nil
	default:
		return m, nil, ErrInvalidMessageType
	}
}

func validateLockoutAlert(p LockoutAlert) error {
	if p.UserID == "" || p.Email == "" {
		return fmt.Errorf("%w: userId and email are required", ErrInvalidPayload)
	}
	if p.LockedUntil.IsZero() {
		return fmt.Errorf("%w: lockedUntil is required", ErrInvalidPayload)
	}
	return nil
}
