package websocket

import (
	"encoding/json"
	"fmt"
)

// Message is the WebSocket envelope: an action name and its payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	GameID string    `json:"gameId"`
	User   *userInfo `json:"user,omitempty"`
}

// userInfo is the stable identity forwarded by the hosting client. When
// absent, the connection id stands in and the seat cannot be reclaimed
// after the socket is gone.
type userInfo struct {
	ID   string `json:"id"`
	Name string `json:"username"`
}

type movePayload struct {
	GameID string `json:"gameId"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

type restartPayload struct {
	GameID string `json:"gameId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func marshalMessage(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
