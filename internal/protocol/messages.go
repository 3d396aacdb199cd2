// Package protocol defines the wire messages shared by the HTTP and
// WebSocket boundaries. Every payload rides in a Message envelope; the
// Data field carries the type-specific JSON.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/lox/twentyone/internal/game"
)

// MessageType identifies the payload carried by a Message
type MessageType string

const (
	// Client -> Server
	MessageTypeAction MessageType = "action"

	// Server -> Client
	MessageTypeState        MessageType = "state"
	MessageTypeRoundResult  MessageType = "round_result"
	MessageTypeAutoProgress MessageType = "auto_progress"
	MessageTypeError        MessageType = "error"
)

// Message is the base envelope for both directions
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client -> Server Messages

// ActionData is a player request over the socket. Action names mirror
// the REST endpoints; the optional fields apply only to the actions
// that need them.
type ActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"` // bet, auto_start
	Take   bool   `json:"take"`             // insurance
	Hands  int    `json:"hands,omitempty"`  // auto_start
	Policy string `json:"policy,omitempty"` // auto_start
}

// Server -> Client Messages

// StateData wraps the full table snapshot sent after every action
type StateData struct {
	GameID   string        `json:"gameId"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// RoundResultData carries one settled round
type RoundResultData struct {
	GameID string           `json:"gameId"`
	Round  game.RoundRecord `json:"round"`
}

// AutoProgressData reports auto-mode advancement after each stepped
// round, including the final completion or abort notice.
type AutoProgressData struct {
	GameID         string `json:"gameId"`
	Active         bool   `json:"active"`
	HandsRemaining int    `json:"handsRemaining"`
	Bankroll       int    `json:"bankroll"`
	Message        string `json:"message,omitempty"`
}

// ErrorData reports a rejected or failed action
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
