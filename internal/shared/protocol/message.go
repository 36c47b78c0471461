package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// codec is shared by every frame on the wire. ConfigStd keeps encoding/json
// semantics, so []byte fields travel as base64.
var codec = sonic.ConfigStd

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Encode serializes a message into one text frame.
func Encode(msg *Message) ([]byte, error) {
	data, err := codec.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// DecodePayload unmarshals the message payload into v.
func (m *Message) DecodePayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("missing 'payload' field")
	}
	if err := codec.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("invalid payload for %s: %w", m.Type, err)
	}
	return nil
}

// Client → Server message types.
const (
	TypeCreate   = "create"
	TypeInput    = "input"
	TypeResize   = "resize"
	TypeClose    = "close"
	TypeListMine = "listMine"
	TypeReattach = "reattach"
	TypePing     = "ping"
)

// Server → Client message types.
const (
	TypeConnected   = "connected"
	TypeCreated     = "created"
	TypeOutput      = "output"
	TypeStats       = "stats"
	TypeSessionList = "sessionList"
	TypeReattached  = "reattached"
	TypeClosed      = "closed"
	TypeTerminated  = "terminated"
	TypeError       = "error"
	TypePong        = "pong"
)

// Error codes.
const (
	ErrNotFound          = "NOT_FOUND"
	ErrSpawnFailure      = "SPAWN_FAILURE"
	ErrResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrInvalidMessage    = "INVALID_MESSAGE"
	ErrRateLimited       = "RATE_LIMITED"
	ErrInternal          = "INTERNAL"
)

// EncodingGzip marks a gzip-compressed history blob in reattached.
const EncodingGzip = "gzip"

// Client → Server payloads.

type CreatePayload struct {
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
	Name      string `json:"name,omitempty"`
	ClientRef string `json:"clientRef,omitempty"`
}

type InputPayload struct {
	SessionID string `json:"sessionId"`
	Data      []byte `json:"data"`
}

type ResizePayload struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type ClosePayload struct {
	SessionID string `json:"sessionId"`
	KeepAlive bool   `json:"keepAlive"`
}

type ReattachPayload struct {
	SessionID string `json:"sessionId"`
	Encoding  string `json:"encoding,omitempty"`
}

type EmptyPayload struct{}

// Server → Client payloads.

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	Identity     string `json:"identity"`
}

type CreatedPayload struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	ClientRef string `json:"clientRef,omitempty"`
}

type OutputPayload struct {
	SessionID string `json:"sessionId"`
	Data      []byte `json:"data"`
}

type StatsPayload struct {
	SessionID  string `json:"sessionId"`
	Throughput int64  `json:"throughput"`
	Messages   int64  `json:"messages"`
	RuntimeMs  int64  `json:"runtimeMs"`
}

// SessionSummary describes one resumable session in a sessionList.
type SessionSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	StartedAt        time.Time `json:"startedAt"`
	WorkingDirectory string    `json:"workingDirectory"`
	Running          bool      `json:"running"`
	State            string    `json:"state"`
	Cols             int       `json:"cols"`
	Rows             int       `json:"rows"`
}

type SessionListPayload struct {
	Sessions []SessionSummary `json:"sessions"`
}

type ReattachedPayload struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	History   []byte `json:"history"`
	Encoding  string `json:"encoding,omitempty"`
}

type ClosedPayload struct {
	SessionID string `json:"sessionId"`
	KeepAlive bool   `json:"keepAlive"`
}

type TerminatedPayload struct {
	SessionID string `json:"sessionId"`
	ExitCode  int    `json:"exitCode"`
}

type ErrorPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// NewErrorMessage creates an error message ready to send to the client.
func NewErrorMessage(sessionID, code, reason string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		SessionID: sessionID,
		Code:      code,
		Reason:    reason,
	})
}
