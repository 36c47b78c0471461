package protocol

import (
	"fmt"

	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/id"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/utils"
)

// Terminal geometry bounds accepted from clients.
const (
	MaxCols = 500
	MaxRows = 200
)

// Limits bounds what a client message may carry.
type Limits struct {
	MaxInputBytes int
}

// Error is a rejected client message. SessionID is set when the payload
// named one, so the reply can be routed to that terminal.
type Error struct {
	Code      string
	SessionID string
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func invalid(sessionID, format string, args ...interface{}) *Error {
	return &Error{Code: ErrInvalidMessage, SessionID: sessionID, Reason: fmt.Sprintf(format, args...)}
}

// Inbound is a validated client message with its decoded payload.
// Payload holds a pointer to one of the client payload types.
type Inbound struct {
	Type    string
	Payload interface{}
}

// ParseClientMessage validates a raw JSON frame from a client.
func ParseClientMessage(raw []byte, lim Limits) (*Inbound, error) {
	var msg Message
	if err := codec.Unmarshal(raw, &msg); err != nil {
		return nil, invalid("", "invalid JSON: %v", err)
	}

	if msg.Type == "" {
		return nil, invalid("", "missing 'type' field")
	}

	switch msg.Type {
	case TypeCreate:
		var p CreatePayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, invalid("", "%v", err)
		}
		if err := checkGeometry("", p.Cols, p.Rows); err != nil {
			return nil, err
		}
		if err := utils.ValidateName(p.Name, "name"); err != nil {
			return nil, invalid("", "%v", err)
		}
		if err := utils.ValidateString(p.ClientRef, "clientRef", 0, utils.MaxClientRefLength, false); err != nil {
			return nil, invalid("", "%v", err)
		}
		return &Inbound{Type: msg.Type, Payload: &p}, nil

	case TypeInput:
		var p InputPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, invalid("", "%v", err)
		}
		if err := checkSessionID(p.SessionID); err != nil {
			return nil, err
		}
		if lim.MaxInputBytes > 0 && len(p.Data) > lim.MaxInputBytes {
			return nil, invalid(p.SessionID, "input of %d bytes exceeds limit of %d", len(p.Data), lim.MaxInputBytes)
		}
		return &Inbound{Type: msg.Type, Payload: &p}, nil

	case TypeResize:
		var p ResizePayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, invalid("", "%v", err)
		}
		if err := checkSessionID(p.SessionID); err != nil {
			return nil, err
		}
		if err := checkGeometry(p.SessionID, p.Cols, p.Rows); err != nil {
			return nil, err
		}
		return &Inbound{Type: msg.Type, Payload: &p}, nil

	case TypeClose:
		var p ClosePayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, invalid("", "%v", err)
		}
		if err := checkSessionID(p.SessionID); err != nil {
			return nil, err
		}
		return &Inbound{Type: msg.Type, Payload: &p}, nil

	case TypeReattach:
		var p ReattachPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, invalid("", "%v", err)
		}
		if err := checkSessionID(p.SessionID); err != nil {
			return nil, err
		}
		if p.Encoding != "" && p.Encoding != EncodingGzip {
			return nil, invalid(p.SessionID, "unsupported history encoding %q", p.Encoding)
		}
		return &Inbound{Type: msg.Type, Payload: &p}, nil

	case TypeListMine, TypePing:
		// Payload is optional and ignored.
		return &Inbound{Type: msg.Type, Payload: &EmptyPayload{}}, nil
	}

	return nil, invalid("", "unknown message type: %s", msg.Type)
}

func checkSessionID(sessionID string) *Error {
	if err := utils.ValidateID(sessionID, "sessionId", true); err != nil {
		return invalid("", "%v", err)
	}
	if _, err := id.ParseSessionID(sessionID); err != nil {
		return invalid("", "malformed sessionId: %v", err)
	}
	return nil
}

func checkGeometry(sessionID string, cols, rows int) *Error {
	if cols < 1 || cols > MaxCols || rows < 1 || rows > MaxRows {
		return invalid(sessionID, "terminal size %dx%d outside 1..%d x 1..%d", cols, rows, MaxCols, MaxRows)
	}
	return nil
}
