package ws

import (
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/session"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/protocol"
)

// dispatch validates one client frame and routes it to the registry.
// Every failure is answered with an error message; the connection stays up.
func (h *Handler) dispatch(c *Conn, raw []byte) {
	in, err := protocol.ParseClientMessage(raw, protocol.Limits{MaxInputBytes: h.cfg.MaxInputBytes})
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			c.sendError(perr.SessionID, perr.Code, perr.Reason)
		} else {
			c.sendError("", protocol.ErrInvalidMessage, err.Error())
		}
		h.metrics.RecordWSDrop("invalid")
		return
	}
	h.metrics.RecordWSMessage("in", in.Type)

	owner := c.Identity()
	switch p := in.Payload.(type) {
	case *protocol.CreatePayload:
		// The registry sends created itself so it precedes any output.
		_, err := h.registry.Create(owner, session.CreateRequest{
			Cols:      p.Cols,
			Rows:      p.Rows,
			Name:      p.Name,
			ClientRef: p.ClientRef,
		}, c)
		h.fail(c, "", err)

	case *protocol.InputPayload:
		h.fail(c, p.SessionID, h.registry.Input(owner, p.SessionID, p.Data))

	case *protocol.ResizePayload:
		h.fail(c, p.SessionID, h.registry.Resize(owner, p.SessionID, p.Cols, p.Rows))

	case *protocol.ClosePayload:
		// The registry acknowledges to c and to any other bound channel.
		h.fail(c, p.SessionID, h.registry.Close(owner, p.SessionID, p.KeepAlive, c))

	case *protocol.ReattachPayload:
		_, err := h.registry.Reattach(owner, p.SessionID, session.ReattachRequest{
			Encoding: p.Encoding,
		}, c)
		h.fail(c, p.SessionID, err)

	case *protocol.EmptyPayload:
		switch in.Type {
		case protocol.TypeListMine:
			c.reply(protocol.TypeSessionList, protocol.SessionListPayload{
				Sessions: h.registry.ListByOwner(owner),
			})
		case protocol.TypePing:
			c.reply(protocol.TypePong, protocol.EmptyPayload{})
		}
	}
}

// fail reports err to the client, if there is one.
func (h *Handler) fail(c *Conn, sessionID string, err error) {
	if err == nil {
		return
	}
	code := errorCode(err)
	if code == protocol.ErrInternal {
		c.logger.Error("Terminal operation failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	c.sendError(sessionID, code, err.Error())
}

// errorCode maps registry errors onto wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, session.ErrResourceExhausted):
		return protocol.ErrResourceExhausted
	case errors.Is(err, session.ErrSpawnFailure):
		return protocol.ErrSpawnFailure
	default:
		return protocol.ErrInternal
	}
}
