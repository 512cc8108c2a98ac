package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-tuber/pkg/avatar"
	"github.com/teslashibe/go-tuber/pkg/hub"
	"github.com/teslashibe/go-tuber/pkg/protocol"
)

// latchTimeout bounds how long a request waits for the frame loop.
const latchTimeout = 2 * time.Second

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Head    string              `json:"head"`
	Eyes    string              `json:"eyes"`
	Clients int                 `json:"clients"`
	Frame   *protocol.FrameData `json:"frame,omitempty"`
}

// handleStatus returns the latched selection and the last frame
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st, frame, seq := s.ctl.Snapshot()
	resp := StatusResponse{
		Head:    st.Head,
		Eyes:    st.Eyes,
		Clients: s.frames.ClientCount(),
	}
	if !frame.Time.IsZero() {
		fd := protocol.NewFrameData(frame, seq)
		resp.Frame = &fd
	}
	return c.JSON(resp)
}

// handleMoods lists the registered moods
func (s *Server) handleMoods(c *fiber.Ctx) error {
	return c.JSON(s.ctl.Moods())
}

// handleExpression latches a partial mood change
func (s *Server) handleExpression(c *fiber.Ctx) error {
	var req protocol.ExpressionData
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	change := req.Change()
	if change.IsZero() {
		return fiber.NewError(fiber.StatusBadRequest, "expression needs head or eyes")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), latchTimeout)
	defer cancel()
	st, err := s.ctl.Latch(ctx, change)
	switch {
	case errors.Is(err, avatar.ErrUnknownMood):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(protocol.StatusData{Head: st.Head, Eyes: st.Eyes})
}

// handleClientMessage handles what an overlay sends upstream. It runs on
// the client's read pump.
func (s *Server) handleClientMessage(c *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.reject(c, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeKey:
		kd, err := msg.GetKeyData()
		if err != nil || kd.Key == "" {
			s.reject(c, "invalid key message")
			return
		}
		s.ctl.Key(kd.Key, kd.Down)

	case protocol.TypeExpression:
		ed, err := msg.GetExpressionData()
		if err != nil {
			s.reject(c, "invalid expression message")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), latchTimeout)
		defer cancel()
		if _, err := s.ctl.Latch(ctx, ed.Change()); err != nil {
			s.reject(c, err.Error())
		}

	case protocol.TypePing:
		pd, err := msg.GetPingData()
		if err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(pd.ID, pd.Timestamp, time.Now().UnixMilli())
		if err == nil {
			s.frames.SendJSONTo(c, pong)
		}

	default:
		s.reject(c, "unsupported message type: "+string(msg.Type))
	}
}

func (s *Server) reject(c *hub.Client, reason string) {
	s.logger.Debug("rejected overlay message", "client", c.ID(), "reason", reason)
	msg, err := protocol.NewErrorMessage(reason)
	if err != nil {
		return
	}
	s.frames.SendJSONTo(c, msg)
}
