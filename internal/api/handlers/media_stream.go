package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"

	"github.com/voxrelay/voxrelay-backend/internal/relay"
	"github.com/voxrelay/voxrelay-backend/internal/services"
	"github.com/voxrelay/voxrelay-backend/internal/telephony"
)

// MediaStreamHandler bridges one telephony media stream connection to the
// speech model via a relay coordinator, then hands the finished session to
// the completion pipeline.
type MediaStreamHandler struct {
	svc *services.Services
}

func NewMediaStreamHandler(svc *services.Services) *MediaStreamHandler {
	return &MediaStreamHandler{svc: svc}
}

// Handle runs as the websocket handler for /media-stream/:sessionID.
func (h *MediaStreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	sessionID := c.Params("sessionID")
	log := h.svc.Logger.WithField("session_id", sessionID)

	if _, err := h.svc.Store.Get(sessionID); err != nil {
		log.Warn("Media stream for unknown session, closing")
		return
	}

	log.Info("Media stream connected")

	phone := telephony.NewStreamConn(c)
	coordinator := relay.NewCoordinator(
		sessionID,
		h.svc.Store,
		phone,
		h.svc.Realtime,
		h.svc.Config.Call,
		h.svc.Logger,
	)
	coordinator.SetHangup(func(callSID string) {
		if err := h.svc.Telephony.HangUp(callSID); err != nil {
			log.WithError(err).Warn("Hangup after channel failure failed")
		}
	})

	if err := coordinator.Run(context.Background()); err != nil {
		log.WithError(err).Error("Relay terminated with error")
	}

	// Reaching CLOSED triggers completion exactly once; a repeat run for the
	// same id is a no-op because the session is evicted below.
	h.svc.Completion.Run(context.Background(), sessionID)
}
