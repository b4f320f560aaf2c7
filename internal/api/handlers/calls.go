package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/voxrelay/voxrelay-backend/internal/models"
	"github.com/voxrelay/voxrelay-backend/internal/services"
	"github.com/voxrelay/voxrelay-backend/internal/session"
)

// CallRequest is the trigger payload for an outbound call.
type CallRequest struct {
	PhoneNumber   string `json:"phone_number"`
	Email         string `json:"email"`
	SystemMessage string `json:"system_message"`
	Voice         string `json:"voice"`
}

// CreateCall handles POST /api/v1/calls: it validates the request, registers
// the session, and places the outbound call in the background.
func CreateCall(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CallRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if req.Voice == "" {
			req.Voice = "alloy"
		}
		if err := validateCallRequest(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		sessionID := uuid.New().String()
		if _, err := svc.Store.Create(sessionID, req.Email, req.SystemMessage, req.Voice); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		go placeCall(svc, sessionID, req.PhoneNumber)

		return c.JSON(fiber.Map{
			"message":    fmt.Sprintf("Call initiated to %s", req.PhoneNumber),
			"session_id": sessionID,
		})
	}
}

// GetCall returns the live state of a session.
func GetCall(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := svc.Store.Get(c.Params("id"))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Session not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(sess)
	}
}

func validateCallRequest(req *CallRequest) error {
	num, err := phonenumbers.Parse(req.PhoneNumber, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return fmt.Errorf("phone_number is not a dialable number")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("email is not a valid address")
	}
	if req.SystemMessage == "" {
		return fmt.Errorf("system_message is required")
	}
	if !models.VoiceAllowed(req.Voice) {
		return fmt.Errorf("voice %q is not available", req.Voice)
	}
	return nil
}

// placeCall runs after the trigger response has been sent. The destination
// must pass the account's allowed-number check before dialing; that failure
// and placement failure both fail the session and still drive the completion
// pipeline so the caller gets a notification and the store entry is reclaimed.
func placeCall(svc *services.Services, sessionID, phoneNumber string) {
	if err := svc.Telephony.CheckNumber(phoneNumber); err != nil {
		failPlacement(svc, sessionID, err)
		return
	}

	callSID, err := svc.Telephony.PlaceCall(phoneNumber, sessionID)
	if err != nil {
		failPlacement(svc, sessionID, err)
		return
	}

	if err := svc.Store.SetCallSID(sessionID, callSID); err != nil {
		svc.Logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to record call SID")
	}
}

func failPlacement(svc *services.Services, sessionID string, cause error) {
	svc.Logger.WithError(cause).WithField("session_id", sessionID).Error("Call placement failed")
	if serr := svc.Store.MarkStatus(sessionID, models.StatusFailed); serr != nil {
		svc.Logger.WithError(serr).WithField("session_id", sessionID).Warn("Failed to mark session failed")
	}
	svc.Completion.Run(context.Background(), sessionID)
}
