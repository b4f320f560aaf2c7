package telephony

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/voxrelay/voxrelay-backend/internal/config"
)

// ErrNumberNotAllowed is returned when the destination number is neither a
// provider incoming number nor a verified outgoing caller ID on the account.
var ErrNumberNotAllowed = errors.New("phone number is not recognized as an allowed destination")

// Dialer places and terminates outbound calls.
type Dialer interface {
	// CheckNumber verifies the destination is allowed for this account
	// before any call is placed.
	CheckNumber(phoneNumber string) error
	// PlaceCall dials the number and connects it to the session's media
	// stream; it returns the provider's call identifier.
	PlaceCall(phoneNumber, sessionID string) (string, error)
	// HangUp terminates an in-progress call.
	HangUp(callSID string) error
}

// TwilioDialer places calls through the Twilio REST API.
type TwilioDialer struct {
	client       *twilio.RestClient
	fromNumber   string
	publicDomain string
	logger       *logrus.Logger
}

func NewTwilioDialer(cfg config.TwilioConfig, publicDomain string, logger *logrus.Logger) *TwilioDialer {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioDialer{
		client:       client,
		fromNumber:   cfg.FromNumber,
		publicDomain: publicDomain,
		logger:       logger,
	}
}

// CheckNumber looks the destination up among the account's verified outgoing
// caller IDs and its incoming numbers; anything else is refused.
func (d *TwilioDialer) CheckNumber(phoneNumber string) error {
	callerIDParams := &api.ListOutgoingCallerIdParams{}
	callerIDParams.SetPhoneNumber(phoneNumber)
	callerIDParams.SetLimit(1)

	callerIDs, err := d.client.Api.ListOutgoingCallerId(callerIDParams)
	if err != nil {
		return fmt.Errorf("caller ID lookup: %w", err)
	}
	if len(callerIDs) > 0 {
		return nil
	}

	incomingParams := &api.ListIncomingPhoneNumberParams{}
	incomingParams.SetPhoneNumber(phoneNumber)
	incomingParams.SetLimit(1)

	incoming, err := d.client.Api.ListIncomingPhoneNumber(incomingParams)
	if err != nil {
		return fmt.Errorf("incoming number lookup: %w", err)
	}
	if len(incoming) > 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrNumberNotAllowed, phoneNumber)
}

// PlaceCall creates the outbound call with inline TwiML pointing at the
// session's media stream URL.
func (d *TwilioDialer) PlaceCall(phoneNumber, sessionID string) (string, error) {
	twiml, err := StreamTwiML(d.publicDomain, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to build TwiML: %w", err)
	}

	params := &api.CreateCallParams{}
	params.SetTo(phoneNumber)
	params.SetFrom(d.fromNumber)
	params.SetTwiml(twiml)

	resp, err := d.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("failed to place call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("call placed but no SID returned")
	}

	d.logger.WithFields(logrus.Fields{
		"call_sid":   *resp.Sid,
		"session_id": sessionID,
	}).Info("Outbound call placed")

	return *resp.Sid, nil
}

// HangUp marks the call completed, which ends the media stream.
func (d *TwilioDialer) HangUp(callSID string) error {
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")

	if _, err := d.client.Api.UpdateCall(callSID, params); err != nil {
		return fmt.Errorf("failed to hang up call %s: %w", callSID, err)
	}
	return nil
}
