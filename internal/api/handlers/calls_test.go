package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxrelay/voxrelay-backend/internal/models"
	"github.com/voxrelay/voxrelay-backend/internal/pipeline"
	"github.com/voxrelay/voxrelay-backend/internal/services"
	"github.com/voxrelay/voxrelay-backend/internal/session"
	"github.com/voxrelay/voxrelay-backend/internal/telephony"
)

type fakeDialer struct {
	mu       sync.Mutex
	err      error
	checkErr error
	checked  []string
	placed   []placedCall
}

type placedCall struct {
	phoneNumber, sessionID string
}

func (f *fakeDialer) CheckNumber(phoneNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, phoneNumber)
	return f.checkErr
}

func (f *fakeDialer) PlaceCall(phoneNumber, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.placed = append(f.placed, placedCall{phoneNumber: phoneNumber, sessionID: sessionID})
	return "CA" + sessionID, nil
}

func (f *fakeDialer) HangUp(callSID string) error { return nil }

func (f *fakeDialer) placedCalls() []placedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]placedCall(nil), f.placed...)
}

type noopDispatcher struct{}

func (noopDispatcher) SendSummary(recipientEmail, summaryText, sessionID string) error { return nil }

type staticSummarizer struct{}

func (staticSummarizer) Summarize(_ context.Context, _ []models.Turn) (string, error) {
	return "nothing to report", nil
}

func newTestServices(dialer *fakeDialer) *services.Services {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := session.NewMemoryStore()
	return &services.Services{
		Logger:     logger,
		Store:      store,
		Telephony:  dialer,
		Completion: pipeline.NewCompletion(store, staticSummarizer{}, noopDispatcher{}, logger),
	}
}

func newTestApp(svc *services.Services) *fiber.App {
	app := fiber.New()
	app.Post("/api/v1/calls", CreateCall(svc))
	app.Get("/api/v1/calls/:id", GetCall(svc))
	return app
}

func postCall(t *testing.T, app *fiber.App, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateCall_Valid(t *testing.T) {
	dialer := &fakeDialer{}
	svc := newTestServices(dialer)
	app := newTestApp(svc)

	resp := postCall(t, app, CallRequest{
		PhoneNumber:   "+14155552671",
		Email:         "caller@example.com",
		SystemMessage: "You are a helpful scheduling assistant.",
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Contains(t, body["message"], "+14155552671")

	sess, err := svc.Store.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sess.Status)
	assert.Equal(t, "caller@example.com", sess.RecipientEmail)
	assert.Equal(t, "alloy", sess.Voice, "voice defaults when omitted")

	assert.Eventually(t, func() bool {
		calls := dialer.placedCalls()
		return len(calls) == 1 && calls[0].sessionID == sessionID
	}, time.Second, 10*time.Millisecond)
}

func TestCreateCall_Validation(t *testing.T) {
	valid := CallRequest{
		PhoneNumber:   "+14155552671",
		Email:         "caller@example.com",
		SystemMessage: "Talk about the weather.",
		Voice:         "echo",
	}

	tests := []struct {
		name   string
		mutate func(*CallRequest)
	}{
		{"bad phone number", func(r *CallRequest) { r.PhoneNumber = "not-a-number" }},
		{"short phone number", func(r *CallRequest) { r.PhoneNumber = "+1415" }},
		{"bad email", func(r *CallRequest) { r.Email = "caller@" }},
		{"missing system message", func(r *CallRequest) { r.SystemMessage = "" }},
		{"unknown voice", func(r *CallRequest) { r.Voice = "baritone" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{}
			svc := newTestServices(dialer)
			app := newTestApp(svc)

			req := valid
			tt.mutate(&req)
			resp := postCall(t, app, req)

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, dialer.placedCalls())
		})
	}
}

func TestCreateCall_MalformedBody(t *testing.T) {
	svc := newTestServices(&fakeDialer{})
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateCall_PlacementFailureFailsSession(t *testing.T) {
	dialer := &fakeDialer{err: assert.AnError}
	svc := newTestServices(dialer)
	app := newTestApp(svc)

	resp := postCall(t, app, CallRequest{
		PhoneNumber:   "+14155552671",
		Email:         "caller@example.com",
		SystemMessage: "Say hello.",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessionID := decodeBody(t, resp)["session_id"].(string)

	// Placement runs in the background; once it fails the completion
	// pipeline evicts the session.
	assert.Eventually(t, func() bool {
		_, err := svc.Store.Get(sessionID)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestCreateCall_DisallowedNumberFailsSession(t *testing.T) {
	dialer := &fakeDialer{checkErr: telephony.ErrNumberNotAllowed}
	svc := newTestServices(dialer)
	app := newTestApp(svc)

	resp := postCall(t, app, CallRequest{
		PhoneNumber:   "+14155552671",
		Email:         "caller@example.com",
		SystemMessage: "Say hello.",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessionID := decodeBody(t, resp)["session_id"].(string)

	// The refused number fails the session through the completion pipeline
	// without any call ever being placed.
	assert.Eventually(t, func() bool {
		_, err := svc.Store.Get(sessionID)
		return err != nil
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, dialer.placedCalls())
}

func TestGetCall(t *testing.T) {
	svc := newTestServices(&fakeDialer{})
	app := newTestApp(svc)

	_, err := svc.Store.Create("sess-1", "a@b.com", "persona", "alloy")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/sess-1", nil)
	resp, e := app.Test(req, -1)
	require.NoError(t, e)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "sess-1", body["id"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/calls/missing", nil)
	resp, e = app.Test(req, -1)
	require.NoError(t, e)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
