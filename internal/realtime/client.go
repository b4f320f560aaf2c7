package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voxrelay/voxrelay-backend/internal/config"
)

// ErrUpstreamUnavailable is returned when the speech channel handshake fails
// within its bounded timeout.
var ErrUpstreamUnavailable = errors.New("speech channel unavailable")

const realtimeURL = "wss://api.openai.com/v1/realtime?model="

// Channel is the bidirectional speech stream the relay pumps against.
type Channel interface {
	// Configure pushes the persona, voice and audio format before any audio
	// flows, then asks the model to open with a greeting.
	Configure(persona, voice string) error
	// AppendAudio forwards one μ-law frame of caller audio.
	AppendAudio(audio []byte) error
	// Interrupt cancels the in-flight response so queued agent audio is
	// discarded by the model.
	Interrupt() error
	// ReadEvent blocks for the next decoded event.
	ReadEvent() (*Event, error)
	Close() error
}

// Dialer establishes speech channels.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// ClientDialer dials the OpenAI Realtime API.
type ClientDialer struct {
	cfg config.OpenAIConfig
	url string
}

func NewClientDialer(cfg config.OpenAIConfig) *ClientDialer {
	return &ClientDialer{cfg: cfg, url: realtimeURL + cfg.RealtimeModel}
}

// Dial performs the websocket handshake. The caller bounds the attempt via
// ctx; failure maps to ErrUpstreamUnavailable.
func (d *ClientDialer) Dial(ctx context.Context) (Channel, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return &Client{conn: conn}, nil
}

// Client is a Channel over a live websocket. Writes are serialized because
// the inbound audio pump and the event pump both send control messages.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Configure sends the session configuration followed by the initial greeting
// prompt so the agent speaks first.
func (c *Client) Configure(persona, voice string) error {
	update := sessionUpdate{
		Type: "session.update",
		Session: sessionPayload{
			TurnDetection:     turnDetection{Type: "server_vad"},
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			Voice:             voice,
			Instructions:      persona,
			Modalities:        []string{"text", "audio"},
			Transcription:     tsConfiguration{Model: "whisper-1"},
		},
	}
	if err := c.writeJSON(update); err != nil {
		return fmt.Errorf("session update: %w", err)
	}

	greeting := itemCreate{
		Type: "conversation.item.create",
		Item: item{
			Type: "message",
			Role: "user",
			Content: []itemContent{
				{Type: "input_text", Text: "Please begin by greeting the user."},
			},
		},
	}
	if err := c.writeJSON(greeting); err != nil {
		return fmt.Errorf("greeting item: %w", err)
	}

	if err := c.writeJSON(control{Type: "response.create"}); err != nil {
		return fmt.Errorf("response create: %w", err)
	}
	return nil
}

// AppendAudio forwards one caller audio frame.
func (c *Client) AppendAudio(audio []byte) error {
	return c.writeJSON(audioAppend{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
}

// Interrupt cancels the in-flight response.
func (c *Client) Interrupt() error {
	return c.writeJSON(control{Type: "response.cancel"})
}

// ReadEvent blocks for the next event the relay cares about.
func (c *Client) ReadEvent() (*Event, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("speech channel read: %w", err)
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("speech channel decode: %w", err)
		}

		switch evt.Type {
		case "response.audio.delta":
			if evt.Delta == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(evt.Delta)
			if err != nil {
				return nil, fmt.Errorf("audio delta decode: %w", err)
			}
			return &Event{Kind: EventAudioDelta, Audio: audio}, nil
		case "input_audio_buffer.speech_started":
			return &Event{Kind: EventSpeechStarted}, nil
		case "response.audio.done", "response.done":
			return &Event{Kind: EventTurnDone}, nil
		case "conversation.item.input_audio_transcription.completed":
			return &Event{Kind: EventUserTranscript, Text: evt.Transcript}, nil
		case "response.audio_transcript.done":
			return &Event{Kind: EventAgentTranscript, Text: evt.Transcript}, nil
		case "error":
			msg := "unknown error"
			if evt.Error != nil {
				msg = evt.Error.Message
			}
			return &Event{Kind: EventError, Text: msg}, nil
		}
	}
}

// Close closes the underlying websocket.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}
