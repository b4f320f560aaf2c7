package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
)

// Frame kinds delivered by the media stream.
const (
	FrameStart = "start"
	FrameMedia = "media"
	FrameMark  = "mark"
	FrameStop  = "stop"
)

// Frame is one decoded media stream event. Audio is raw μ-law bytes for
// media frames and nil otherwise.
type Frame struct {
	Kind    string
	Audio   []byte
	Mark    string
	CallSID string
}

// streamMessage mirrors the provider's media stream wire format.
type streamMessage struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid,omitempty"`
	Media     *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Start *struct {
		StreamSid string `json:"streamSid"`
		CallSid   string `json:"callSid"`
	} `json:"start,omitempty"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
}

type outMedia struct {
	Event     string  `json:"event"`
	StreamSid string  `json:"streamSid"`
	Media     payload `json:"media"`
}

type payload struct {
	Payload string `json:"payload"`
}

type outMark struct {
	Event     string   `json:"event"`
	StreamSid string   `json:"streamSid"`
	Mark      markName `json:"mark"`
}

type markName struct {
	Name string `json:"name"`
}

type outClear struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

// WSConn is the subset of a websocket connection the stream adapter needs.
// Both the fiber server-side conn and the gorilla conn satisfy it.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1

// StreamConn adapts a raw websocket connection to the telephony audio
// channel: inbound μ-law frames out, outbound μ-law audio plus mark/clear
// control events in. Writes are serialized; reads belong to a single pump.
type StreamConn struct {
	conn      WSConn
	writeMu   sync.Mutex
	streamSID string
}

func NewStreamConn(conn WSConn) *StreamConn {
	return &StreamConn{conn: conn}
}

// StreamSID returns the provider's stream identifier, known after the start
// frame has been read.
func (s *StreamConn) StreamSID() string {
	return s.streamSID
}

// ReadFrame blocks for the next decoded event. Unrecognized events (the
// provider also sends "connected" and DTMF notifications) are skipped.
func (s *StreamConn) ReadFrame() (*Frame, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("media stream read: %w", err)
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("media stream decode: %w", err)
		}

		switch msg.Event {
		case FrameStart:
			if msg.Start != nil {
				s.streamSID = msg.Start.StreamSid
				return &Frame{Kind: FrameStart, CallSID: msg.Start.CallSid}, nil
			}
		case FrameMedia:
			if msg.Media == nil {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				return nil, fmt.Errorf("media payload decode: %w", err)
			}
			return &Frame{Kind: FrameMedia, Audio: audio}, nil
		case FrameMark:
			name := ""
			if msg.Mark != nil {
				name = msg.Mark.Name
			}
			return &Frame{Kind: FrameMark, Mark: name}, nil
		case FrameStop:
			return &Frame{Kind: FrameStop}, nil
		}
	}
}

// WriteAudio sends one μ-law audio frame to the call.
func (s *StreamConn) WriteAudio(audio []byte) error {
	msg := outMedia{
		Event:     FrameMedia,
		StreamSid: s.streamSID,
		Media:     payload{Payload: base64.StdEncoding.EncodeToString(audio)},
	}
	return s.writeJSON(msg)
}

// WriteMark asks the provider to echo a mark event once playback reaches
// this point in the outbound buffer.
func (s *StreamConn) WriteMark(name string) error {
	return s.writeJSON(outMark{
		Event:     FrameMark,
		StreamSid: s.streamSID,
		Mark:      markName{Name: name},
	})
}

// Clear discards audio the provider has buffered but not yet played.
func (s *StreamConn) Clear() error {
	return s.writeJSON(outClear{Event: "clear", StreamSid: s.streamSID})
}

// Close closes the underlying websocket.
func (s *StreamConn) Close() error {
	return s.conn.Close()
}

func (s *StreamConn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(textMessage, data)
}
