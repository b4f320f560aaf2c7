package realtime

// EventKind classifies events surfaced to the relay. The raw protocol emits
// many more event types; only the ones the relay acts on are decoded, the
// rest are skipped inside ReadEvent.
type EventKind string

const (
	// EventAudioDelta carries one chunk of synthesized speech.
	EventAudioDelta EventKind = "audio_delta"
	// EventSpeechStarted signals the model's voice detector heard the human
	// begin speaking. While the agent is mid-utterance this is a barge-in.
	EventSpeechStarted EventKind = "speech_started"
	// EventTurnDone marks the boundary of an agent utterance.
	EventTurnDone EventKind = "turn_done"
	// EventUserTranscript is the finalized transcription of a human turn.
	EventUserTranscript EventKind = "user_transcript"
	// EventAgentTranscript is the finalized text of an agent turn.
	EventAgentTranscript EventKind = "agent_transcript"
	// EventError is a protocol-level error report from the model.
	EventError EventKind = "error"
)

// Event is one decoded message from the speech channel. Audio is raw μ-law
// for audio deltas; Text is set for transcript and error events.
type Event struct {
	Kind  EventKind
	Audio []byte
	Text  string
}

// wire message fragments

type sessionUpdate struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	TurnDetection     turnDetection   `json:"turn_detection"`
	InputAudioFormat  string          `json:"input_audio_format"`
	OutputAudioFormat string          `json:"output_audio_format"`
	Voice             string          `json:"voice"`
	Instructions      string          `json:"instructions"`
	Modalities        []string        `json:"modalities"`
	Transcription     tsConfiguration `json:"input_audio_transcription"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type tsConfiguration struct {
	Model string `json:"model"`
}

type itemCreate struct {
	Type string `json:"type"`
	Item item   `json:"item"`
}

type item struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []itemContent `json:"content"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type control struct {
	Type string `json:"type"`
}

type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
