package audio

import "fmt"

// Format identifies a transport audio encoding.
type Format string

const (
	FormatULaw  Format = "g711_ulaw"
	FormatPCM16 Format = "pcm16"
)

// Translator converts frames between two transport encodings. Frames pass
// through unchanged when both sides share a format, which is the case for the
// telephony and realtime transports in their default configuration.
type Translator struct {
	from Format
	to   Format
}

// NewTranslator builds a converter from one format to another.
func NewTranslator(from, to Format) (*Translator, error) {
	switch from {
	case FormatULaw, FormatPCM16:
	default:
		return nil, fmt.Errorf("unsupported audio format %q", from)
	}
	switch to {
	case FormatULaw, FormatPCM16:
	default:
		return nil, fmt.Errorf("unsupported audio format %q", to)
	}
	return &Translator{from: from, to: to}, nil
}

// Translate converts one frame. Frame order is the caller's responsibility;
// the translator itself is stateless.
func (t *Translator) Translate(frame []byte) []byte {
	if t.from == t.to {
		return frame
	}
	if t.from == FormatULaw {
		return Decode(frame)
	}
	return Encode(frame)
}
