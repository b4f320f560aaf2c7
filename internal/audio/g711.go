// Package audio converts between the telephony transport's G.711 μ-law
// encoding (8-bit, 8kHz) and 16-bit linear PCM. Both live transports in the
// relay speak μ-law, so the hot path is a 1:1 re-encode; the PCM conversions
// exist for transports that negotiate linear16.
package audio

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// encodeTable maps the exponent segment for μ-law compression.
var encodeTable = [256]byte{
	0, 0, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 3, 3,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
}

// EncodeSample compresses one 16-bit linear PCM sample to μ-law.
func EncodeSample(sample int16) byte {
	sign := byte(0)
	s := int32(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := encodeTable[(s>>7)&0xFF]
	mantissa := byte((s >> (exponent + 3)) & 0x0F)
	return ^(sign | (exponent << 4) | mantissa)
}

// DecodeSample expands one μ-law byte to a 16-bit linear PCM sample.
func DecodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	s := (int32(mantissa)<<3 + ulawBias) << exponent
	s -= ulawBias
	if sign != 0 {
		s = -s
	}
	return int16(s)
}

// Encode compresses 16-bit little-endian linear PCM to μ-law bytes.
func Encode(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := 0; i < len(out); i++ {
		sample := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		out[i] = EncodeSample(sample)
	}
	return out
}

// Decode expands μ-law bytes to 16-bit little-endian linear PCM.
func Decode(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*2)
	for i, b := range ulaw {
		sample := DecodeSample(b)
		out[2*i] = byte(sample)
		out[2*i+1] = byte(uint16(sample) >> 8)
	}
	return out
}
