package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSample(t *testing.T) {
	// μ-law is lossy; a decode→encode cycle must be stable, and decoded
	// values must stay close to the original for mid-range samples.
	for b := 0; b < 256; b++ {
		sample := DecodeSample(byte(b))
		again := DecodeSample(EncodeSample(sample))
		assert.Equal(t, sample, again, "byte %#x not stable through codec", b)
	}
}

func TestEncodeSampleSilence(t *testing.T) {
	// Digital silence encodes to 0xFF in μ-law.
	assert.Equal(t, byte(0xFF), EncodeSample(0))
}

func TestDecodeSampleSign(t *testing.T) {
	positive := DecodeSample(EncodeSample(1000))
	negative := DecodeSample(EncodeSample(-1000))
	assert.Greater(t, positive, int16(0))
	assert.Less(t, negative, int16(0))
	assert.Equal(t, positive, -negative)
}

func TestEncodeDecodeBuffers(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0xE8, 0x03, 0x18, 0xFC} // 0, 1000, -1000
	ulaw := Encode(pcm)
	require.Len(t, ulaw, 3)

	back := Decode(ulaw)
	require.Len(t, back, 6)

	// Values survive within μ-law quantization error.
	for i := 0; i < 3; i++ {
		orig := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		got := int16(uint16(back[2*i]) | uint16(back[2*i+1])<<8)
		assert.InDelta(t, float64(orig), float64(got), 64)
	}
}

func TestTranslatorPassthrough(t *testing.T) {
	tr, err := NewTranslator(FormatULaw, FormatULaw)
	require.NoError(t, err)

	frame := []byte{0x01, 0x02, 0x03}
	assert.Equal(t, frame, tr.Translate(frame))
}

func TestTranslatorConverts(t *testing.T) {
	toPCM, err := NewTranslator(FormatULaw, FormatPCM16)
	require.NoError(t, err)
	toULaw, err := NewTranslator(FormatPCM16, FormatULaw)
	require.NoError(t, err)

	ulaw := Encode([]byte{0xE8, 0x03}) // 1000
	pcm := toPCM.Translate(ulaw)
	require.Len(t, pcm, 2)

	back := toULaw.Translate(pcm)
	assert.Equal(t, ulaw, back)
}

func TestTranslatorRejectsUnknownFormat(t *testing.T) {
	_, err := NewTranslator(Format("opus"), FormatULaw)
	assert.Error(t, err)

	_, err = NewTranslator(FormatULaw, Format("opus"))
	assert.Error(t, err)
}
