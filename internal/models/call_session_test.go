package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to active", StatusPending, StatusActive, true},
		{"active to completed", StatusActive, StatusCompleted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"active to failed", StatusActive, StatusFailed, true},
		{"pending to completed", StatusPending, StatusCompleted, true},
		{"completed to active", StatusCompleted, StatusActive, false},
		{"failed to active", StatusFailed, StatusActive, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"active to pending", StatusActive, StatusPending, false},
		{"active to active", StatusActive, StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestVoiceAllowed(t *testing.T) {
	assert.True(t, VoiceAllowed("alloy"))
	assert.True(t, VoiceAllowed("shimmer"))
	assert.False(t, VoiceAllowed("robot"))
	assert.False(t, VoiceAllowed(""))
	assert.False(t, VoiceAllowed("Alloy"))
}

func TestVoices(t *testing.T) {
	voices := Voices()
	assert.Len(t, voices, 8)
	assert.Contains(t, voices, "alloy")
}
