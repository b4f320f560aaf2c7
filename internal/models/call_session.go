package models

import "time"

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleHuman Role = "human"
	RoleAgent Role = "agent"
)

// Status is the lifecycle state of a call session.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// statusRank orders statuses so transitions can only move forward.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusActive:    1,
	StatusCompleted: 2,
	StatusFailed:    2,
}

// CanTransition reports whether a session may move from one status to another.
// Terminal statuses accept no further transitions.
func CanTransition(from, to Status) bool {
	if from == StatusCompleted || from == StatusFailed {
		return false
	}
	return statusRank[to] > statusRank[from]
}

// Turn is one uninterrupted span of speech by either party.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// CallSession holds the full per-call state from placement to summary delivery.
// RecipientEmail, Persona and Voice are fixed at creation; Transcript is
// append-only while the call is live.
type CallSession struct {
	ID             string    `json:"id"`
	CallSID        string    `json:"call_sid,omitempty"`
	RecipientEmail string    `json:"recipient_email"`
	Persona        string    `json:"persona"`
	Voice          string    `json:"voice"`
	Transcript     []Turn    `json:"transcript"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// realtimeVoices is the provider's enumerated synthesis voice set.
var realtimeVoices = map[string]bool{
	"alloy":   true,
	"ash":     true,
	"ballad":  true,
	"coral":   true,
	"echo":    true,
	"sage":    true,
	"shimmer": true,
	"verse":   true,
}

// VoiceAllowed reports whether v is a valid synthesis voice.
func VoiceAllowed(v string) bool {
	return realtimeVoices[v]
}

// Voices returns the allowed voice identifiers.
func Voices() []string {
	out := make([]string, 0, len(realtimeVoices))
	for v := range realtimeVoices {
		out = append(out, v)
	}
	return out
}
