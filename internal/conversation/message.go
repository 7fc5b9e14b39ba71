package conversation

import (
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type PartKind string

const PartText PartKind = "text"

// Part is one piece of message content. Renderers skip kinds they do not know.
type Part struct {
	Kind  PartKind `json:"kind"`
	Value string   `json:"value"`
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Value: text}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusSettled   Status = "settled"
)

type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeOK        Outcome = "ok"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeError     Outcome = "error"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
	SettledAt time.Time `json:"settled_at,omitzero"`
	Status    Status    `json:"status"`
	Outcome   Outcome   `json:"outcome,omitempty"`
}

// Text concatenates the text parts.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			sb.WriteString(p.Value)
		}
	}
	return sb.String()
}

func (m Message) Streaming() bool {
	return m.Status == StatusPending || m.Status == StatusStreaming
}

func (m Message) Settled() bool {
	return m.Status == StatusSettled
}

func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return json.Marshal(struct {
		plain
		Streaming bool `json:"streaming"`
	}{plain: plain(m), Streaming: m.Streaming()})
}

func (m Message) clone() Message {
	out := m
	out.Parts = append([]Part(nil), m.Parts...)
	return out
}

// MessagePatch holds the fields to merge into a message. Nil fields are left alone.
type MessagePatch struct {
	Text    *string
	Status  *Status
	Outcome *Outcome
}

func TextPatch(text string, status Status) MessagePatch {
	return MessagePatch{Text: &text, Status: &status}
}

func SettlePatch(text string, outcome Outcome) MessagePatch {
	status := StatusSettled
	return MessagePatch{Text: &text, Status: &status, Outcome: &outcome}
}
