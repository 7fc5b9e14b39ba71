package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/conversation"
)

func TestMarkdownToPlainText(t *testing.T) {
	out := Markdown("**Paddington** is *cozy* [SOURCE 1].\n\n- Up\n- Coco\n\nSee [site](https://example.com)")
	require.Contains(t, out, "Paddington is cozy [SOURCE 1].")
	require.Contains(t, out, "• Up")
	require.Contains(t, out, "• Coco")
	require.Contains(t, out, "site (https://example.com)")
	require.NotContains(t, out, "**")
}

func TestBodyIgnoresUnknownParts(t *testing.T) {
	m := conversation.Message{
		Role:   conversation.RoleUser,
		Parts:  []conversation.Part{conversation.TextPart("hello"), {Kind: "image", Value: "poster.png"}},
		Status: conversation.StatusSettled,
	}
	require.Equal(t, "hello", Body(m))
}

func TestBodyCancelledAndStreaming(t *testing.T) {
	m := conversation.Message{
		Role:    conversation.RoleAssistant,
		Parts:   []conversation.Part{conversation.TextPart("Try Pad")},
		Status:  conversation.StatusSettled,
		Outcome: conversation.OutcomeCancelled,
	}
	require.Equal(t, "Try Pad\n"+CancelledMarker, Body(m))

	m = conversation.Message{Role: conversation.RoleAssistant, Status: conversation.StatusPending}
	require.Equal(t, TypingIndicator, Body(m))
}

func TestTimestampAndDuration(t *testing.T) {
	m := conversation.Message{Status: conversation.StatusStreaming, CreatedAt: time.Now()}
	require.Equal(t, "", Timestamp(m))
	m = conversation.Message{Status: conversation.StatusSettled, SettledAt: time.Date(2025, 1, 1, 9, 5, 0, 0, time.Local)}
	require.Equal(t, "09:05", Timestamp(m))
	require.Equal(t, "1.5s", Duration(1460))
}
