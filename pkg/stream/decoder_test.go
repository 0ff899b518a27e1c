package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panic80/cb-sub000/pkg/chat"
)

func TestDecodeLine(t *testing.T) {
	t.Run("should ignore lines without the data prefix", func(t *testing.T) {
		for _, line := range []string{"", ": comment", "event: token", "id: 7", "random text"} {
			_, ok := DecodeLine(line)
			assert.False(t, ok, "line %q should yield no event", line)
		}
	})

	t.Run("should filter the DONE sentinel", func(t *testing.T) {
		_, ok := DecodeLine("data: [DONE]")
		assert.False(t, ok)
	})

	t.Run("should decode retrieval markers", func(t *testing.T) {
		ev, ok := DecodeLine(`data: {"type":"retrieval_start"}`)
		require.True(t, ok)
		assert.Equal(t, EventRetrievalStart, ev.Type)

		ev, ok = DecodeLine(`data: {"type":"retrieval_complete"}`)
		require.True(t, ok)
		assert.Equal(t, EventRetrievalComplete, ev.Type)
	})

	t.Run("should decode sources preserving order", func(t *testing.T) {
		ev, ok := DecodeLine(`data: {"type":"sources","sources":[{"content":"Rate is $25.65","source":"NJC"},{"content":"Appendix C","source":"CFTDTI"}]}`)
		require.True(t, ok)
		assert.Equal(t, EventSources, ev.Type)
		require.Len(t, ev.Sources, 2)
		assert.Equal(t, chat.Source{Content: "Rate is $25.65", Reference: "NJC"}, ev.Sources[0])
		assert.Equal(t, chat.Source{Content: "Appendix C", Reference: "CFTDTI"}, ev.Sources[1])
	})

	t.Run("should decode tokens", func(t *testing.T) {
		ev, ok := DecodeLine(`data: {"type":"token","content":"partial text"}`)
		require.True(t, ok)
		assert.Equal(t, EventToken, ev.Type)
		assert.Equal(t, "partial text", ev.Token)
	})

	t.Run("should default missing token content to empty", func(t *testing.T) {
		ev, ok := DecodeLine(`data: {"type":"token"}`)
		require.True(t, ok)
		assert.Equal(t, "", ev.Token)
	})

	t.Run("should decode metadata", func(t *testing.T) {
		ev, ok := DecodeLine(`data: {"type":"metadata","conversation_id":"abc123","follow_up_questions":[{"question":"What about dinner?","category":"rates","icon":"utensils"}]}`)
		require.True(t, ok)
		assert.Equal(t, EventMetadata, ev.Type)
		assert.Equal(t, "abc123", ev.ConversationID)
		require.Len(t, ev.FollowUps, 1)
		assert.Equal(t, "What about dinner?", ev.FollowUps[0].Question)
		assert.Equal(t, "rates", ev.FollowUps[0].Category)
		assert.Equal(t, "utensils", ev.FollowUps[0].Icon)
		assert.Empty(t, ev.FollowUps[0].ID)
	})

	t.Run("should decode completion and error", func(t *testing.T) {
		ev, ok := DecodeLine(`data: {"type":"complete"}`)
		require.True(t, ok)
		assert.Equal(t, EventComplete, ev.Type)

		ev, ok = DecodeLine(`data: {"type":"error","message":"boom"}`)
		require.True(t, ok)
		assert.Equal(t, EventError, ev.Type)
		assert.Equal(t, "boom", ev.Message)
	})

	t.Run("should drop malformed payloads without failing", func(t *testing.T) {
		_, ok := DecodeLine(`data: {"type":"token","content":`)
		assert.False(t, ok)

		_, ok = DecodeLine(`data: not json at all`)
		assert.False(t, ok)
	})

	t.Run("should drop unknown event types", func(t *testing.T) {
		_, ok := DecodeLine(`data: {"type":"telemetry","content":"x"}`)
		assert.False(t, ok)
	})
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "retrieval_start", EventRetrievalStart.String())
	assert.Equal(t, "token", EventToken.String())
	assert.Equal(t, "complete", EventComplete.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
