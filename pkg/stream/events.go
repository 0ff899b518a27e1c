package stream

import "github.com/panic80/cb-sub000/pkg/chat"

// EventType discriminates the frames the backend emits while answering.
type EventType int

const (
	EventRetrievalStart EventType = iota
	EventRetrievalComplete
	EventSources
	EventGenerationStart
	EventToken
	EventMetadata
	EventComplete
	EventError
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventRetrievalStart:
		return "retrieval_start"
	case EventRetrievalComplete:
		return "retrieval_complete"
	case EventSources:
		return "sources"
	case EventGenerationStart:
		return "generation_start"
	case EventToken:
		return "token"
	case EventMetadata:
		return "metadata"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded frame. Type selects which of the remaining fields are
// meaningful; exactly one variant is active per frame.
type Event struct {
	Type EventType

	// EventToken
	Token string

	// EventSources
	Sources []chat.Source

	// EventMetadata
	ConversationID string
	FollowUps      []FollowUpPayload

	// EventError
	Message string
}

// FollowUpPayload is a follow-up suggestion as it appears on the wire. The
// id is optional; the assembler synthesizes one when absent.
type FollowUpPayload struct {
	ID       string `json:"id,omitempty"`
	Question string `json:"question"`
	Category string `json:"category,omitempty"`
	Icon     string `json:"icon,omitempty"`
}
