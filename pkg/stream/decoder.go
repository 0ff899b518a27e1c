package stream

import (
	"encoding/json"
	"strings"

	"github.com/panic80/cb-sub000/pkg/chat"
	"github.com/panic80/cb-sub000/pkg/logger"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// framePayload is the superset of fields a data frame can carry. Type picks
// which ones are read; missing fields default to empty.
type framePayload struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Sources        []struct {
		Content string `json:"content"`
		Source  string `json:"source"`
	} `json:"sources"`
	FollowUpQuestions []FollowUpPayload `json:"follow_up_questions"`
}

// DecodeLine maps one SSE line to zero or one event. Lines without the
// `data: ` prefix and the [DONE] sentinel yield nothing. A malformed payload
// or unknown type is logged and skipped so one bad frame never aborts an
// otherwise healthy stream.
func DecodeLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}

	payload := strings.TrimPrefix(line, dataPrefix)
	if payload == doneSentinel {
		// Termination hint only. The authoritative end of a stream is the
		// complete/error event or stream closure.
		return Event{}, false
	}

	var frame framePayload
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		logger.Warn("Dropping malformed stream frame: %v", err)
		return Event{}, false
	}

	switch frame.Type {
	case "retrieval_start":
		return Event{Type: EventRetrievalStart}, true
	case "retrieval_complete":
		return Event{Type: EventRetrievalComplete}, true
	case "sources":
		sources := make([]chat.Source, 0, len(frame.Sources))
		for _, s := range frame.Sources {
			sources = append(sources, chat.Source{Content: s.Content, Reference: s.Source})
		}
		return Event{Type: EventSources, Sources: sources}, true
	case "generation_start":
		return Event{Type: EventGenerationStart}, true
	case "token":
		return Event{Type: EventToken, Token: frame.Content}, true
	case "metadata":
		return Event{
			Type:           EventMetadata,
			ConversationID: frame.ConversationID,
			FollowUps:      frame.FollowUpQuestions,
		}, true
	case "complete":
		return Event{Type: EventComplete}, true
	case "error":
		return Event{Type: EventError, Message: frame.Message}, true
	default:
		logger.Warn("Dropping stream frame with unknown type %q", frame.Type)
		return Event{}, false
	}
}
