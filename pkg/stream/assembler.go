package stream

import (
	"fmt"
	"time"

	"github.com/panic80/cb-sub000/pkg/chat"
	"github.com/panic80/cb-sub000/pkg/logger"
)

// Phase is the assembler's position in the answer lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarted
	PhaseRetrieving
	PhaseGenerating
	PhaseComplete
	PhaseFailed
	PhaseAborted
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarted:
		return "started"
	case PhaseRetrieving:
		return "retrieving"
	case PhaseGenerating:
		return "generating"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends the lifecycle. Exactly one of
// complete, failed, or aborted does.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseAborted
}

// SnapshotFunc receives a render-ready copy of the working message after
// each token append.
type SnapshotFunc func(chat.Message)

// Assembler folds one stream's ordered events into a single evolving
// assistant message. It owns the working record exclusively: events are
// applied strictly in arrival order by the one goroutine driving the stream,
// and the text only ever grows until a terminal event.
type Assembler struct {
	phase          Phase
	workingID      string
	msg            chat.Message
	conversationID string
	sourcesSet     bool
	followUpsSet   bool
	onSnapshot     SnapshotFunc
}

// NewAssembler creates an assembler for a freshly submitted request. The
// message id must not be shared with any other in-flight stream.
func NewAssembler(messageID string, onSnapshot SnapshotFunc) *Assembler {
	return &Assembler{
		phase:     PhaseIdle,
		workingID: messageID,
		msg: chat.Message{
			ID:        messageID,
			Role:      chat.RoleAssistant,
			Timestamp: time.Now(),
		},
		onSnapshot: onSnapshot,
	}
}

// Apply folds one event into the working message. Events arriving after a
// terminal state are protocol violations and are ignored.
func (a *Assembler) Apply(ev Event) {
	if a.phase.Terminal() {
		logger.Warn("Ignoring %s event after terminal state %s for message %s",
			ev.Type, a.phase, a.msg.ID)
		return
	}
	if a.phase == PhaseIdle {
		a.phase = PhaseStarted
	}

	switch ev.Type {
	case EventRetrievalStart:
		// No visible status message, but the transition still happens so the
		// ordering of everything after it stays well-defined.
		a.phase = PhaseRetrieving

	case EventRetrievalComplete:
		a.phase = PhaseGenerating

	case EventSources:
		if !a.sourcesSet {
			a.msg.Sources = ev.Sources
			a.sourcesSet = true
		}

	case EventGenerationStart:
		a.phase = PhaseGenerating

	case EventToken:
		if a.phase != PhaseGenerating {
			a.phase = PhaseGenerating
		}
		a.msg.Content += ev.Token
		a.msg.IsFormatted = chat.DetectFormatted(a.msg.Content)
		a.publish()

	case EventMetadata:
		if a.conversationID == "" && ev.ConversationID != "" {
			a.conversationID = ev.ConversationID
		}
		if !a.followUpsSet && len(ev.FollowUps) > 0 {
			a.msg.FollowUps = a.mapFollowUps(ev.FollowUps)
			a.followUpsSet = true
		}

	case EventComplete:
		a.msg.Content = chat.SanitizeContent(a.msg.Content)
		a.msg.IsFormatted = chat.DetectFormatted(a.msg.Content)
		a.phase = PhaseComplete

	case EventError:
		a.fail(ev.Message)
	}
}

// Fail ends the stream as if a server error event had arrived. The manager
// uses it for transport-level failures, which are surfaced identically.
func (a *Assembler) Fail(description string) {
	if a.phase.Terminal() {
		return
	}
	a.fail(description)
}

func (a *Assembler) fail(description string) {
	// The partial message must not survive in any form; the user sees one
	// synthesized error message instead.
	errText := fmt.Sprintf("Sorry, I couldn't finish that answer: %s", description)
	a.msg = chat.NewAssistantMessage(errText)
	a.phase = PhaseFailed
}

// Abort ends the stream silently. No message is produced and no further
// callbacks fire. Aborting is a normal exit path, not an error.
func (a *Assembler) Abort() {
	if a.phase.Terminal() {
		return
	}
	a.msg = chat.Message{}
	a.phase = PhaseAborted
}

// Phase returns the current lifecycle phase.
func (a *Assembler) Phase() Phase {
	return a.phase
}

// WorkingID returns the id the working message was created under. After a
// failure the finalized error message carries a fresh id, so callers use
// this one to retract the partial snapshot.
func (a *Assembler) WorkingID() string {
	return a.workingID
}

// ConversationID returns the id the server bound during this stream, empty
// if none arrived.
func (a *Assembler) ConversationID() string {
	return a.conversationID
}

// Final returns the finalized message once the assembler reached complete or
// failed. Aborted and in-flight streams produce nothing.
func (a *Assembler) Final() (chat.Message, bool) {
	if a.phase != PhaseComplete && a.phase != PhaseFailed {
		return chat.Message{}, false
	}
	return a.msg, true
}

func (a *Assembler) publish() {
	if a.onSnapshot != nil {
		a.onSnapshot(a.msg)
	}
}

func (a *Assembler) mapFollowUps(payloads []FollowUpPayload) []chat.FollowUpQuestion {
	followUps := make([]chat.FollowUpQuestion, 0, len(payloads))
	for i, p := range payloads {
		id := p.ID
		if id == "" {
			id = chat.SynthesizeFollowUpID(a.msg.ID, i)
		}
		followUps = append(followUps, chat.FollowUpQuestion{
			ID:       id,
			Question: p.Question,
			Category: p.Category,
			Icon:     p.Icon,
		})
	}
	return followUps
}
