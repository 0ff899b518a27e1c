package controllers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/panic80/cb-sub000/pkg/chat"
	"github.com/panic80/cb-sub000/pkg/logger"
	"github.com/panic80/cb-sub000/pkg/stream"
)

// UpdateType identifies what a streaming update carries.
type UpdateType int

const (
	// StreamStarted is emitted once, before any snapshot.
	StreamStarted UpdateType = iota
	// SnapshotUpdated carries the growing assistant message after a token.
	SnapshotUpdated
	// MessageComplete carries the finalized assistant message.
	MessageComplete
	// MessageFailed carries the synthesized error message.
	MessageFailed
	// StreamAborted signals a caller-cancelled stream. No message follows.
	StreamAborted
)

// Update is one item on the channel a send returns. The UI renders
// SnapshotUpdated messages in place and commits on the terminal update.
type Update struct {
	Type    UpdateType
	Message chat.Message
}

// Options configures a ChatController.
type Options struct {
	Model         string
	Provider      string
	UseRAG        bool
	HistoryWindow int
}

// ChatController runs one streaming exchange at a time against the chat
// backend, publishing progress to the transcript and an update channel.
// Concurrent sends are safe in the sense that each owns a fresh message id,
// so a still-draining stream cannot touch a newer message.
type ChatController struct {
	client     *stream.Client
	transcript *chat.Transcript
	history    *chat.History
	opts       Options
}

// NewChatController creates a controller around the given client, transcript
// and history.
func NewChatController(client *stream.Client, transcript *chat.Transcript, history *chat.History, opts Options) *ChatController {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	return &ChatController{
		client:     client,
		transcript: transcript,
		history:    history,
		opts:       opts,
	}
}

// Transcript returns the render list this controller maintains.
func (c *ChatController) Transcript() *chat.Transcript {
	return c.transcript
}

// StartStreaming submits userText as a new turn and returns a channel of
// updates. The channel closes after exactly one terminal update (complete,
// failed, or aborted).
func (c *ChatController) StartStreaming(ctx context.Context, userText string) (<-chan Update, error) {
	userMsg := chat.NewUserMessage(userText)
	if userMsg.IsEmpty() {
		return nil, fmt.Errorf("message cannot be empty")
	}

	// The request window is the history before this turn; the new user text
	// travels in the message field, not in chatHistory.
	req := c.buildRequest(userText)

	c.transcript.Upsert(userMsg)
	if err := c.history.Add(userMsg); err != nil {
		logger.Warn("Failed to persist user message: %v", err)
	}

	updates := make(chan Update, 64)
	asm := stream.NewAssembler(uuid.NewString(), func(snapshot chat.Message) {
		c.transcript.Upsert(snapshot)
		updates <- Update{Type: SnapshotUpdated, Message: snapshot}
	})

	events, err := c.client.Stream(ctx, req)
	if err != nil {
		// Transport failure before any SSE parsing. Surfaced exactly like a
		// mid-stream failure: one synthesized error message.
		logger.Error("Stream request failed: %v", err)
		asm.Fail(err.Error())
		go func() {
			defer close(updates)
			updates <- Update{Type: StreamStarted}
			c.commit(asm, updates)
		}()
		return updates, nil
	}

	go func() {
		defer close(updates)
		updates <- Update{Type: StreamStarted}

		for ev := range events {
			asm.Apply(ev)
		}

		if !asm.Phase().Terminal() {
			if ctx.Err() != nil {
				asm.Abort()
			} else {
				// The server hung up without complete or error.
				asm.Fail("the connection closed before the answer completed")
			}
		}

		c.commit(asm, updates)
	}()

	return updates, nil
}

// Regenerate re-runs the most recent user turn as a whole new pipeline
// invocation with a fresh message id.
func (c *ChatController) Regenerate(ctx context.Context) (<-chan Update, error) {
	last, ok := c.transcript.LastUserMessage()
	if !ok {
		return nil, fmt.Errorf("nothing to regenerate")
	}
	return c.StartStreaming(ctx, last.Content)
}

// commit applies the assembler's terminal outcome to the transcript and
// history, then emits the terminal update.
func (c *ChatController) commit(asm *stream.Assembler, updates chan<- Update) {
	switch asm.Phase() {
	case stream.PhaseComplete:
		final, _ := asm.Final()
		c.transcript.Upsert(final)
		if err := c.history.Add(final); err != nil {
			logger.Warn("Failed to persist assistant message: %v", err)
		}
		if id := asm.ConversationID(); id != "" {
			if err := c.history.SetConversationID(id); err != nil {
				logger.Warn("Failed to persist conversation id: %v", err)
			}
		}
		updates <- Update{Type: MessageComplete, Message: final}

	case stream.PhaseFailed:
		final, _ := asm.Final()
		// The partial answer never stays on screen: retract the working
		// snapshot and show the synthesized error message instead. Error
		// messages are not persisted to history, so they never travel back
		// to the server as context.
		c.transcript.Remove(asm.WorkingID())
		c.transcript.Upsert(final)
		updates <- Update{Type: MessageFailed, Message: final}

	case stream.PhaseAborted:
		c.transcript.Remove(asm.WorkingID())
		updates <- Update{Type: StreamAborted}
	}
}

func (c *ChatController) buildRequest(userText string) stream.ChatRequest {
	window := c.history.LastN(c.opts.HistoryWindow)
	turns := make([]stream.HistoryTurn, 0, len(window))
	for _, msg := range window {
		if msg.Role != chat.RoleUser && msg.Role != chat.RoleAssistant {
			continue
		}
		turns = append(turns, stream.HistoryTurn{Role: msg.Role, Content: msg.Content})
	}

	return stream.ChatRequest{
		Message:        userText,
		Model:          c.opts.Model,
		Provider:       c.opts.Provider,
		UseRAG:         c.opts.UseRAG,
		ConversationID: c.history.GetConversationID(),
		ChatHistory:    turns,
	}
}
