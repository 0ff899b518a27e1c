package chat

import "sync"

// Transcript is the ordered list of messages a conversation view renders.
// It is keyed by message id so streaming snapshots can be republished in
// place: Upsert inserts a new message at the end or replaces an existing one
// without disturbing order.
type Transcript struct {
	order []string
	byID  map[string]Message
	mu    sync.RWMutex
}

func NewTranscript() *Transcript {
	return &Transcript{
		order: make([]string, 0),
		byID:  make(map[string]Message),
	}
}

// Upsert inserts msg if its id is unknown, otherwise replaces the stored
// message in place.
func (t *Transcript) Upsert(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[msg.ID]; !exists {
		t.order = append(t.order, msg.ID)
	}
	t.byID[msg.ID] = msg
}

// Remove deletes the message with the given id, if present.
func (t *Transcript) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[id]; !exists {
		return
	}
	delete(t.byID, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Get returns the message with the given id.
func (t *Transcript) Get(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	msg, exists := t.byID[id]
	return msg, exists
}

// Messages returns the transcript in order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	msgs := make([]Message, 0, len(t.order))
	for _, id := range t.order {
		msgs = append(msgs, t.byID[id])
	}
	return msgs
}

// Len returns the number of messages in the transcript.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.order) == 0 {
		return Message{}, false
	}
	return t.byID[t.order[len(t.order)-1]], true
}

// LastUserMessage returns the most recent user message.
func (t *Transcript) LastUserMessage() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.order) - 1; i >= 0; i-- {
		if msg := t.byID[t.order[i]]; msg.IsUser() {
			return msg, true
		}
	}
	return Message{}, false
}
