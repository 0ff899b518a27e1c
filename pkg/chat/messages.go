package chat

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single entry in a conversation. Assistant messages carry the
// retrieval sources and follow-up suggestions delivered alongside the answer.
type Message struct {
	ID          string             `json:"id"`
	Role        string             `json:"role"`
	Content     string             `json:"content"`
	IsFormatted bool               `json:"is_formatted,omitempty"`
	Sources     []Source           `json:"sources,omitempty"`
	FollowUps   []FollowUpQuestion `json:"follow_ups,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Source is a quoted passage the backend retrieved while answering, with the
// title/URL/label it came from. Order as received is preserved.
type Source struct {
	Content   string `json:"content"`
	Reference string `json:"reference"`
}

// FollowUpQuestion is a server-suggested next question offered after an
// answer completes.
type FollowUpQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Category string `json:"category,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   strings.TrimSpace(content),
		Timestamp: time.Now(),
	}
}

func NewAssistantMessage(content string) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Content:     content,
		IsFormatted: DetectFormatted(content),
		Timestamp:   time.Now(),
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// SynthesizeFollowUpID builds a follow-up id that is unique within a message
// when the server does not supply one.
func SynthesizeFollowUpID(messageID string, index int) string {
	return fmt.Sprintf("%s-fu-%d", messageID, index)
}

// markdownPattern is a cheap likelihood test, not a parser. It only gates
// which renderer handles the message downstream.
var markdownPattern = regexp.MustCompile("(?m)" +
	"```" + // fenced code block
	`|^#{1,6}\s` + // heading
	`|\*\*[^*\n]+\*\*` + // bold
	`|^\s*[-*+]\s` + // bullet list
	`|^\s*\d+\.\s`) // numbered list

// DetectFormatted reports whether content looks like markdown.
func DetectFormatted(content string) bool {
	return markdownPattern.MatchString(content)
}

// SanitizeContent fixes any invalid UTF-8 left over from chunk boundaries and
// trims trailing whitespace that accumulates during streaming.
func SanitizeContent(content string) string {
	sanitized := strings.ToValidUTF8(content, "")
	return strings.TrimRight(sanitized, " \t\r\n")
}
