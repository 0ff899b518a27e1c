package render

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/panic80/cb-sub000/pkg/chat"
)

// Renderer turns chat messages into styled terminal output.
type Renderer struct {
	userLabelStyle      lipgloss.Style
	assistantLabelStyle lipgloss.Style
	sourceStyle         lipgloss.Style
	sourceRefStyle      lipgloss.Style
	followUpStyle       lipgloss.Style

	chromaFormatter chroma.Formatter
}

// New creates a renderer with terminal-friendly styling.
func New() *Renderer {
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	return &Renderer{
		userLabelStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB")),

		assistantLabelStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98")),

		sourceStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true).
			MarginLeft(2),

		sourceRefStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB000")),

		followUpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			MarginLeft(2),

		chromaFormatter: formatter,
	}
}

// Label renders the speaker label for a message.
func (r *Renderer) Label(msg chat.Message) string {
	if msg.IsUser() {
		return r.userLabelStyle.Render("you")
	}
	return r.assistantLabelStyle.Render("assistant")
}

// Message renders a finalized message body. Formatted messages get their
// fenced code blocks syntax highlighted; everything else passes through
// untouched so streaming output and final output agree.
func (r *Renderer) Message(msg chat.Message) string {
	if !msg.IsFormatted {
		return msg.Content
	}
	return r.highlightFences(msg.Content)
}

// Sources renders the retrieval passages attached to a message, in the
// order the server sent them.
func (r *Renderer) Sources(msg chat.Message) string {
	if len(msg.Sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, src := range msg.Sources {
		ref := r.sourceRefStyle.Render(src.Reference)
		b.WriteString(r.sourceStyle.Render(fmt.Sprintf("[%d] %q (%s)", i+1, src.Content, ref)))
		b.WriteString("\n")
	}
	return b.String()
}

// FollowUps renders the suggested next questions.
func (r *Renderer) FollowUps(msg chat.Message) string {
	if len(msg.FollowUps) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, fu := range msg.FollowUps {
		line := "• " + fu.Question
		if fu.Category != "" {
			line += " (" + fu.Category + ")"
		}
		b.WriteString(r.followUpStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// highlightFences walks the content line by line, passing fenced code block
// bodies through chroma and everything else through unchanged.
func (r *Renderer) highlightFences(content string) string {
	var out strings.Builder
	var code strings.Builder
	var language string
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				out.WriteString(r.highlightCode(code.String(), language))
				code.Reset()
				inFence = false
			} else {
				language = strings.TrimPrefix(trimmed, "```")
				inFence = true
			}
			continue
		}

		if inFence {
			code.WriteString(line)
			code.WriteString("\n")
		} else {
			out.WriteString(line)
			out.WriteString("\n")
		}
	}

	// An unclosed fence renders as-is rather than disappearing.
	if inFence {
		out.WriteString("```" + language + "\n")
		out.WriteString(code.String())
	}

	return strings.TrimSuffix(out.String(), "\n")
}

func (r *Renderer) highlightCode(code, language string) string {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := r.chromaFormatter.Format(&buf, styles.Get("monokai"), iterator); err != nil {
		return code
	}
	return buf.String()
}
