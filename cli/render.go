package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	parentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	replyStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("241")).
			PaddingLeft(1)
	editedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// Renderer prints thread messages as they arrive. Edits are printed again in
// full, marked as edited, since a terminal cannot rewrite earlier output.
type Renderer struct {
	out io.Writer

	mu      sync.Mutex
	replies map[string]bool
}

// NewRenderer returns a renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, replies: make(map[string]bool)}
}

// Handle renders one server message.
func (r *Renderer) Handle(data []byte) error {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch base.Type {
	case TypeThreadPost:
		var msg ThreadMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		// Top-level messages are posted into the channel itself.
		reply := msg.ThreadID != "" && msg.ThreadID != msg.Channel
		r.replies[msg.MessageID] = reply
		fmt.Fprintln(r.out, r.render(reply, msg.Text))

	case TypeThreadUpdate:
		var msg ThreadMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		fmt.Fprintln(r.out, editedStyle.Render("(edited)"))
		fmt.Fprintln(r.out, r.render(r.replies[msg.MessageID], msg.Text))

	case TypeResearchDone:
		var msg ResearchDoneMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		fmt.Fprintln(r.out, doneLine(msg))

	case TypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		fmt.Fprintln(r.out, failureStyle.Render(fmt.Sprintf("error [%s]: %s", msg.Code, msg.Message)))
	}
	return nil
}

func (r *Renderer) render(reply bool, text string) string {
	text = strings.TrimRight(text, "\n")
	if reply {
		return replyStyle.Render(text)
	}
	return parentStyle.Render(text)
}

func doneLine(msg ResearchDoneMessage) string {
	switch msg.Status {
	case "COMPLETE":
		return successStyle.Render(fmt.Sprintf("[%s] complete", msg.RequestID))
	case "CANCELLED":
		return warnStyle.Render(fmt.Sprintf("[%s] cancelled", msg.RequestID))
	}
	return failureStyle.Render(fmt.Sprintf("[%s] failed: %s", msg.RequestID, msg.Error))
}
