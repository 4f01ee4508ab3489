package agent

import (
	"context"
	"fmt"
	"strings"
)

// Agent is the capability this router adapts to HTTP endpoints: a single
// streaming query operation. Implementations push response fragments to out
// in emission order and return once the stream is fully drained or fails.
// The stream is one-pass; the router consumes it exactly once.
type Agent interface {
	StreamQuery(ctx context.Context, q Query, out chan<- Fragment) error
}

// Query carries one inbound message into an Agent.
type Query struct {
	Message   string
	UserID    string
	SessionID string
	History   []Message         // recent conversation turns, oldest first
	Extra     map[string]string // channel-specific context (channel id, thread ts, ...)
}

// Message is a single conversation turn kept by the session manager.
type Message struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}

// Fragment is one unit of a streamed agent response: plain text, or a
// structured chunk whose text lives under Content.
type Fragment struct {
	Text    string   `json:"text,omitempty"`
	Content *Content `json:"content,omitempty"`
}

// Content is the structured form of a fragment. When Parts is non-empty the
// first part's text is the fragment text, otherwise the flat Text field is.
type Content struct {
	Text  string `json:"text,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part is one element of a structured fragment.
type Part struct {
	Text string `json:"text"`
}

// Flatten returns the fragment's text contribution.
func (f Fragment) Flatten() string {
	if f.Content != nil {
		if len(f.Content.Parts) > 0 {
			return f.Content.Parts[0].Text
		}
		return f.Content.Text
	}
	return f.Text
}

// Collect drains a one-pass fragment stream into the concatenated response
// text, preserving emission order. A streaming error discards partial text.
// A panicking agent is recovered into an error so the drain never hangs.
func Collect(ctx context.Context, a Agent, q Query) (string, error) {
	out := make(chan Fragment, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("agent panic: %v", r)
			}
		}()
		errCh <- a.StreamQuery(ctx, q, out)
	}()

	var b strings.Builder
	for f := range out {
		b.WriteString(f.Flatten())
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return b.String(), nil
}
