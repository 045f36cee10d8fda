// Package oracle talks to the text-generation service that proposes builds.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to the oracle.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Oracle returns the text of one completion. Any error it returns means no
// response was obtained. A response without text is returned as "" with a nil
// error so the caller treats it as a formatting failure.
type Oracle interface {
	Complete(ctx context.Context, system string, conversation []Message) (string, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, system string, conversation []Message) (string, error)

func (f Func) Complete(ctx context.Context, system string, conversation []Message) (string, error) {
	return f(ctx, system, conversation)
}

// TransportError reports a failed oracle round-trip: network, auth, rate
// limiting or deadline.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the round-trip was cut short by a deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// AsTransportError wraps err unless it already is a *TransportError.
func AsTransportError(provider string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Provider: provider, Err: err}
}

// ExtractJSONObject pulls a single JSON object out of a reply that may wrap
// it in a ```json fence or surrounding prose.
func ExtractJSONObject(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	if s == "" {
		return "", false
	}

	if start := strings.Index(s, "```"); start >= 0 {
		rest := s[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			// Drop the info string, e.g. "json".
			if !strings.Contains(rest[:nl], "{") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	open := strings.IndexByte(s, '{')
	close := strings.LastIndexByte(s, '}')
	if open < 0 || close < open {
		return "", false
	}
	return s[open : close+1], true
}
