package client

import (
	"context"
	"errors"
	"fmt"
)

// ChatClient defines the interface for chat operations.
// Implementations of ChatClient (such as openai.ChatClient and
// mock.Client) send the complete message history, system message
// first, and return the generated reply.
type ChatClient interface {
	CompleteChat(ctx context.Context, model string, messages []ChatMsg) (Results, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMsg represents a single chat message.
type ChatMsg struct {
	Role    string
	Content string
}

// Results is what a provider returns for a successful completion.
type Results struct {
	Body string
}

// Kind classifies a completion failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAPI
	KindAuth
	KindRateLimit
	KindEmpty
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindAPI:
		return "API error"
	case KindAuth:
		return "authentication failed"
	case KindRateLimit:
		return "rate limited"
	case KindEmpty:
		return "empty response"
	case KindCanceled:
		return "canceled"
	}
	return "error"
}

// Error is returned by ChatClient implementations when a completion
// request fails.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err did not come
// from a ChatClient.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}
