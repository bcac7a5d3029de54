package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/grokchat/client"
)

// MaxTokens caps the length of every reply.
const MaxTokens = 1000

// ChatClient implements the client.ChatClient interface for OpenAI.
type ChatClient struct {
	client    *gptLib.Client
	baseURL   string
	maxTokens int
}

// Option configures a ChatClient.
type Option func(*ChatClient)

// WithBaseURL points the client at an OpenAI-compatible endpoint
// other than api.openai.com.  An empty url is ignored.
func WithBaseURL(url string) Option {
	return func(oc *ChatClient) {
		oc.baseURL = url
	}
}

// WithMaxTokens overrides MaxTokens.
func WithMaxTokens(n int) Option {
	return func(oc *ChatClient) {
		oc.maxTokens = n
	}
}

// NewChatClient creates a new ChatClient instance.
func NewChatClient(apiKey string, opts ...Option) *ChatClient {
	oc := &ChatClient{maxTokens: MaxTokens}
	for _, opt := range opts {
		opt(oc)
	}
	config := gptLib.DefaultConfig(apiKey)
	if oc.baseURL != "" {
		config.BaseURL = oc.baseURL
	}
	oc.client = gptLib.NewClientWithConfig(config)
	return oc
}

// CompleteChat sends a chat request to the OpenAI API and returns the
// response.  It converts client.ChatMsg messages into OpenAI's
// ChatCompletionMessage format.  Failures are returned as
// *client.Error.
func (oc *ChatClient) CompleteChat(ctx context.Context, model string, messages []client.ChatMsg) (res client.Results, err error) {
	var omsgs []gptLib.ChatCompletionMessage
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case client.RoleSystem:
			role = gptLib.ChatMessageRoleSystem
		case client.RoleAssistant:
			role = gptLib.ChatMessageRoleAssistant
		default:
			role = gptLib.ChatMessageRoleUser
		}
		omsgs = append(omsgs, gptLib.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	req := gptLib.ChatCompletionRequest{
		Model:     model,
		Messages:  omsgs,
		MaxTokens: oc.maxTokens,
	}
	Debug("chat model: %s messages: %d max tokens: %d", model, len(omsgs), oc.maxTokens)
	resp, err := oc.client.CreateChatCompletion(ctx, req)
	if err != nil {
		err = classify(err)
		return
	}
	if len(resp.Choices) == 0 {
		err = &client.Error{Kind: client.KindEmpty}
		return
	}
	Debug("total tokens: %d", resp.Usage.TotalTokens)
	res.Body = strings.TrimSpace(resp.Choices[0].Message.Content)
	return
}

// classify wraps an error from go-openai in a *client.Error.
func classify(err error) error {
	kind := client.KindNetwork
	var apiErr *gptLib.APIError
	var reqErr *gptLib.RequestError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = client.KindCanceled
	case errors.As(err, &apiErr):
		kind = kindForStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		kind = kindForStatus(reqErr.HTTPStatusCode)
	}
	return &client.Error{Kind: kind, Err: err}
}

func kindForStatus(code int) client.Kind {
	switch code {
	case http.StatusTooManyRequests:
		return client.KindRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return client.KindAuth
	}
	return client.KindAPI
}

// Assert that ChatClient implements client.ChatClient.
var _ client.ChatClient = (*ChatClient)(nil)
