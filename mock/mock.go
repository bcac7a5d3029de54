package mock

import (
	"context"

	"github.com/stevegt/grokchat/client"
)

// Reply is one scripted completion: either a body or an error.
type Reply struct {
	Body string
	Err  error
}

// Request is a completion request as seen by the mock.
type Request struct {
	Model    string
	Messages []client.ChatMsg
}

// Client is a mock LLM provider for testing.
// It implements the ChatClient interface.  Queued replies are returned
// first, in order; once the queue is empty the response configured for
// the model with SetResponse is returned.
type Client struct {
	Responses map[string]string // model name -> response
	Queue     []Reply
	Requests  []Request
}

// NewClient creates a new mock client.
func NewClient() *Client {
	return &Client{
		Responses: make(map[string]string),
	}
}

// SetResponse sets the response for a given model name.
func (c *Client) SetResponse(model, response string) {
	c.Responses[model] = response
}

// Reply queues a successful completion.
func (c *Client) Reply(body string) *Client {
	c.Queue = append(c.Queue, Reply{Body: body})
	return c
}

// Fail queues a failed completion.
func (c *Client) Fail(err error) *Client {
	c.Queue = append(c.Queue, Reply{Err: err})
	return c
}

// CompleteChat records the request and returns the next scripted
// reply.  If nothing is queued and no response has been configured for
// the model, it returns a default response.
func (c *Client) CompleteChat(ctx context.Context, model string, msgs []client.ChatMsg) (res client.Results, err error) {
	c.Requests = append(c.Requests, Request{
		Model:    model,
		Messages: append([]client.ChatMsg(nil), msgs...),
	})
	if err = ctx.Err(); err != nil {
		err = &client.Error{Kind: client.KindCanceled, Err: err}
		return
	}
	if len(c.Queue) > 0 {
		next := c.Queue[0]
		c.Queue = c.Queue[1:]
		if next.Err != nil {
			err = next.Err
			return
		}
		res.Body = next.Body
		return
	}
	response, ok := c.Responses[model]
	if !ok {
		response = "default mock response"
	}
	res.Body = response
	return
}

var _ client.ChatClient = (*Client)(nil)
