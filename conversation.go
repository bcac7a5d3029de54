package grokchat

import (
	"github.com/google/uuid"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/grokchat/client"
)

// DefaultSysmsg is the system message every conversation starts with.
var DefaultSysmsg = "You are a concise assistant."

// Conversation is the ordered message history sent as context with
// every completion request.  The first message is always the system
// message; messages are only ever appended, or dropped all at once by
// Reset.
type Conversation struct {
	// ID identifies the conversation in a transcript.  It changes on
	// every Reset.
	ID     string
	sysmsg string
	msgs   []client.ChatMsg
}

// NewConversation returns a conversation holding only sysmsg.
func NewConversation(sysmsg string) (c *Conversation) {
	c = &Conversation{sysmsg: sysmsg}
	c.Reset()
	return
}

// Reset drops everything but the system message and assigns a new ID.
func (c *Conversation) Reset() {
	c.ID = uuid.NewString()
	c.msgs = []client.ChatMsg{{Role: client.RoleSystem, Content: c.sysmsg}}
}

// Append adds a message to the end of the conversation and returns it.
func (c *Conversation) Append(role, content string) (msg client.ChatMsg) {
	Assert(role != client.RoleSystem, "only the first message may be a system message")
	msg = client.ChatMsg{Role: role, Content: content}
	c.msgs = append(c.msgs, msg)
	return
}

// Messages returns a copy of the conversation's messages.
func (c *Conversation) Messages() []client.ChatMsg {
	return append([]client.ChatMsg(nil), c.msgs...)
}

// Len returns the number of messages, including the system message.
func (c *Conversation) Len() int {
	return len(c.msgs)
}

// Last returns the most recent message.
func (c *Conversation) Last() client.ChatMsg {
	return c.msgs[len(c.msgs)-1]
}

// TokenCount returns the number of tokens in all message contents.
func (c *Conversation) TokenCount() (count int, err error) {
	defer Return(&err)
	for _, msg := range c.msgs {
		tc, err := TokenCount(msg.Content)
		Ck(err)
		count += tc
	}
	return
}
