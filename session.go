package grokchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/grokchat/client"
)

// State is the state of a Session.
type State int

const (
	Running State = iota
	// Terminated is final; a terminated session ignores further input.
	Terminated
)

func (s State) String() string {
	if s == Terminated {
		return "terminated"
	}
	return "running"
}

// Recorder receives every message appended to a conversation.
type Recorder interface {
	Record(convID string, msg client.ChatMsg) error
}

// SessionConfig holds the collaborators of a Session.  Client and
// Model are required.
type SessionConfig struct {
	// Name is shown in the banner.
	Name   string
	Client client.ChatClient
	Model  string
	// Sysmsg defaults to DefaultSysmsg.
	Sysmsg string
	// Renderer defaults to PlainRenderer.
	Renderer Renderer
	Stdout   io.Writer
	Stderr   io.Writer
	// Recorder is optional.
	Recorder Recorder
}

// Session is an interactive chat: it reads lines, handles the exit,
// quit, model and clear commands, and sends everything else to the
// completion service together with the conversation so far.
type Session struct {
	name     string
	model    string
	conv     *Conversation
	client   client.ChatClient
	renderer Renderer
	stdout   io.Writer
	stderr   io.Writer
	recorder Recorder
	models   *Models
	state    State
}

// NewSession creates a session holding a conversation that contains
// only the system message.
func NewSession(config SessionConfig) (s *Session, err error) {
	if config.Client == nil {
		err = errors.New("session needs a chat client")
		return
	}
	if config.Model == "" {
		err = errors.New("session needs a model")
		return
	}
	s = &Session{
		name:     config.Name,
		model:    config.Model,
		client:   config.Client,
		renderer: config.Renderer,
		stdout:   config.Stdout,
		stderr:   config.Stderr,
		recorder: config.Recorder,
		models:   NewModels(),
	}
	if s.name == "" {
		s.name = "grokchat"
	}
	if s.renderer == nil {
		s.renderer = PlainRenderer{}
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	sysmsg := config.Sysmsg
	if sysmsg == "" {
		sysmsg = DefaultSysmsg
	}
	s.conv = NewConversation(sysmsg)
	s.record(s.conv.Last())
	return
}

// Model returns the model used for the next request.
func (s *Session) Model() string {
	return s.model
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []client.ChatMsg {
	return s.conv.Messages()
}

// ConversationID returns the id of the current conversation.
func (s *Session) ConversationID() string {
	return s.conv.ID
}

// State returns the session state.
func (s *Session) State() State {
	return s.state
}

// Start prints the banner and, if initialPrompt is not empty, sends it
// as the first user turn.  The initial prompt is never treated as a
// command.
func (s *Session) Start(ctx context.Context, initialPrompt string) State {
	Fpf(s.stdout, "%s (Model: %s)\n", s.name, s.model)
	Fpf(s.stdout, "Type 'exit' or 'quit' to end the session\n")
	Fpf(s.stdout, "Type 'model <model_name>' to change the model\n")
	Fpf(s.stdout, "Type 'clear' to clear conversation history\n")
	Fpf(s.stdout, "%s\n", strings.Repeat("-", 50))
	if initialPrompt != "" {
		Fpf(s.stdout, "\nYou: %s\n", initialPrompt)
		s.turn(ctx, initialPrompt)
	}
	return s.state
}

// Run reads and processes lines until the user exits, input ends, or
// the user interrupts.  All three end the session normally; only a
// failure to read input is returned as an error.
func (s *Session) Run(ctx context.Context, r LineReader) (err error) {
	for s.state == Running {
		Fpf(s.stdout, "\n")
		var line string
		line, err = r.ReadLine(ctx, "You: ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupted) || ctx.Err() != nil {
				s.terminate("\nGoodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		s.ProcessLine(ctx, line)
	}
	return nil
}

// ProcessLine handles one line of input and returns the resulting
// state.
func (s *Session) ProcessLine(ctx context.Context, line string) State {
	if s.state == Terminated {
		return s.state
	}
	switch {
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		s.terminate("Goodbye!")
	case hasPrefixFold(line, "model "):
		s.setModel(strings.TrimSpace(line[len("model "):]))
	case strings.EqualFold(line, "clear"):
		s.conv.Reset()
		s.record(s.conv.Last())
		Fpf(s.stdout, "Conversation history cleared.\n")
	default:
		s.turn(ctx, line)
	}
	return s.state
}

// turn sends content as a user message and appends the reply.  A
// failed request leaves the user message in the history without a
// reply.
func (s *Session) turn(ctx context.Context, content string) State {
	s.record(s.conv.Append(client.RoleUser, content))
	s.checkTokens()

	Fpf(s.stdout, "\nAssistant:\n")
	res, err := s.client.CompleteChat(ctx, s.model, s.conv.Messages())
	if err != nil {
		if ctx.Err() != nil {
			s.terminate("\nGoodbye!")
			return s.state
		}
		Debug("completion failed: kind=%v", client.KindOf(err))
		Fpf(s.stdout, "Error: %v\n", err)
		return s.state
	}
	s.record(s.conv.Append(client.RoleAssistant, res.Body))
	s.render(res.Body)
	return s.state
}

func (s *Session) render(text string) {
	out, err := s.renderer.Render(text)
	if err != nil {
		Debug("render failed: %v", err)
		out, _ = PlainRenderer{}.Render(text)
	}
	Fpf(s.stdout, "%s", out)
}

func (s *Session) setModel(model string) {
	if model == "" {
		Fpf(s.stdout, "Usage: model <model_name> (current model: %s)\n", s.model)
		return
	}
	s.model = model
	Fpf(s.stdout, "Model changed to: %s\n", s.model)
	if _, ok := s.models.FindModel(model); !ok {
		Fpf(s.stdout, "Note: %s is not a known model; its context limit is unknown.\n", model)
	}
}

// checkTokens warns when the conversation no longer fits the
// model's context.  The request is sent regardless.
func (s *Session) checkTokens() {
	count, err := s.conv.TokenCount()
	if err != nil {
		Debug("token count failed: %v", err)
		return
	}
	Debug("sending %d tokens to %s", count, s.model)
	m, ok := s.models.FindModel(s.model)
	if ok && count > m.TokenLimit {
		Fpf(s.stderr, "warning: conversation is %d tokens but %s accepts %d\n", count, s.model, m.TokenLimit)
	}
}

func (s *Session) record(msg client.ChatMsg) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Record(s.conv.ID, msg)
	if err != nil {
		Fpf(s.stderr, "warning: transcript: %v\n", err)
	}
}

func (s *Session) terminate(farewell string) {
	if s.state == Terminated {
		return
	}
	Fpf(s.stdout, "%s\n", farewell)
	s.state = Terminated
}
