package grokchat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/grokchat/client"
	"github.com/stevegt/grokchat/mock"
)

var sysmsg = client.ChatMsg{Role: client.RoleSystem, Content: DefaultSysmsg}

// newTestSession returns a session on a mock client with its output
// captured.
func newTestSession(t *testing.T, model string) (s *Session, mc *mock.Client, stdout *bytes.Buffer) {
	mc = mock.NewClient()
	stdout = &bytes.Buffer{}
	s, err := NewSession(SessionConfig{
		Client: mc,
		Model:  model,
		Stdout: stdout,
		Stderr: io.Discard,
	})
	Tassert(t, err == nil, "error creating session: %v", err)
	return
}

func msgsEqual(a, b []client.ChatMsg) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewSessionRequires(t *testing.T) {
	_, err := NewSession(SessionConfig{Model: "m1"})
	Tassert(t, err != nil, "expected an error without a client")
	_, err = NewSession(SessionConfig{Client: mock.NewClient()})
	Tassert(t, err != nil, "expected an error without a model")
}

func TestHello(t *testing.T) {
	ctx := context.Background()
	s, mc, stdout := newTestSession(t, "m1")
	mc.Reply("Hi there")

	state := s.Start(ctx, "")
	Tassert(t, state == Running, "expected running, got %v", state)
	Tassert(t, len(mc.Requests) == 0, "Start without a prompt sent a request")

	state = s.ProcessLine(ctx, "hello")
	Tassert(t, state == Running, "expected running, got %v", state)
	want := []client.ChatMsg{
		sysmsg,
		{Role: client.RoleUser, Content: "hello"},
		{Role: client.RoleAssistant, Content: "Hi there"},
	}
	Tassert(t, msgsEqual(s.Messages(), want), "unexpected history: %v", s.Messages())
	Tassert(t, strings.Contains(stdout.String(), "Hi there"), "reply not rendered: %q", stdout.String())

	// the request carried the full history and the current model
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	req := mc.Requests[0]
	Tassert(t, req.Model == "m1", "request used model %q", req.Model)
	Tassert(t, msgsEqual(req.Messages, want[:2]), "unexpected request messages: %v", req.Messages)
}

func TestModelCommand(t *testing.T) {
	ctx := context.Background()
	s, mc, stdout := newTestSession(t, "m1")
	mc.Reply("Hi there")
	s.ProcessLine(ctx, "hello")
	before := s.Messages()

	s.ProcessLine(ctx, "model m2")
	Tassert(t, s.Model() == "m2", "expected model m2, got %q", s.Model())
	Tassert(t, msgsEqual(s.Messages(), before), "model command changed the history")
	Tassert(t, strings.Contains(stdout.String(), "Model changed to: m2"), "no confirmation: %q", stdout.String())

	// case-insensitive, remainder trimmed
	s.ProcessLine(ctx, "MODEL   gpt-4o  ")
	Tassert(t, s.Model() == "gpt-4o", "expected model gpt-4o, got %q", s.Model())

	// an empty remainder leaves the model alone
	s.ProcessLine(ctx, "model   ")
	Tassert(t, s.Model() == "gpt-4o", "expected model gpt-4o, got %q", s.Model())
	Tassert(t, msgsEqual(s.Messages(), before), "model command changed the history")

	// the next request uses the new model
	s.ProcessLine(ctx, "again")
	Tassert(t, mc.Requests[len(mc.Requests)-1].Model == "gpt-4o", "request used model %q", mc.Requests[len(mc.Requests)-1].Model)
}

func TestFailedCompletion(t *testing.T) {
	ctx := context.Background()
	s, mc, stdout := newTestSession(t, "m1")
	mc.Reply("Hi there")
	mc.Fail(&client.Error{Kind: client.KindRateLimit, Err: errors.New("slow down")})

	s.ProcessLine(ctx, "hello")
	state := s.ProcessLine(ctx, "fail this")
	Tassert(t, state == Running, "a failed completion should not end the session")
	msgs := s.Messages()
	Tassert(t, len(msgs) == 4, "expected 4 messages, got %d", len(msgs))
	Tassert(t, msgs[3] == client.ChatMsg{Role: client.RoleUser, Content: "fail this"}, "unexpected last message %+v", msgs[3])
	Tassert(t, strings.Contains(stdout.String(), "Error: rate limited: slow down"), "no error line: %q", stdout.String())

	// the dangling user message is sent again with the next turn
	mc.Reply("ok")
	s.ProcessLine(ctx, "try again")
	req := mc.Requests[len(mc.Requests)-1]
	Tassert(t, len(req.Messages) == 5, "expected 5 messages in request, got %d", len(req.Messages))
	Tassert(t, req.Messages[3].Content == "fail this", "dangling message not replayed: %v", req.Messages)
}

func TestTurnCounts(t *testing.T) {
	ctx := context.Background()
	for _, failEvery := range []int{0, 1, 2, 3} {
		s, mc, _ := newTestSession(t, "m1")
		n, k := 7, 0
		for i := 0; i < n; i++ {
			if failEvery > 0 && i%failEvery == 0 {
				mc.Fail(errors.New("boom"))
				k++
			} else {
				mc.Reply(fmt.Sprintf("reply %d", i))
			}
		}
		for i := 0; i < n; i++ {
			line := fmt.Sprintf("line %d", i)
			if i%3 == 1 {
				line = strings.Repeat(" ", i%2)
			}
			s.ProcessLine(ctx, line)
		}
		want := 1 + n + (n - k)
		Tassert(t, len(s.Messages()) == want, "failEvery %d: expected %d messages, got %d", failEvery, want, len(s.Messages()))
		Tassert(t, s.Messages()[0] == sysmsg, "first message is not the system message")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, _, stdout := newTestSession(t, "m1")
	for i := 0; i < 5; i++ {
		s.ProcessLine(ctx, fmt.Sprintf("line %d", i))
	}
	Tassert(t, len(s.Messages()) == 11, "expected 11 messages, got %d", len(s.Messages()))
	id := s.ConversationID()

	s.ProcessLine(ctx, "CLEAR")
	Tassert(t, msgsEqual(s.Messages(), []client.ChatMsg{sysmsg}), "unexpected history after clear: %v", s.Messages())
	Tassert(t, s.ConversationID() != id, "clear should start a new conversation")
	Tassert(t, strings.Contains(stdout.String(), "Conversation history cleared."), "no confirmation: %q", stdout.String())

	// clearing an empty conversation is harmless
	s.ProcessLine(ctx, "clear")
	Tassert(t, msgsEqual(s.Messages(), []client.ChatMsg{sysmsg}), "unexpected history after clear: %v", s.Messages())
}

func TestExit(t *testing.T) {
	ctx := context.Background()
	for _, line := range []string{"exit", "quit", "EXIT", "Quit"} {
		s, mc, stdout := newTestSession(t, "m1")
		state := s.ProcessLine(ctx, line)
		Tassert(t, state == Terminated, "%q: expected terminated, got %v", line, state)
		Tassert(t, strings.Contains(stdout.String(), "Goodbye!"), "%q: no farewell", line)
		Tassert(t, len(mc.Requests) == 0, "%q: sent a request", line)

		// terminated is absorbing
		state = s.ProcessLine(ctx, "hello")
		Tassert(t, state == Terminated, "%q: expected terminated, got %v", line, state)
		Tassert(t, len(mc.Requests) == 0, "%q: terminated session sent a request", line)
		Tassert(t, len(s.Messages()) == 1, "%q: terminated session changed the history", line)
	}

	// partial matches are ordinary turns
	for _, line := range []string{"exit now", " exit", "quit ", "exited", "modelx"} {
		s, mc, _ := newTestSession(t, "m1")
		state := s.ProcessLine(ctx, line)
		Tassert(t, state == Running, "%q: expected running, got %v", line, state)
		Tassert(t, len(mc.Requests) == 1, "%q: expected a request", line)
		Tassert(t, s.Messages()[1].Content == line, "%q: unexpected user message %+v", line, s.Messages()[1])
	}
}

func TestBlankLine(t *testing.T) {
	ctx := context.Background()
	s, mc, _ := newTestSession(t, "m1")
	mc.Reply("Hi there")
	s.ProcessLine(ctx, "")
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	want := []client.ChatMsg{
		sysmsg,
		{Role: client.RoleUser, Content: ""},
		{Role: client.RoleAssistant, Content: "Hi there"},
	}
	Tassert(t, msgsEqual(s.Messages(), want), "unexpected history: %v", s.Messages())

	// whitespace is sent as-is
	s.ProcessLine(ctx, "   ")
	Tassert(t, len(mc.Requests) == 2, "expected 2 requests, got %d", len(mc.Requests))
	Tassert(t, len(s.Messages()) == 5, "expected 5 messages, got %d", len(s.Messages()))
	Tassert(t, s.Messages()[3].Content == "   ", "unexpected user message %+v", s.Messages()[3])
}

func TestInitialPrompt(t *testing.T) {
	ctx := context.Background()
	s, mc, stdout := newTestSession(t, "m1")
	mc.Reply("General Kenobi")

	state := s.Start(ctx, "Hello there")
	Tassert(t, state == Running, "expected running, got %v", state)
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	want := []client.ChatMsg{
		sysmsg,
		{Role: client.RoleUser, Content: "Hello there"},
		{Role: client.RoleAssistant, Content: "General Kenobi"},
	}
	Tassert(t, msgsEqual(s.Messages(), want), "unexpected history: %v", s.Messages())
	out := stdout.String()
	Tassert(t, strings.Contains(out, "You: Hello there"), "prompt not echoed: %q", out)
	Tassert(t, strings.Index(out, "Type 'clear'") < strings.Index(out, "General Kenobi"), "banner should come first: %q", out)

	// the initial prompt is a turn, not a command
	s, mc, _ = newTestSession(t, "m1")
	state = s.Start(ctx, "exit")
	Tassert(t, state == Running, "initial prompt was treated as a command")
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))

	// only an empty initial prompt is skipped
	s, mc, _ = newTestSession(t, "m1")
	s.Start(ctx, "")
	Tassert(t, len(mc.Requests) == 0, "empty initial prompt sent a request")
	s.Start(ctx, " ")
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	Tassert(t, s.Messages()[1].Content == " ", "unexpected user message %+v", s.Messages()[1])
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	s, mc, stdout := newTestSession(t, "m1")
	mc.Reply("Hi there")
	mc.Reply("second")

	input := "hello\nmodel m2\nhow are you?\nquit\nnever read\n"
	r := NewStreamReader(strings.NewReader(input), stdout)
	defer r.Close()
	s.Start(ctx, "")
	err := s.Run(ctx, r)
	Tassert(t, err == nil, "unexpected error: %v", err)
	Tassert(t, s.State() == Terminated, "expected terminated, got %v", s.State())
	Tassert(t, len(mc.Requests) == 2, "expected 2 requests, got %d", len(mc.Requests))
	Tassert(t, mc.Requests[1].Model == "m2", "second request used model %q", mc.Requests[1].Model)
	Tassert(t, len(s.Messages()) == 5, "expected 5 messages, got %d", len(s.Messages()))
	Tassert(t, strings.Count(stdout.String(), "Goodbye!") == 1, "expected one farewell: %q", stdout.String())
}

func TestRunEOF(t *testing.T) {
	ctx := context.Background()
	s, _, stdout := newTestSession(t, "m1")
	r := NewStreamReader(strings.NewReader("hello\n"), stdout)
	defer r.Close()
	err := s.Run(ctx, r)
	Tassert(t, err == nil, "end of input should not be an error: %v", err)
	Tassert(t, s.State() == Terminated, "expected terminated, got %v", s.State())
	Tassert(t, strings.HasSuffix(stdout.String(), "\nGoodbye!\n"), "no farewell: %q", stdout.String())
	Tassert(t, len(s.Messages()) == 3, "expected 3 messages, got %d", len(s.Messages()))
}

// failingReader fails every read.
type failingReader struct{}

func (failingReader) ReadLine(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("device gone")
}

func (failingReader) Close() error { return nil }

func TestRunReadError(t *testing.T) {
	s, _, _ := newTestSession(t, "m1")
	err := s.Run(context.Background(), failingReader{})
	Tassert(t, err != nil && strings.Contains(err.Error(), "device gone"), "expected read error, got %v", err)
}

func TestInterruptDuringRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, mc, stdout := newTestSession(t, "m1")
	cancel()
	state := s.ProcessLine(ctx, "hello")
	Tassert(t, state == Terminated, "expected terminated, got %v", state)
	Tassert(t, len(mc.Requests) == 1, "expected 1 request, got %d", len(mc.Requests))
	Tassert(t, !strings.Contains(stdout.String(), "Error:"), "interrupt shown as an error: %q", stdout.String())
	Tassert(t, strings.Contains(stdout.String(), "Goodbye!"), "no farewell: %q", stdout.String())
}

// memRecorder keeps recorded messages per conversation.
type memRecorder struct {
	convs map[string][]client.ChatMsg
	fail  bool
}

func (r *memRecorder) Record(convID string, msg client.ChatMsg) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.convs[convID] = append(r.convs[convID], msg)
	return nil
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec := &memRecorder{convs: map[string][]client.ChatMsg{}}
	mc := mock.NewClient().Reply("Hi there")
	s, err := NewSession(SessionConfig{Client: mc, Model: "m1", Stdout: io.Discard, Stderr: io.Discard, Recorder: rec})
	Tassert(t, err == nil, "error creating session: %v", err)
	first := s.ConversationID()

	s.ProcessLine(ctx, "hello")
	s.ProcessLine(ctx, "clear")
	second := s.ConversationID()

	Tassert(t, len(rec.convs[first]) == 3, "expected 3 recorded messages, got %v", rec.convs[first])
	Tassert(t, msgsEqual(rec.convs[second], []client.ChatMsg{sysmsg}), "unexpected second conversation %v", rec.convs[second])

	// recording failures are reported but do not stop the session
	var stderr bytes.Buffer
	rec.fail = true
	s.stderr = &stderr
	state := s.ProcessLine(ctx, "hello again")
	Tassert(t, state == Running, "expected running, got %v", state)
	Tassert(t, strings.Contains(stderr.String(), "disk full"), "no warning: %q", stderr.String())
}
