package grokchat

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/peterh/liner"
	. "github.com/stevegt/goadapt"
)

// ErrInterrupted is returned by a LineReader when the user pressed
// Ctrl-C at the prompt or the context was canceled.
var ErrInterrupted = errors.New("interrupted")

// LineReader reads one line of user input at a time.  ReadLine
// returns io.EOF at the end of input.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
	Close() error
}

// terminalReader reads from the controlling terminal with line
// editing and in-memory input history.
type terminalReader struct {
	line *liner.State
}

// NewTerminalReader returns a LineReader for an interactive terminal
// on stdin.
func NewTerminalReader() LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &terminalReader{line: line}
}

func (r *terminalReader) ReadLine(ctx context.Context, prompt string) (input string, err error) {
	if ctx.Err() != nil {
		return "", ErrInterrupted
	}
	input, err = r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return
}

func (r *terminalReader) Close() error {
	return r.line.Close()
}

type lineResult struct {
	line string
	err  error
}

// streamReader reads lines from a pipe, file or buffer.  Lines are
// scanned in a separate goroutine so that a pending read can be
// abandoned when ctx is canceled.
type streamReader struct {
	out   io.Writer
	lines chan lineResult
	done  chan struct{}
}

// NewStreamReader returns a LineReader that reads lines from in and
// writes prompts to out.
func NewStreamReader(in io.Reader, out io.Writer) LineReader {
	r := &streamReader{
		out:   out,
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}
	go r.scan(in)
	return r
}

func (r *streamReader) scan(in io.Reader) {
	defer close(r.lines)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case r.lines <- lineResult{line: strings.TrimSuffix(scanner.Text(), "\r")}:
		case <-r.done:
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case r.lines <- lineResult{err: err}:
	case <-r.done:
	}
}

func (r *streamReader) ReadLine(ctx context.Context, prompt string) (line string, err error) {
	Fpf(r.out, "%s", prompt)
	select {
	case <-ctx.Done():
		return "", ErrInterrupted
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (r *streamReader) Close() error {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	return nil
}
