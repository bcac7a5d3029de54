package grokchat

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
)

func TestPlainRenderer(t *testing.T) {
	out, err := PlainRenderer{}.Render("Hi there")
	Tassert(t, err == nil && out == "Hi there\n", "got %q err %v", out, err)
	out, err = PlainRenderer{}.Render("Hi there\n")
	Tassert(t, err == nil && out == "Hi there\n", "got %q err %v", out, err)
}

func TestMarkdownRenderer(t *testing.T) {
	// a buffer is not a terminal, so this gets the notty style
	var buf bytes.Buffer
	r, err := NewRenderer(&buf)
	Tassert(t, err == nil, "error creating renderer: %v", err)
	out, err := r.Render("# Greeting\n\nHi there\n\n- one\n- two\n")
	Tassert(t, err == nil, "error rendering: %v", err)
	for _, want := range []string{"Greeting", "Hi there", "one", "two"} {
		Tassert(t, strings.Contains(out, want), "%q missing from %q", want, out)
	}
	Tassert(t, !strings.Contains(out, "\x1b["), "notty output contains escape codes: %q", out)
}
