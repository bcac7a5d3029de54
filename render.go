package grokchat

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	. "github.com/stevegt/goadapt"
	"golang.org/x/term"
)

// Renderer turns a reply into the text written to the terminal.
type Renderer interface {
	Render(text string) (string, error)
}

// PlainRenderer writes replies as-is.
type PlainRenderer struct{}

// Render returns text with a trailing newline.
func (PlainRenderer) Render(text string) (string, error) {
	if strings.HasSuffix(text, "\n") {
		return text, nil
	}
	return text + "\n", nil
}

// defaultWrap is the word wrap width used when the terminal size is
// unknown.
const defaultWrap = 80

// NewRenderer returns a glamour markdown renderer for w.  Terminals
// get an automatically chosen color style wrapped to the terminal
// width; anything else gets the plain "notty" style.
func NewRenderer(w io.Writer) (r Renderer, err error) {
	defer Return(&err)
	wrap := defaultWrap
	style := glamour.WithStandardStyle("notty")
	if fd, ok := terminalFd(w); ok {
		style = glamour.WithAutoStyle()
		width, _, err := term.GetSize(fd)
		if err == nil && width > 0 {
			wrap = width
		}
	}
	tr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	Ck(err)
	r = tr
	return
}
