package grokchat

import (
	"fmt"
	"sort"
	"sync"

	oai "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultModel is used when no model is given on the command line.
var DefaultModel = oai.GPT4o

// Model is a type for model name and characteristics
type Model struct {
	Name       string
	TokenLimit int
}

func (m *Model) String() string {
	return fmt.Sprintf("%-20s tokens: %d", m.Name, m.TokenLimit)
}

// Models is a type that manages the set of known models.  Models not
// in the list can still be used; their context limit is unknown.
type Models struct {
	Available map[string]*Model
}

// NewModels creates a new Models object.
func NewModels() (models *Models) {
	models = &Models{}
	models.Available = make(map[string]*Model)
	add := func(name string, tokenLimit int) {
		models.Available[name] = &Model{Name: name, TokenLimit: tokenLimit}
	}
	add(oai.GPT3Dot5Turbo, 16385)
	add(oai.GPT4, 8192)
	add(oai.GPT432K, 32768)
	add(oai.GPT4TurboPreview, 128000)
	add("gpt-4-turbo", 128000)
	add(oai.GPT4o, 128000)
	add("gpt-4o-mini", 128000)
	add("gpt-4.1", 1047576)
	add("gpt-4.1-mini", 1047576)
	return
}

// FindModel returns the model object for name, if known.
func (models *Models) FindModel(name string) (m *Model, ok bool) {
	m, ok = models.Available[name]
	return
}

// ListModels returns the known models sorted by name.
func (models *Models) ListModels() (list []*Model) {
	for _, m := range models.Available {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return
}

var (
	tokenizerOnce sync.Once
	codec         tokenizer.Codec
	codecErr      error
)

// TokenCount returns the number of cl100k_base tokens in text.
func TokenCount(text string) (count int, err error) {
	defer Return(&err)
	tokenizerOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	Ck(codecErr)
	_, tokens, err := codec.Encode(text)
	Ck(err)
	count = len(tokens)
	return
}
