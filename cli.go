package grokchat

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/stevegt/envi"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/grokchat/client"
	"github.com/stevegt/grokchat/openai"
	"github.com/stevegt/grokchat/transcript"
)

// ErrNoAPIKey is returned by Cli when OPENAI_API_KEY is set neither in
// the environment nor in the .env file.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY not found in the environment or .env file")

// cliArgs is parsed by kong.  Everything that is not a flag is part of
// the initial prompt.
type cliArgs struct {
	Prompt     []string         `arg:"" optional:"" help:"Initial prompt to send before the interactive session starts."`
	Model      string           `short:"m" default:"${defaultModel}" help:"Model to use (default: ${defaultModel})."`
	Transcript string           `short:"t" type:"path" help:"Record every message in this transcript file."`
	Verbose    bool             `short:"v" help:"Show debug and progress information on stderr."`
	Version    kong.VersionFlag `help:"Show version and exit."`
}

// Config contains the configuration for grokchat's cli
type Config struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Getenv looks up an environment variable.
	Getenv func(string) string
	// EnvFile is consulted for variables Getenv does not find.  It
	// may be missing.
	EnvFile string
	// NewClient builds the completion client.
	NewClient func(apiKey, baseURL string) client.ChatClient
}

// NewConfig returns a new Config struct with default values populated
func NewConfig() *Config {
	return &Config{
		Name:        "grokchat",
		Description: "Chat with an OpenAI model from the command line.",
		Version:     CodeVersion(),
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Getenv:      func(key string) string { return envi.String(key, "") },
		EnvFile:     ".env",
		NewClient: func(apiKey, baseURL string) client.ChatClient {
			return openai.NewChatClient(apiKey, openai.WithBaseURL(baseURL))
		},
	}
}

// environment layers the .env file under the process environment.
type environment struct {
	getenv func(string) string
	dotenv map[string]string
}

func loadEnvironment(config *Config) (env *environment, err error) {
	defer Return(&err)
	env = &environment{getenv: config.Getenv, dotenv: map[string]string{}}
	if env.getenv == nil {
		env.getenv = os.Getenv
	}
	if config.EnvFile == "" {
		return
	}
	_, err = os.Stat(config.EnvFile)
	if os.IsNotExist(err) {
		Debug("no %s file", config.EnvFile)
		err = nil
		return
	}
	Ck(err)
	env.dotenv, err = godotenv.Read(config.EnvFile)
	Ck(err, "reading %s", config.EnvFile)
	return
}

func (env *environment) get(key, def string) string {
	if val := env.getenv(key); val != "" {
		return val
	}
	if val := env.dotenv[key]; val != "" {
		return val
	}
	return def
}

// Cli parses the given arguments and then runs an interactive chat
// session until the user exits.
//
// We use this function instead of kong.Parse() so that we can pass in
// the arguments to parse.  This allows us to more easily test the
// cli, with a mock chat client in place of OpenAI.
func Cli(ctx context.Context, args []string, config *Config) (rc int, err error) {
	defer Return(&err)

	// capture goadapt stdio
	SetStdio(
		config.Stdin,
		config.Stdout,
		config.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	env, err := loadEnvironment(config)
	Ck(err)

	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version":      config.Version,
			"defaultModel": env.get("GROKCHAT_MODEL", DefaultModel),
		},
	}

	var cli cliArgs
	var parser *kong.Kong
	parser, err = kong.New(&cli, options...)
	Ck(err)
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		rc = 1
		return
	}
	Debug("ctx: %+v", kctx)

	if cli.Verbose {
		os.Setenv("DEBUG", "1")
	}

	apiKey := env.get("OPENAI_API_KEY", "")
	if apiKey == "" {
		rc = 1
		err = ErrNoAPIKey
		return
	}
	chatClient := config.NewClient(apiKey, env.get("OPENAI_BASE_URL", ""))

	var recorder Recorder
	if cli.Transcript != "" {
		var tr *transcript.Transcript
		tr, err = transcript.Open(cli.Transcript)
		if err != nil {
			rc = 1
			return
		}
		defer tr.Close()
		recorder = tr
		Debug("recording to %s", cli.Transcript)
	}

	renderer, rerr := NewRenderer(config.Stdout)
	if rerr != nil {
		Debug("markdown rendering disabled: %v", rerr)
		renderer = PlainRenderer{}
	}

	session, err := NewSession(SessionConfig{
		Name:     config.Name,
		Client:   chatClient,
		Model:    cli.Model,
		Renderer: renderer,
		Stdout:   config.Stdout,
		Stderr:   config.Stderr,
		Recorder: recorder,
	})
	Ck(err)

	if session.Start(ctx, strings.Join(cli.Prompt, " ")) == Terminated {
		return
	}

	var reader LineReader
	if _, ok := terminalFd(config.Stdin); ok {
		reader = NewTerminalReader()
	} else {
		reader = NewStreamReader(config.Stdin, config.Stdout)
	}
	defer reader.Close()

	err = session.Run(ctx, reader)
	Ck(err)
	return
}
