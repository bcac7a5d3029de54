package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/grokchat"
)

// main simply calls grokchat.Cli() with an interrupt-aware context
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config := grokchat.NewConfig()
	rc, err := grokchat.Cli(ctx, os.Args[1:], config)
	if err != nil {
		Fpf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, grokchat.ErrNoAPIKey) {
			Fpf(os.Stderr, "Please add your OpenAI API key to the environment or to a .env file\n")
		}
		if rc == 0 {
			rc = 1
		}
	}
	stop()
	os.Exit(rc)
}
