/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu/headless"
	"github.com/spaghettifunk/framegraph/testbed"
)

func main() {
	configPath := flag.String("config", "testbed/assets/engine.toml", "path of the engine configuration")
	flag.Parse()

	tb := testbed.NewTestGame(*configPath)

	e, err := engine.New(tb.Game, headless.New(headless.Options{AutoComplete: true}))
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal("%s", err)
	}

	// cancel the frame loop on sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	// run engine
	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("%s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
