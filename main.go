/*
Runs the testbed scene through the engine
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/talos/engine"
	"github.com/spaghettifunk/talos/engine/config"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/testbed"
)

func main() {
	configPath := flag.String("config", config.DefaultEnginePath, "path of the engine configuration file")
	scenePath := flag.String("scene", "", "scene file to render, overrides the configured one")
	validation := flag.Bool("validation", false, "enable the Vulkan validation layers")
	flag.Parse()

	appConfig, err := engine.LoadApplicationConfig(*configPath)
	if err != nil {
		core.LogFatal("failed to load %s: %s", *configPath, err)
	}
	if *scenePath != "" {
		appConfig.Scene.Path = *scenePath
	}
	if *validation {
		appConfig.Renderer.Validation = true
	}

	tb := testbed.NewTestGame(appConfig)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	// stop the run loop on the first signal; the main goroutine tears down
	go func() {
		sig := <-sigCh
		core.LogInfo("received %s, stopping", sig)
		e.Stop()
	}()

	if err := run(e); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}

func run(e *engine.Engine) (err error) {
	defer func() {
		if serr := e.Shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()
	if err := e.Boot(); err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}
	return e.Run()
}
