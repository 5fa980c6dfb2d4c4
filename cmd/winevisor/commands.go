package main

import (
	"fmt"

	"github.com/winevisor/winevisor"
)

// command carries the engine into every subcommand closure.
type command struct {
	eng   *winevisor.Engine
	flags *GlobalFlags
}

// applyConfig loads the configured TOML file into the engine, falling
// back to defaults when no file was given.
func (c command) applyConfig() error {
	if c.flags.ConfigPath == "" {
		c.eng.SetConfig(winevisor.DefaultConfig())
		return nil
	}
	cfg, err := winevisor.LoadConfig(c.flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", c.flags.ConfigPath, err)
	}
	c.eng.SetConfig(cfg)
	return nil
}

func (c command) showConfig() error {
	fmt.Print(c.eng.Config().String())
	return nil
}
