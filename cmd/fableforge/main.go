// FableForge is a character-forging adventure: generate heroes, NPCs, and
// enemies, curate them into a world, then wander it in turn-based
// encounters.
// Usage: fableforge [--version] [--plain] [--script <file>]
// Configuration comes from FABLEFORGE_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nathoo/fableforge/cli"
	"github.com/nathoo/fableforge/config"
	"github.com/nathoo/fableforge/engine"
	"github.com/nathoo/fableforge/engine/save"
	"github.com/nathoo/fableforge/genai"
	"github.com/nathoo/fableforge/library"
	"github.com/nathoo/fableforge/loader"
	"github.com/nathoo/fableforge/store"
	"github.com/nathoo/fableforge/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	plain := false
	var scriptFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("fableforge %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		default:
			fmt.Fprintf(os.Stderr, "Usage: fableforge [--version] [--plain] [--script <file>]\n")
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		os.Exit(1)
	}
	defer closeBackend()

	kv := store.NewEngine(backend, log)
	defer kv.Close()

	ctx := context.Background()

	lib := library.NewManager(kv, log)
	if err := lib.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading library: %v\n", err)
		os.Exit(1)
	}
	saves := save.NewManager(kv, log)
	if err := saves.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading saves: %v\n", err)
		os.Exit(1)
	}

	var gameOpts []engine.Option

	// An optional Lua content pack seeds the roster and can retune the
	// game balance.
	if cfg.PackDir != "" {
		pack, err := loader.Load(cfg.PackDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading content pack: %v\n", err)
			os.Exit(1)
		}
		added := lib.ImportEntities(pack.Entities)
		lib.SetWorldMembership(pack.WorldIDs, true)
		if pack.Policy != nil {
			gameOpts = append(gameOpts, engine.WithPolicy(*pack.Policy))
		}
		log.Info("content pack loaded", "pack", pack.Name, "added", added)
	}

	var gen genai.Generator
	if cfg.Offline() {
		log.Info("no API key configured, using offline generator")
		gen = genai.Static{}
	} else {
		gen = genai.NewClient(cfg.OpenRouterBaseURL, cfg.OpenRouterKey, cfg.OpenRouterModel, log)
	}

	app := &cli.App{
		Game:  engine.New(lib, saves, log, gameOpts...),
		Lib:   lib,
		Saves: saves,
		Gen:   gen,
		Delay: true,
	}

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		app.Delay = false
		c := cli.New(app)
		c.In = f
		c.EchoInput = true
		c.Run(ctx)
		return
	}

	// Use the plain frontend if requested or stdout is not a terminal.
	if plain || cfg.Plain || !isTerminal() {
		kv.OnError = func(err error) {
			fmt.Fprintf(os.Stderr, "[Saving is unavailable: %v]\n", err)
		}
		cli.New(app).Run(ctx)
		return
	}

	p := tui.Program(app)
	kv.OnError = func(err error) {
		log.Warn("persistence degraded", "error", err)
		p.Send(tui.PersistFailMsg{Err: err})
	}
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the application logger. Logs go to the configured file,
// or nowhere: writing to the terminal would tear the full-screen UI.
func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	var w io.Writer = io.Discard
	closeLog := func() {}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeLog = func() { f.Close() }
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("bad log level %q", cfg.LogLevel)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeLog, nil
}

// openBackend selects the persistence backend from configuration.
func openBackend(cfg config.Config) (store.Store, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, err
		}
		return store.NewFileStore(cfg.DataDir), func() {}, nil
	}
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
