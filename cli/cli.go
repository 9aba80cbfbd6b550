// Package cli provides the line-based frontend and the shared command
// dispatcher for the FableForge engine.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI handles terminal interaction with the player in plain mode.
type CLI struct {
	App       *App
	In        io.Reader
	Out       io.Writer
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI wired to the given app.
func New(app *App) *CLI {
	return &CLI{
		App: app,
		In:  os.Stdin,
		Out: os.Stdout,
	}
}

// Run starts the game loop: prompt, input, dispatch, output. It returns
// when the player quits or input runs out.
func (c *CLI) Run(ctx context.Context) {
	c.printLine("FableForge — type help for commands, start <hero> to begin.")
	c.printLine("")

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// "again" / "g" repeats the last command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("[Nothing to repeat.]")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		lines, quit := c.App.Dispatch(ctx, input)
		for _, line := range lines {
			c.printLine(line)
		}
		if quit {
			return
		}
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}
