// Package console - Line-oriented terminal surface for the freshness controller.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-freshness/controller"
)

// Prompt is printed before each command.
const Prompt = "> "

const help = `commands:
  open    toggle the camera (Open/Stop)
  check   capture and classify one frame
  status  show the status label
  quit    stop the camera and exit`

// Console reads commands from in and renders the UI to out.
type Console struct {
	ctrl *controller.Controller
	in   io.Reader
	out  io.Writer
}

// New creates a console.
func New(ctrl *controller.Controller, in io.Reader, out io.Writer) *Console {
	return &Console{ctrl: ctrl, in: in, out: out}
}

// Run processes commands until quit, end of input or ctx cancellation.
//
// Arguments:
//   - ctx: Stops the loop between commands and is passed to each check.
//
// Returns:
//   - error: An error if reading input fails.
func (c *Console) Run(ctx context.Context) error {
	c.render()
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return errors.Wrap(scanner.Err(), "read command")
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		quit := c.Execute(ctx, scanner.Text())
		if quit {
			return nil
		}
	}
}

// Execute runs a single command line.
//
// Arguments:
//   - ctx: Passed to check.
//   - line: The command line.
//
// Returns:
//   - bool: True when the command asks to exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
	case "":
	case "open", "stop", "o":
		if _, err := c.ctrl.Toggle(); err != nil {
			fmt.Fprintf(c.out, "error: %s\n", controller.StatusText(err))
		}
		c.render()
	case "check", "c":
		if _, err := c.ctrl.Check(ctx); err != nil && errors.Is(err, controller.ErrCheckDisabled) {
			fmt.Fprintf(c.out, "error: %s\n", controller.StatusText(err))
		}
		c.render()
	case "status", "s":
		c.render()
	case "help", "h", "?":
		fmt.Fprintln(c.out, help)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q, type help\n", cmd)
	}
	return false
}

// render prints the status label and button states.
func (c *Console) render() {
	snap := c.ctrl.Snapshot()
	check := "disabled"
	if snap.CheckEnabled {
		check = "enabled"
	}
	fmt.Fprintf(c.out, "[%s] [Check: %s] %s\n", snap.Caption, check, snap.Status)
}
