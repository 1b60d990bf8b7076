package strata

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Runner drives a Workspace from line-oriented input.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
//
// Each line is one of:
//
//	<command> [json payload]   execute a registered command
//	undo | redo | clear
//	state | report | help
//	exit | quit
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer is a function that transforms Markdown before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// errQuit ends the loop without error.
var errQuit = errors.New("quit")

// NewRunner creates a Runner; Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run reads lines until EOF or quit. Command errors are printed and do not stop the loop.
func (r *Runner) Run(ws *Workspace) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)

	if !r.Headless {
		fmt.Fprintln(r.Output, "--- strata (type 'help' for commands) ---")
	}

	for {
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := lineReader.ReadString('\n')
		line, sanErr := SanitizeLine(strings.TrimSpace(text))
		if sanErr != nil {
			fmt.Fprintf(r.Output, "error: %v\n", sanErr)
			line = ""
		}
		if line != "" {
			if stepErr := r.step(ws, line); stepErr != nil {
				if errors.Is(stepErr, errQuit) {
					if !r.Headless {
						fmt.Fprintln(r.Output, "Bye!")
					}
					return nil
				}
				fmt.Fprintf(r.Output, "error: %v\n", stepErr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
	}
}

func (r *Runner) step(ws *Workspace, line string) error {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "exit", "quit":
		return errQuit
	case "help":
		fmt.Fprintln(r.Output, "commands:", strings.Join(ws.Registry().Names(), ", "))
		fmt.Fprintln(r.Output, "built-ins: undo, redo, clear, state, report, exit")
		return nil
	case "undo":
		_, err := ws.Undo()
		return r.afterChange(ws, err)
	case "redo":
		_, err := ws.Redo()
		return r.afterChange(ws, err)
	case "clear":
		ws.History().Clear(nil)
		return r.afterChange(ws, nil)
	case "state":
		return r.printState(ws)
	case "report":
		return r.print(ws.Report())
	}

	var payload any
	if rest != "" {
		if err := json.Unmarshal([]byte(rest), &payload); err != nil {
			return fmt.Errorf("payload for %q is not valid JSON: %w", name, err)
		}
	}
	_, err := ws.Execute(name, payload)
	return r.afterChange(ws, err)
}

func (r *Runner) afterChange(ws *Workspace, err error) error {
	if err != nil {
		return err
	}
	if r.Headless {
		return nil
	}
	h := ws.History()
	fmt.Fprintf(r.Output, "version %d, entry %d/%d\n", ws.Store().Version(), h.Pointer()+1, h.Len())
	return nil
}

func (r *Runner) printState(ws *Workspace) error {
	data, err := json.MarshalIndent(ws.Store().GetSnapshot(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(r.Output, string(data))
	return nil
}

func (r *Runner) print(markdown string) error {
	output := markdown
	if r.Renderer != nil {
		if rendered, err := r.Renderer(markdown); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(output))
	return nil
}
