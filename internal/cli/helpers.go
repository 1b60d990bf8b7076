package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/aretw0/strata/internal/logging"
)

// errInterrupted is returned by InterruptibleReader once its cancel channel is closed.
var errInterrupted = errors.New("interrupted")

// SignalContext is a context cancelled by SIGINT or SIGTERM that remembers which signal fired.
type SignalContext struct {
	context.Context
	cancel context.CancelFunc
	sig    atomic.Value
}

// NewSignalContext works like signal.NotifyContext but keeps the signal for Signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case s := <-ch:
			sc.sig.Store(s)
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Cancel releases the context and stops listening for signals.
func (sc *SignalContext) Cancel() { sc.cancel() }

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	s, _ := sc.sig.Load().(os.Signal)
	return s
}

// CreateLogger configures the application logger.
// Debug forces the debug level. Logs go to Stderr so they never mix with the REPL
// or with JSON written to Stdout.
func CreateLogger(level string, debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	if level == "" || level == "off" {
		return logging.NewNop()
	}
	return logging.New(logging.ParseLevel(level))
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// InterruptibleReader fails with errInterrupted once done is closed, checked on
// both sides of the blocking Read.
type InterruptibleReader struct {
	base io.Reader
	done <-chan struct{}
}

func NewInterruptibleReader(base io.Reader, done <-chan struct{}) *InterruptibleReader {
	return &InterruptibleReader{base: base, done: done}
}

func (r *InterruptibleReader) Read(p []byte) (int, error) {
	if r.closed() {
		return 0, errInterrupted
	}
	n, err := r.base.Read(p)
	if r.closed() {
		return 0, errInterrupted
	}
	return n, err
}

func (r *InterruptibleReader) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, errInterrupted) ||
		errors.Is(err, io.EOF)
}

// handleExecutionError maps interruptions to a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}

func logCompletion(w io.Writer, id string, err error, quiet bool, sig os.Signal) {
	if quiet {
		return
	}
	name := id
	if name == "" {
		name = "unsaved"
	}
	switch {
	case err == nil:
		printSystemMessage(w, "Finished '%s' session.", name)
	case sig == os.Interrupt:
		fmt.Fprintf(w, "[CTRL+C]\n")
		printSystemMessage(w, "Interrupted '%s' session.", name)
	case sig != nil:
		fmt.Fprintf(w, "\n")
		printSystemMessage(w, "Terminated '%s' session.", name)
	case isInterrupted(err):
		fmt.Fprintf(w, "\n")
		printSystemMessage(w, "Interrupted '%s' session.", name)
	}
}
