// Package prompt asks the user at the terminal what to do at the midnight
// rotation boundary.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/timmy/wallfeed/internal/service"
)

// Sentinel errors for prompt operations.
var (
	ErrNoInput      = errors.New("no answer received")
	ErrUnrecognized = errors.New("unrecognized answer")
)

// TerminalPrompter reads one line per question from Reader.
type TerminalPrompter struct {
	Reader  io.Reader
	Writer  io.Writer
	Timeout time.Duration // zero waits for the context

	lines chan string
}

// NewTerminalPrompter prompts on stdin/stdout.
func NewTerminalPrompter(timeout time.Duration) *TerminalPrompter {
	return &TerminalPrompter{Reader: os.Stdin, Writer: os.Stdout, Timeout: timeout}
}

// Ask prints the question and maps the answer to a decision. An empty line
// means the user dismissed the prompt.
func (p *TerminalPrompter) Ask(ctx context.Context, collectionID string) (service.Decision, error) {
	writer := p.Writer
	if writer == nil {
		writer = io.Discard
	}
	_, _ = fmt.Fprintf(writer, "New day: rotate wallpaper from %q now? [r]otate / [d]efer / [s]kip: ", collectionID)

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	select {
	case line, ok := <-p.input():
		if !ok {
			return service.DecisionNone, ErrNoInput
		}
		return ParseDecision(line)
	case <-ctx.Done():
		_, _ = fmt.Fprintln(writer)
		return service.DecisionNone, ctx.Err()
	}
}

// input starts a single reader goroutine shared by every Ask, so a timed-out
// question does not lose the next answer.
func (p *TerminalPrompter) input() <-chan string {
	if p.lines != nil {
		return p.lines
	}
	p.lines = make(chan string)
	go func(r io.Reader, out chan<- string) {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}(p.Reader, p.lines)
	return p.lines
}

// ParseDecision maps a typed answer to a decision.
func ParseDecision(answer string) (service.Decision, error) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return service.DecisionNone, nil
	case "r", "rotate", "y", "yes", "now":
		return service.DecisionRotateNow, nil
	case "d", "defer", "later":
		return service.DecisionDefer, nil
	case "s", "skip", "n", "no":
		return service.DecisionSkip, nil
	default:
		return service.DecisionNone, fmt.Errorf("%w: %q", ErrUnrecognized, answer)
	}
}

// TerminalActivity treats the user as present while fd is an interactive terminal.
type TerminalActivity struct {
	fd int
}

// NewTerminalActivity probes stdin.
func NewTerminalActivity() *TerminalActivity {
	return &TerminalActivity{fd: int(os.Stdin.Fd())}
}

// NewActivityFor probes the given file.
func NewActivityFor(f *os.File) *TerminalActivity {
	return &TerminalActivity{fd: int(f.Fd())}
}

func (a *TerminalActivity) IsActive() bool {
	return term.IsTerminal(a.fd)
}
