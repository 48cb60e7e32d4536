package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timmy/wallfeed/internal/service"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		input string
		want  service.Decision
		err   bool
	}{
		{"", service.DecisionNone, false},
		{"  \n", service.DecisionNone, false},
		{"r", service.DecisionRotateNow, false},
		{"Rotate", service.DecisionRotateNow, false},
		{"yes", service.DecisionRotateNow, false},
		{"d", service.DecisionDefer, false},
		{"later", service.DecisionDefer, false},
		{"S", service.DecisionSkip, false},
		{"no", service.DecisionSkip, false},
		{"maybe", service.DecisionNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecision(tt.input)
			if (err != nil) != tt.err {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.err && !errors.Is(err, ErrUnrecognized) {
				t.Errorf("expected ErrUnrecognized, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTerminalPrompter_Ask(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{Reader: strings.NewReader("d\nr\n"), Writer: &out}

	got, err := p.Ask(context.Background(), "favorites")
	if err != nil || got != service.DecisionDefer {
		t.Fatalf("expected defer, got %q, %v", got, err)
	}
	if !strings.Contains(out.String(), `"favorites"`) {
		t.Errorf("expected collection in prompt, got %q", out.String())
	}

	got, err = p.Ask(context.Background(), "favorites")
	if err != nil || got != service.DecisionRotateNow {
		t.Fatalf("expected second line to be read, got %q, %v", got, err)
	}

	if _, err := p.Ask(context.Background(), "favorites"); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput at EOF, got %v", err)
	}
}

func TestTerminalPrompter_Timeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := &TerminalPrompter{Reader: r, Timeout: 20 * time.Millisecond}

	got, err := p.Ask(context.Background(), "feed")
	if !errors.Is(err, context.DeadlineExceeded) || got != service.DecisionNone {
		t.Errorf("expected deadline exceeded, got %q, %v", got, err)
	}
}

func TestTerminalActivity_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if NewActivityFor(f).IsActive() {
		t.Error("expected a regular file not to count as an active terminal")
	}
}
