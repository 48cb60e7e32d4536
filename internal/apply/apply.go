// Package apply hands chosen wallpapers to whatever displays them.
package apply

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/timmy/wallfeed/internal/config"
	"github.com/timmy/wallfeed/internal/logger"
)

// Placeholders expanded in configured command arguments.
const (
	SurfacePlaceholder = "{surface}"
	PathsPlaceholder   = "{paths}"
)

// ErrNoPaths is returned when Apply is called without any image.
var ErrNoPaths = errors.New("no paths to apply")

// Applier shows paths on a surface.
type Applier interface {
	Apply(ctx context.Context, surfaceID string, paths []string) error
}

// New returns a CommandApplier when cfg names a command, otherwise a LogApplier.
func New(cfg *config.ApplyConfig, log *logger.Logger) Applier {
	if cfg == nil || strings.TrimSpace(cfg.Command) == "" {
		return NewLogApplier(log)
	}
	return NewCommandApplier(cfg.Command, cfg.Args, log)
}

// LogApplier only records what would be shown.
type LogApplier struct {
	logger *logger.Logger
}

func NewLogApplier(log *logger.Logger) *LogApplier {
	if log == nil {
		log = logger.GetDefault()
	}
	return &LogApplier{logger: log.WithField(logger.FieldComponent, "apply")}
}

func (a *LogApplier) Apply(ctx context.Context, surfaceID string, paths []string) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}
	a.logger.WithFields(logger.Fields{
		logger.FieldSurface: surfaceID,
		logger.FieldCount:   len(paths),
		"first":             paths[0],
	}).Info("Wallpaper applied")
	return nil
}

// CommandExecutor runs an external program.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandExecutor struct{}

func (execCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandApplier runs a configured program once per Apply call.
type CommandApplier struct {
	command  string
	args     []string
	executor CommandExecutor
	logger   *logger.Logger
}

// Option configures a CommandApplier.
type Option func(*CommandApplier)

// WithExecutor replaces the process runner.
func WithExecutor(e CommandExecutor) Option {
	return func(a *CommandApplier) {
		a.executor = e
	}
}

// NewCommandApplier creates an applier for command. Arguments may contain
// {surface} and {paths}; {paths} expands to one argument per path. Without a
// {paths} placeholder the paths are appended.
func NewCommandApplier(command string, args []string, log *logger.Logger, opts ...Option) *CommandApplier {
	if log == nil {
		log = logger.GetDefault()
	}
	a := &CommandApplier{
		command:  command,
		args:     append([]string(nil), args...),
		executor: execCommandExecutor{},
		logger:   log.WithField(logger.FieldComponent, "apply"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Args returns the arguments the command is run with.
func (a *CommandApplier) Args(surfaceID string, paths []string) []string {
	out := make([]string, 0, len(a.args)+len(paths))
	expanded := false
	for _, arg := range a.args {
		if arg == PathsPlaceholder {
			out = append(out, paths...)
			expanded = true
			continue
		}
		out = append(out, strings.ReplaceAll(arg, SurfacePlaceholder, surfaceID))
	}
	if !expanded {
		out = append(out, paths...)
	}
	return out
}

func (a *CommandApplier) Apply(ctx context.Context, surfaceID string, paths []string) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}
	args := a.Args(surfaceID, paths)
	out, err := a.executor.Execute(ctx, a.command, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("failed to run %s for surface %s: %w: %s", a.command, surfaceID, err, msg)
		}
		return fmt.Errorf("failed to run %s for surface %s: %w", a.command, surfaceID, err)
	}
	a.logger.WithFields(logger.Fields{
		logger.FieldSurface: surfaceID,
		logger.FieldCount:   len(paths),
	}).Debug("Apply command finished")
	return nil
}
