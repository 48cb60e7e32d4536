package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/timmy/wallfeed/internal/app"
	"github.com/timmy/wallfeed/internal/config"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/prompt"
	"github.com/timmy/wallfeed/internal/settings"
)

// Version is set at build time
var Version = "dev"

// Config holds CLI configuration
type Config struct {
	ConfigPath string    // overrides --config and CONFIG_PATH
	Stdin      io.Reader // defaults to os.Stdin
	LogLevel   string    // defaults to warn
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewWallfeed(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

func outputErrorJSON(err error, w io.Writer) {
	jsonBytes, _ := json.Marshal(map[string]string{"error": err.Error()})
	_, _ = fmt.Fprintln(w, string(jsonBytes))
}

func writeJSON(w io.Writer, v interface{}) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(jsonBytes))
	return err
}

// NewWallfeed creates the root command with injectable IO
func NewWallfeed(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}

	cmd := &cobra.Command{
		Use:     "wallfeed",
		Short:   "A daily wallpaper feed",
		Long:    "wallfeed syncs wallpapers from wallhaven into a local catalog and rotates them onto your displays.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default ./configs/config.yaml)")
	cmd.PersistentFlags().Bool("json", false, "Output as JSON")

	cmd.AddCommand(newSyncCmd(stdout, stderr, cfg))
	cmd.AddCommand(newStatusCmd(stdout, stderr, cfg))
	cmd.AddCommand(newFavoriteCmd(stdout, stderr, cfg))
	cmd.AddCommand(newRotateCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSettingsCmd(stdout, stderr, cfg))
	cmd.AddCommand(newAPIKeyCmd(stdout, stderr, cfg))

	return cmd
}

// openApp loads configuration and builds the services for one command.
func openApp(cmd *cobra.Command, stderr io.Writer, cfg *Config, opts *app.Options) (*app.App, error) {
	path := cfg.ConfigPath
	if path == "" {
		path, _ = cmd.Flags().GetString("config")
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	appCfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	log := logger.New(&logger.Config{Level: level, Format: "text", Output: stderr, ServiceName: "wallfeed-cli"})
	logger.SetDefaultLogger(log)

	return app.New(cmd.Context(), appCfg, log, opts)
}

func jsonFlag(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// newSyncCmd creates the 'sync' subcommand
func newSyncCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch new wallpapers now",
		Long:  "Run the search, download, catalog update and apply pipeline once.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			result, err := a.Sync.Run(cmd.Context(), domain.SyncTriggerManual)
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(stdout, result)
			}
			_, _ = fmt.Fprintf(stdout, "Sync %s: %d candidates, %d added, %d pruned, %d failed\n",
				result.Status, result.Candidates, result.Added, result.Pruned, result.Failed)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// statusView is the JSON shape of 'status'.
type statusView struct {
	Feed            int                  `json:"feed"`
	Favorites       int                  `json:"favorites"`
	LastSyncAt      *time.Time           `json:"last_sync_at,omitempty"`
	NextScheduledAt *time.Time           `json:"next_scheduled_at,omitempty"`
	LastError       string               `json:"last_error,omitempty"`
	Rotation        domain.RotationState `json:"rotation"`
	Mapping         map[string][]string  `json:"mapping,omitempty"`
}

// newStatusCmd creates the 'status' subcommand
func newStatusCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog and rotation status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			c := a.Catalog.Snapshot(ctx)
			rotation, err := a.Settings.RotationState(ctx)
			if err != nil {
				return err
			}

			view := statusView{
				Feed:            len(c.Feed),
				Favorites:       len(c.Favorites),
				LastSyncAt:      c.LastSyncAt,
				NextScheduledAt: c.NextScheduledAt,
				LastError:       c.LastError,
				Rotation:        rotation,
				Mapping:         c.Mapping,
			}
			if jsonFlag(cmd) {
				return writeJSON(stdout, view)
			}

			_, _ = fmt.Fprintf(stdout, "Feed:       %d\n", view.Feed)
			_, _ = fmt.Fprintf(stdout, "Favorites:  %d\n", view.Favorites)
			_, _ = fmt.Fprintf(stdout, "Last sync:  %s\n", formatTime(view.LastSyncAt))
			_, _ = fmt.Fprintf(stdout, "Next sync:  %s\n", formatTime(view.NextScheduledAt))
			if view.LastError != "" {
				_, _ = fmt.Fprintf(stdout, "Last error: %s\n", view.LastError)
			}
			_, _ = fmt.Fprintf(stdout, "Rotation:   %s\n", orNone(rotation.EnabledCollectionID))
			if rotation.LastRotationDate != "" {
				_, _ = fmt.Fprintf(stdout, "Rotated on: %s\n", rotation.LastRotationDate)
			}
			if rotation.PendingRotationCollectionID != "" {
				_, _ = fmt.Fprintf(stdout, "Pending:    %s\n", rotation.PendingRotationCollectionID)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// newFavoriteCmd creates the 'favorite' subcommand
func newFavoriteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	favoriteCmd := &cobra.Command{
		Use:   "favorite",
		Short: "Manage favorite wallpapers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	favoriteCmd.AddCommand(&cobra.Command{
		Use:   "add [id|url]",
		Short: "Add a feed item or an image URL to favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var img domain.CachedImage
			if isURL(args[0]) {
				img, err = a.Catalog.FavoriteURL(cmd.Context(), args[0])
			} else {
				img, err = a.Catalog.Favorite(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(stdout, img)
			}
			_, _ = fmt.Fprintf(stdout, "Added %s to favorites (%s)\n", img.ID, img.LocalPath)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	favoriteCmd.AddCommand(&cobra.Command{
		Use:   "remove [id]",
		Short: "Remove an image from favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Catalog.Unfavorite(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Removed %s from favorites\n", args[0])
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	favoriteCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			favs := a.Catalog.Snapshot(cmd.Context()).Favorites
			if jsonFlag(cmd) {
				return writeJSON(stdout, favs)
			}
			for _, img := range favs {
				_, _ = fmt.Fprintf(stdout, "%s\t%s\t%s\n", img.ID, img.Resolution, img.LocalPath)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return favoriteCmd
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// newRotateCmd creates the 'rotate' subcommand
func newRotateCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run the day-boundary rotation now",
		Long: "Run the midnight rotation decision immediately. With --collection the rotated " +
			"collection is changed first; --collection \"\" disables rotation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &app.Options{}
			if ask, _ := cmd.Flags().GetBool("prompt"); ask {
				opts.Prompter = &prompt.TerminalPrompter{Reader: cfg.Stdin, Writer: stdout}
				opts.Probe = alwaysActive{}
			}

			a, err := openApp(cmd, stderr, cfg, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			if cmd.Flags().Changed("collection") {
				collection, _ := cmd.Flags().GetString("collection")
				if err := a.Rotation.SetEnabledCollection(ctx, collection); err != nil {
					return err
				}
				if collection == "" {
					_, _ = fmt.Fprintln(stdout, "Rotation disabled")
					return nil
				}
			}

			outcome, err := a.Rotation.HandleBoundary(ctx)
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(stdout, map[string]string{"outcome": string(outcome)})
			}
			_, _ = fmt.Fprintf(stdout, "Rotation: %s\n", outcome)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("collection", "", "Collection to rotate (feed or favorites)")
	cmd.Flags().Bool("prompt", false, "Ask before rotating")
	return cmd
}

type alwaysActive struct{}

func (alwaysActive) IsActive() bool { return true }

// newSettingsCmd creates the 'settings' subcommand
func newSettingsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			if len(args) == 1 {
				v, err := a.Settings.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if args[0] == settings.KeySearchAPIKey {
					v = settings.MaskSecret(v)
				}
				if jsonFlag(cmd) {
					return writeJSON(stdout, map[string]string{args[0]: v})
				}
				_, _ = fmt.Fprintln(stdout, v)
				return nil
			}

			all, err := a.Settings.All(ctx)
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(stdout, all)
			}
			for _, key := range settings.UserKeys {
				_, _ = fmt.Fprintf(stdout, "%s = %s\n", key, all[key])
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Settings.Set(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "%s updated\n", args[0])
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return settingsCmd
}

// newAPIKeyCmd creates the 'apikey' subcommand
func newAPIKeyCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	apikeyCmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the wallhaven API key in the system keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apikeyCmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key; reads it from stdin when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				var err error
				if key, err = readSecret(cfg.Stdin, stdout); err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("API key must not be empty")
			}

			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Settings.StoreAPIKey(cmd.Context(), key); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "API key stored (%s)\n", settings.MaskSecret(key))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	apikeyCmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the API key from the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, stderr, cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Settings.DeleteAPIKey(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "API key removed")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return apikeyCmd
}

// readSecret reads one line, without echo when r is a terminal.
func readSecret(r io.Reader, w io.Writer) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(w, "API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return line, nil
}

